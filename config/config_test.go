package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0xPolygon/router-mesh/ism"
	"github.com/0xPolygon/router-mesh/registry"
	"github.com/0xPolygon/router-mesh/types"
)

func mustBytes32(t *testing.T, raw string) types.Bytes32 {
	t.Helper()

	b, err := types.StringToBytes32(raw)
	require.NoError(t, err)

	return b
}

func testRegistry(t *testing.T) *registry.ChainRegistry {
	t.Helper()

	reg, err := registry.NewChainRegistry([]registry.ChainMetadata{
		{
			Name:     "alphanet",
			DomainID: 1,
			Protocol: registry.AccountModel,
			RPCURLs:  []registry.Endpoint{{HTTP: "http://localhost:8545"}},
		},
		{
			Name:     "betanet",
			DomainID: 2,
			Protocol: registry.AccountModel,
			RPCURLs:  []registry.Endpoint{{HTTP: "http://localhost:8546"}},
		},
	})
	require.NoError(t, err)

	return reg
}

func TestAddressOrPolicy_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	t.Run("concrete address", func(t *testing.T) {
		t.Parallel()

		var a AddressOrPolicy
		require.NoError(t, json.Unmarshal([]byte(`"0xd3e345ef10b0b1f1cb4923f089dcb6d4d8b16d41"`), &a))
		require.True(t, a.IsConcrete())
		require.False(t, a.Address().IsZero())
	})

	t.Run("declarative policy", func(t *testing.T) {
		t.Parallel()

		raw := `{"type":"messageIdMultisig","validators":["0x01","0x02"],"threshold":2}`

		var a AddressOrPolicy
		require.NoError(t, json.Unmarshal([]byte(raw), &a))
		require.True(t, a.IsDeclarative())
		require.Equal(t, ism.MessageIDMultisig, a.Policy().Type)
		require.Len(t, a.Policy().Validators, 2)
	})

	t.Run("null is unset", func(t *testing.T) {
		t.Parallel()

		var a AddressOrPolicy
		require.NoError(t, json.Unmarshal([]byte(`null`), &a))
		require.True(t, a.IsUnset())
	})

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()

		var a AddressOrPolicy
		require.Error(t, json.Unmarshal([]byte(`"0xzz"`), &a))
	})
}

func TestDeployConfig_Validate(t *testing.T) {
	t.Parallel()

	owner := mustBytes32(t, "0x0aa1")
	mailbox := mustBytes32(t, "0x0bb2")
	foreign := mustBytes32(t, "0x0cc3")

	valid := func() DeployConfig {
		return DeployConfig{
			"alphanet": {Owner: owner, Mailbox: mailbox},
			"betanet":  {ForeignDeployment: foreign},
		}
	}

	reg := testRegistry(t)

	require.NoError(t, valid().Validate(reg))

	t.Run("unknown chain", func(t *testing.T) {
		t.Parallel()

		dc := valid()
		dc["deltanet"] = &RouterConfig{Owner: owner, Mailbox: mailbox}
		require.ErrorIs(t, dc.Validate(reg), ErrChainNotInRegistry)
	})

	t.Run("missing mailbox", func(t *testing.T) {
		t.Parallel()

		dc := valid()
		dc["alphanet"] = &RouterConfig{Owner: owner}
		require.ErrorIs(t, dc.Validate(reg), ErrMissingMailbox)
	})

	t.Run("missing owner", func(t *testing.T) {
		t.Parallel()

		dc := valid()
		dc["alphanet"] = &RouterConfig{Mailbox: mailbox}
		require.ErrorIs(t, dc.Validate(reg), ErrMissingOwner)
	})

	t.Run("foreign chains skip local requirements", func(t *testing.T) {
		t.Parallel()

		dc := DeployConfig{"betanet": {ForeignDeployment: foreign}}
		require.NoError(t, dc.Validate(reg))
	})

	t.Run("invalid declarative security module", func(t *testing.T) {
		t.Parallel()

		dc := valid()
		dc["alphanet"].InterchainSecurityModule = DeclarativePolicy(&ism.Policy{
			Type:      ism.MessageIDMultisig,
			Threshold: 3,
		})
		require.Error(t, dc.Validate(reg))
	})
}

func TestRouterConfig_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	raw := `{
		"alphanet": {
			"owner": "0x0000000000000000000000000000000000000000000000000000000000000aa1",
			"mailbox": "0x0000000000000000000000000000000000000000000000000000000000000bb2",
			"interchainSecurityModule": {"type": "noop"},
			"remoteRouterOverrides": {"77": "0x0000000000000000000000000000000000000000000000000000000000000dd4"}
		},
		"betanet": {
			"foreignDeployment": "0x0000000000000000000000000000000000000000000000000000000000000cc3"
		}
	}`

	var dc DeployConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &dc))

	alpha := dc["alphanet"]
	require.NotNil(t, alpha)
	require.False(t, alpha.IsForeign())
	require.True(t, alpha.InterchainSecurityModule.IsDeclarative())
	require.Contains(t, alpha.RemoteRouterOverrides, uint32(77))

	beta := dc["betanet"]
	require.NotNil(t, beta)
	require.True(t, beta.IsForeign())
}

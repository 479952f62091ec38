package helper

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/0xPolygon/router-mesh/registry"
)

func testRegistry(t *testing.T) *registry.ChainRegistry {
	t.Helper()

	reg, err := registry.NewChainRegistry([]registry.ChainMetadata{
		{
			Name:     "alpha",
			DomainID: 100,
			Protocol: registry.AccountModel,
			RPCURLs:  []registry.Endpoint{{HTTP: "http://localhost"}},
		},
	})
	require.NoError(t, err)

	return reg
}

func TestEngineParams_SignerOptionalForReadOnlyRuns(t *testing.T) {
	t.Parallel()

	ep := &EngineParams{
		RegistryPath: "registry.yaml",
		ConfigPath:   "routers.json",
	}

	// a keyless provider still builds, the chains are just read-only
	p := ep.BuildProvider(testRegistry(t), hclog.NewNullLogger())
	require.NotNil(t, p)
	require.True(t, p.SupportsFamily(registry.AccountModel))

	// commands that write enforce the key explicitly
	require.ErrorIs(t, ep.RequireSigner(), ErrMissingSignerKey)

	ep.SignerKey = "0x01"
	require.NoError(t, ep.RequireSigner())
}

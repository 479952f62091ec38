package provider

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/0xPolygon/router-mesh/registry"
)

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
			Protocol: registry.PDAModel,
			RPCURLs:  []registry.Endpoint{{HTTP: "http://localhost:8899"}},
		},
	})
	require.NoError(t, err)

	return reg
}

func TestMultiProtocolProvider_AdapterFor(t *testing.T) {
	t.Parallel()

	created := 0
	factory := func(chain *registry.ChainMetadata, signer SignerConfig, _ hclog.Logger) (Adapter, error) {
		created++

		return nil, nil
	}

	p := NewMultiProtocolProvider(testRegistry(t),
		WithFactory(registry.AccountModel, factory),
	)

	// adapter is cached after first creation
	_, err := p.AdapterFor("alphanet")
	require.NoError(t, err)
	_, err = p.AdapterFor("alphanet")
	require.NoError(t, err)
	require.Equal(t, 1, created)

	// no factory for the PDA family
	_, err = p.AdapterFor("betanet")
	require.ErrorIs(t, err, ErrNoAdapter)

	// unknown chain
	_, err = p.AdapterFor("unknown")
	require.ErrorIs(t, err, registry.ErrChainNotFound)
}

func TestMultiProtocolProvider_SignerSelection(t *testing.T) {
	t.Parallel()

	var seen []SignerConfig

	factory := func(chain *registry.ChainMetadata, signer SignerConfig, _ hclog.Logger) (Adapter, error) {
		seen = append(seen, signer)

		return nil, nil
	}

	p := NewMultiProtocolProvider(testRegistry(t),
		WithFactory(registry.AccountModel, factory),
		WithFactory(registry.PDAModel, factory),
		WithDefaultSigner(SignerConfig{HexKey: "default"}),
		WithSigner("betanet", SignerConfig{HexKey: "override"}),
	)

	_, err := p.AdapterFor("alphanet")
	require.NoError(t, err)
	_, err = p.AdapterFor("betanet")
	require.NoError(t, err)

	require.Equal(t, []SignerConfig{{HexKey: "default"}, {HexKey: "override"}}, seen)
}

func TestMultiProtocolProvider_FactoryError(t *testing.T) {
	t.Parallel()

	factoryErr := errors.New("bad rpc url")
	factory := func(*registry.ChainMetadata, SignerConfig, hclog.Logger) (Adapter, error) {
		return nil, factoryErr
	}

	p := NewMultiProtocolProvider(testRegistry(t),
		WithFactory(registry.AccountModel, factory),
	)

	_, err := p.AdapterFor("alphanet")
	require.ErrorIs(t, err, factoryErr)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	require.True(t, IsRetryable(errors.New("request timeout")))
	require.True(t, IsRetryable(errors.New("429 too many requests")))
	require.False(t, IsRetryable(ErrMalformedResponse))
	require.False(t, IsRetryable(ErrSignerMissing))
	require.False(t, IsRetryable(nil))
}

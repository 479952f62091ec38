package provider

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/0xPolygon/router-mesh/registry"
)

// SignerConfig selects the key material used for a chain's writes. An
// empty HexKey leaves the chain read-only; adapters surface writes on
// such chains as ErrSignerMissing.
type SignerConfig struct {
	HexKey string
}

// AdapterFactory builds an adapter bound to one chain. Factories are
// registered per protocol family.
type AdapterFactory func(chain *registry.ChainMetadata, signer SignerConfig, logger hclog.Logger) (Adapter, error)

// MultiProtocolProvider routes a (chain, operation) pair to the adapter
// for that chain's protocol family. Adapters are created lazily and
// cached; signer and RPC configuration is read-only for the lifetime of
// the provider.
type MultiProtocolProvider struct {
	registry  *registry.ChainRegistry
	factories map[registry.ProtocolFamily]AdapterFactory
	signers   map[string]SignerConfig

	defaultSigner SignerConfig

	mu       sync.Mutex
	adapters map[string]Adapter

	logger hclog.Logger
}

type ProviderOption func(*MultiProtocolProvider)

// WithFactory registers an adapter factory for a protocol family.
func WithFactory(family registry.ProtocolFamily, factory AdapterFactory) ProviderOption {
	return func(p *MultiProtocolProvider) {
		p.factories[family] = factory
	}
}

// WithSigner sets the signer for a single chain, overriding the default.
func WithSigner(chainName string, signer SignerConfig) ProviderOption {
	return func(p *MultiProtocolProvider) {
		p.signers[chainName] = signer
	}
}

// WithDefaultSigner sets the signer used by chains without an explicit
// per-chain entry.
func WithDefaultSigner(signer SignerConfig) ProviderOption {
	return func(p *MultiProtocolProvider) {
		p.defaultSigner = signer
	}
}

func WithLogger(logger hclog.Logger) ProviderOption {
	return func(p *MultiProtocolProvider) {
		p.logger = logger
	}
}

func NewMultiProtocolProvider(reg *registry.ChainRegistry, opts ...ProviderOption) *MultiProtocolProvider {
	p := &MultiProtocolProvider{
		registry:  reg,
		factories: make(map[registry.ProtocolFamily]AdapterFactory),
		signers:   make(map[string]SignerConfig),
		adapters:  make(map[string]Adapter),
		logger:    hclog.NewNullLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Registry returns the chain catalog this provider was built with.
func (p *MultiProtocolProvider) Registry() *registry.ChainRegistry {
	return p.registry
}

// AdapterFor returns the adapter bound to the named chain, creating it
// on first use. An unregistered protocol family fails fast with
// ErrNoAdapter rather than silently no-oping.
func (p *MultiProtocolProvider) AdapterFor(chainName string) (Adapter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if adapter, ok := p.adapters[chainName]; ok {
		return adapter, nil
	}

	chain, err := p.registry.GetByName(chainName)
	if err != nil {
		return nil, err
	}

	factory, ok := p.factories[chain.Protocol]
	if !ok {
		return nil, fmt.Errorf("%w: '%s' (chain '%s')", ErrNoAdapter, chain.Protocol, chainName)
	}

	signer, ok := p.signers[chainName]
	if !ok {
		signer = p.defaultSigner
	}

	adapter, err := factory(chain, signer, p.logger.Named(chainName))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s adapter for chain '%s': %w",
			chain.Protocol, chainName, err)
	}

	p.adapters[chainName] = adapter

	return adapter, nil
}

// SupportsFamily reports whether a factory is registered for the family.
func (p *MultiProtocolProvider) SupportsFamily(family registry.ProtocolFamily) bool {
	_, ok := p.factories[family]

	return ok
}

// EnsureFamilies verifies a factory exists for every named chain's
// protocol family. A missing factory is structural: no chain of that
// family can make progress, so callers abort the whole run before
// touching any chain.
func (p *MultiProtocolProvider) EnsureFamilies(chainNames ...string) error {
	for _, name := range chainNames {
		chain, err := p.registry.GetByName(name)
		if err != nil {
			return err
		}

		if !p.SupportsFamily(chain.Protocol) {
			return fmt.Errorf("%w: '%s' (chain '%s')", ErrNoAdapter, chain.Protocol, name)
		}
	}

	return nil
}

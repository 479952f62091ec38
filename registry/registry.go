package registry

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrChainNotFound  = errors.New("chain not found in registry")
	ErrDomainNotFound = errors.New("domain not found in registry")
)

// ProtocolFamily is the closed set of chain families an adapter can be
// selected for. Unknown families are rejected at registry load time so
// that a misconfigured chain fails before any RPC traffic happens.
type ProtocolFamily string

const (
	AccountModel ProtocolFamily = "evm"
	PDAModel     ProtocolFamily = "sealevel"
	CosmosModel  ProtocolFamily = "cosmosnative"
)

func ParseProtocolFamily(raw string) (ProtocolFamily, error) {
	switch ProtocolFamily(raw) {
	case AccountModel, PDAModel, CosmosModel:
		return ProtocolFamily(raw), nil
	default:
		return "", fmt.Errorf("unknown protocol family '%s'", raw)
	}
}

// Endpoint is a single RPC or explorer URL.
type Endpoint struct {
	HTTP string `yaml:"http" json:"http"`
}

// ChainMetadata is the static catalog entry for one chain. Immutable
// after registration.
type ChainMetadata struct {
	Name     string         `yaml:"name" json:"name"`
	ChainID  uint64         `yaml:"chainId" json:"chainId"`
	DomainID uint32         `yaml:"domainId" json:"domainId"`
	Protocol ProtocolFamily `yaml:"protocol" json:"protocol"`

	RPCURLs      []Endpoint `yaml:"rpcUrls" json:"rpcUrls"`
	GRPCURLs     []Endpoint `yaml:"grpcUrls,omitempty" json:"grpcUrls,omitempty"`
	ExplorerURLs []Endpoint `yaml:"explorerUrls,omitempty" json:"explorerUrls,omitempty"`

	// Cosmos-specific metadata
	Bech32Prefix string `yaml:"bech32Prefix,omitempty" json:"bech32Prefix,omitempty"`
	Denom        string `yaml:"denom,omitempty" json:"denom,omitempty"`
}

func (c *ChainMetadata) validate() error {
	if c.Name == "" {
		return errors.New("chain name is empty")
	}

	if c.DomainID == 0 {
		return fmt.Errorf("chain '%s' has no domain id", c.Name)
	}

	if _, err := ParseProtocolFamily(string(c.Protocol)); err != nil {
		return fmt.Errorf("chain '%s': %w", c.Name, err)
	}

	if len(c.RPCURLs) == 0 {
		return fmt.Errorf("chain '%s' has no rpc endpoints", c.Name)
	}

	return nil
}

// RPCURL returns the primary RPC endpoint.
func (c *ChainMetadata) RPCURL() string {
	return c.RPCURLs[0].HTTP
}

// GRPCURL returns the primary gRPC endpoint, empty when none is set.
func (c *ChainMetadata) GRPCURL() string {
	if len(c.GRPCURLs) == 0 {
		return ""
	}

	return c.GRPCURLs[0].HTTP
}

// ChainRegistry is a lookup-only catalog of chains keyed by name and by
// domain id. It is a value handed to the engine at construction time;
// there is no process-wide registry.
type ChainRegistry struct {
	byName   map[string]*ChainMetadata
	byDomain map[uint32]*ChainMetadata
}

func NewChainRegistry(chains []ChainMetadata) (*ChainRegistry, error) {
	r := &ChainRegistry{
		byName:   make(map[string]*ChainMetadata, len(chains)),
		byDomain: make(map[uint32]*ChainMetadata, len(chains)),
	}

	for i := range chains {
		chain := chains[i]

		if err := chain.validate(); err != nil {
			return nil, err
		}

		if _, exists := r.byName[chain.Name]; exists {
			return nil, fmt.Errorf("duplicate chain name '%s'", chain.Name)
		}

		if other, exists := r.byDomain[chain.DomainID]; exists {
			return nil, fmt.Errorf("chains '%s' and '%s' share domain id %d",
				other.Name, chain.Name, chain.DomainID)
		}

		r.byName[chain.Name] = &chain
		r.byDomain[chain.DomainID] = &chain
	}

	return r, nil
}

func (r *ChainRegistry) GetByName(name string) (*ChainMetadata, error) {
	chain, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrChainNotFound, name)
	}

	return chain, nil
}

func (r *ChainRegistry) GetByDomain(domainID uint32) (*ChainMetadata, error) {
	chain, ok := r.byDomain[domainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrDomainNotFound, domainID)
	}

	return chain, nil
}

func (r *ChainRegistry) Contains(name string) bool {
	_, ok := r.byName[name]

	return ok
}

// Names returns all registered chain names in deterministic order.
func (r *ChainRegistry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

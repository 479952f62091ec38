package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/0xPolygon/router-mesh/ism"
	"github.com/0xPolygon/router-mesh/registry"
	"github.com/0xPolygon/router-mesh/types"
)

var (
	ErrChainNotInRegistry = errors.New("configured chain is not present in the registry")
	ErrMissingMailbox     = errors.New("mailbox address is required for locally deployed chains")
	ErrMissingOwner       = errors.New("owner address is required for locally deployed chains")
)

// RouterConfig is the operator-authored desired state for one chain.
type RouterConfig struct {
	// Owner receives contract ownership at the end of a deploy run.
	Owner types.Bytes32 `json:"owner,omitempty"`

	// Mailbox is the chain's shared message-transport endpoint.
	Mailbox types.Bytes32 `json:"mailbox,omitempty"`

	// InterchainGasPaymaster is the shared fee module. Optional; the
	// zero value means the router keeps the mailbox default.
	InterchainGasPaymaster types.Bytes32 `json:"interchainGasPaymaster,omitempty"`

	// InterchainSecurityModule is either a concrete module address or a
	// declarative policy. Unset defaults to the mailbox default module.
	InterchainSecurityModule AddressOrPolicy `json:"interchainSecurityModule,omitempty"`

	// ForeignDeployment marks the chain's router as externally managed:
	// the engine never deploys or writes to it, only reads it as an
	// enrollment target.
	ForeignDeployment types.Bytes32 `json:"foreignDeployment,omitempty"`

	// RemoteRouterOverrides pins enrollment entries for chains whose
	// routers are not part of this deployment universe.
	RemoteRouterOverrides map[uint32]types.Bytes32 `json:"remoteRouterOverrides,omitempty"`

	// Upgradeable deploys the router behind a proxy with a dedicated
	// proxy admin.
	Upgradeable bool `json:"upgradeable,omitempty"`

	// Timelock additionally routes admin actions through a timelock.
	// Implies Upgradeable.
	Timelock bool `json:"timelock,omitempty"`
}

// IsForeign reports whether the router is externally managed.
func (c *RouterConfig) IsForeign() bool {
	return !c.ForeignDeployment.IsZero()
}

// DeployConfig is the full desired state, one entry per chain name. The
// map must be total over the deployment universe.
type DeployConfig map[string]*RouterConfig

// Validate checks the config against the chain registry. Configuration
// gaps are reported here, never silently defaulted.
func (dc DeployConfig) Validate(reg *registry.ChainRegistry) error {
	for name, cfg := range dc {
		if !reg.Contains(name) {
			return fmt.Errorf("%w: '%s'", ErrChainNotInRegistry, name)
		}

		if cfg == nil {
			return fmt.Errorf("chain '%s' has an empty router config", name)
		}

		if cfg.IsForeign() {
			continue
		}

		if cfg.Mailbox.IsZero() {
			return fmt.Errorf("%w (chain '%s')", ErrMissingMailbox, name)
		}

		if cfg.Owner.IsZero() {
			return fmt.Errorf("%w (chain '%s')", ErrMissingOwner, name)
		}

		if cfg.InterchainSecurityModule.IsDeclarative() {
			if err := cfg.InterchainSecurityModule.Policy().Validate(); err != nil {
				return fmt.Errorf("chain '%s' security module: %w", name, err)
			}
		}
	}

	return nil
}

// LocalChains returns the names of every chain the engine manages
// itself, foreign deployments excluded, in sorted order.
func (dc DeployConfig) LocalChains() []string {
	names := make([]string, 0, len(dc))

	for name, cfg := range dc {
		if cfg != nil && cfg.IsForeign() {
			continue
		}

		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// LoadFromFile reads a JSON deploy config from disk.
func LoadFromFile(path string) (DeployConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var dc DeployConfig
	if err := json.Unmarshal(data, &dc); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}

	return dc, nil
}

// AddressOrPolicyKind tags the three states a security-module field can
// be in. Consumers must handle all three; there is no implicit default.
type AddressOrPolicyKind int

const (
	Unset AddressOrPolicyKind = iota
	Concrete
	Declarative
)

// AddressOrPolicy is the explicit sum type for security-module
// configuration: an opaque module address, a declarative policy to be
// resolved and compared structurally, or nothing.
type AddressOrPolicy struct {
	kind    AddressOrPolicyKind
	address types.Bytes32
	policy  *ism.Policy
}

func ConcreteAddress(addr types.Bytes32) AddressOrPolicy {
	return AddressOrPolicy{kind: Concrete, address: addr}
}

func DeclarativePolicy(policy *ism.Policy) AddressOrPolicy {
	return AddressOrPolicy{kind: Declarative, policy: policy}
}

func (a AddressOrPolicy) Kind() AddressOrPolicyKind { return a.kind }
func (a AddressOrPolicy) IsUnset() bool             { return a.kind == Unset }
func (a AddressOrPolicy) IsConcrete() bool          { return a.kind == Concrete }
func (a AddressOrPolicy) IsDeclarative() bool       { return a.kind == Declarative }

// Address returns the concrete module address. Only meaningful for
// Concrete values.
func (a AddressOrPolicy) Address() types.Bytes32 { return a.address }

// Policy returns the declarative policy. Only meaningful for Declarative
// values.
func (a AddressOrPolicy) Policy() *ism.Policy { return a.policy }

// UnmarshalJSON accepts a hex address string, a policy object, or null.
func (a *AddressOrPolicy) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = AddressOrPolicy{}

		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		addr, err := types.StringToBytes32(raw)
		if err != nil {
			return fmt.Errorf("invalid security module address: %w", err)
		}

		*a = ConcreteAddress(addr)

		return nil
	}

	var policy ism.Policy
	if err := json.Unmarshal(data, &policy); err != nil {
		return fmt.Errorf("security module is neither an address nor a policy: %w", err)
	}

	*a = DeclarativePolicy(&policy)

	return nil
}

func (a AddressOrPolicy) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case Concrete:
		return json.Marshal(a.address.String())
	case Declarative:
		return json.Marshal(a.policy)
	default:
		return []byte("null"), nil
	}
}

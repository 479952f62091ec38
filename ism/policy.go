package ism

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/0xPolygon/router-mesh/types"
)

// ModuleType enumerates the security module shapes the engine understands.
type ModuleType string

const (
	// MessageIDMultisig verifies a quorum of validator signatures over the
	// message id.
	MessageIDMultisig ModuleType = "messageIdMultisig"

	// MerkleRootMultisig verifies a quorum of validator signatures over a
	// checkpointed merkle root.
	MerkleRootMultisig ModuleType = "merkleRootMultisig"

	// Aggregation requires a threshold of sub-modules to verify.
	Aggregation ModuleType = "aggregation"

	// Routing delegates verification to a per-origin-domain sub-module.
	Routing ModuleType = "routing"

	// Noop accepts every message. Used on test universes only.
	Noop ModuleType = "noop"
)

// Policy is a declarative, recursively-composed security module
// configuration. Two deployed modules at different addresses are
// considered equivalent when their derived policies match structurally.
type Policy struct {
	Type ModuleType `json:"type"`

	// multisig variants
	Validators []types.Bytes32 `json:"validators,omitempty"`
	Threshold  uint8           `json:"threshold,omitempty"`

	// aggregation
	Modules []*Policy `json:"modules,omitempty"`

	// routing
	Owner   types.Bytes32      `json:"owner,omitempty"`
	Domains map[uint32]*Policy `json:"domains,omitempty"`
}

func (p *Policy) Validate() error {
	if p == nil {
		return fmt.Errorf("nil security module policy")
	}

	switch p.Type {
	case MessageIDMultisig, MerkleRootMultisig:
		if len(p.Validators) == 0 {
			return fmt.Errorf("%s policy has no validators", p.Type)
		}

		if p.Threshold == 0 || int(p.Threshold) > len(p.Validators) {
			return fmt.Errorf("%s policy threshold %d is out of range for %d validators",
				p.Type, p.Threshold, len(p.Validators))
		}
	case Aggregation:
		if len(p.Modules) == 0 {
			return fmt.Errorf("aggregation policy has no sub-modules")
		}

		if p.Threshold == 0 || int(p.Threshold) > len(p.Modules) {
			return fmt.Errorf("aggregation policy threshold %d is out of range for %d modules",
				p.Threshold, len(p.Modules))
		}

		for _, sub := range p.Modules {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
	case Routing:
		for domain, sub := range p.Domains {
			if err := sub.Validate(); err != nil {
				return fmt.Errorf("routing policy domain %d: %w", domain, err)
			}
		}
	case Noop:
	default:
		return fmt.Errorf("unknown security module type '%s'", p.Type)
	}

	return nil
}

// Matches compares two policies structurally. Validator and sub-module
// order is not significant for multisig and aggregation variants.
func Matches(declared, actual *Policy) bool {
	if declared == nil || actual == nil {
		return declared == actual
	}

	if declared.Type != actual.Type {
		return false
	}

	switch declared.Type {
	case MessageIDMultisig, MerkleRootMultisig:
		return declared.Threshold == actual.Threshold &&
			sameValidatorSet(declared.Validators, actual.Validators)
	case Aggregation:
		return declared.Threshold == actual.Threshold &&
			sameModuleSet(declared.Modules, actual.Modules)
	case Routing:
		if len(declared.Domains) != len(actual.Domains) {
			return false
		}

		for domain, declaredSub := range declared.Domains {
			actualSub, ok := actual.Domains[domain]
			if !ok || !Matches(declaredSub, actualSub) {
				return false
			}
		}

		return true
	case Noop:
		return true
	default:
		return false
	}
}

func sameValidatorSet(a, b []types.Bytes32) bool {
	if len(a) != len(b) {
		return false
	}

	sortedA := sortedValidators(a)
	sortedB := sortedValidators(b)

	for i := range sortedA {
		if !sortedA[i].Equal(sortedB[i]) {
			return false
		}
	}

	return true
}

func sortedValidators(in []types.Bytes32) []types.Bytes32 {
	out := make([]types.Bytes32, len(in))
	copy(out, in)

	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})

	return out
}

// sameModuleSet matches aggregation sub-modules pairwise, ignoring order.
// Aggregation sets are small so the quadratic matching is fine.
func sameModuleSet(a, b []*Policy) bool {
	if len(a) != len(b) {
		return false
	}

	matched := make([]bool, len(b))

	for _, moduleA := range a {
		found := false

		for i, moduleB := range b {
			if matched[i] {
				continue
			}

			if Matches(moduleA, moduleB) {
				matched[i] = true
				found = true

				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}

// Describe renders a short human-readable summary used in violation
// descriptions and logs.
func (p *Policy) Describe() string {
	if p == nil {
		return "<none>"
	}

	switch p.Type {
	case MessageIDMultisig, MerkleRootMultisig:
		return fmt.Sprintf("%s(%d of %d validators)", p.Type, p.Threshold, len(p.Validators))
	case Aggregation:
		return fmt.Sprintf("aggregation(%d of %d modules)", p.Threshold, len(p.Modules))
	case Routing:
		return fmt.Sprintf("routing(%d domains)", len(p.Domains))
	default:
		return string(p.Type)
	}
}

func (p *Policy) String() string {
	raw, err := json.Marshal(p)
	if err != nil {
		return p.Describe()
	}

	return string(raw)
}

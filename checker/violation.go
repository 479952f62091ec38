package checker

import (
	"fmt"
	"sort"

	"github.com/0xPolygon/router-mesh/types"
)

// ViolationType tags each detectable drift class.
type ViolationType string

const (
	// TransportEndpointMismatch flags a router wired to the wrong mailbox.
	TransportEndpointMismatch ViolationType = "TransportEndpointMismatch"

	// FeeModuleMismatch flags a router wired to the wrong gas paymaster.
	FeeModuleMismatch ViolationType = "FeeModuleMismatch"

	// SecurityModuleMismatch flags a security module that differs from
	// the declared one, by address or by structure.
	SecurityModuleMismatch ViolationType = "SecurityModuleMismatch"

	// RouterEnrollmentMismatch flags a remote-router table that diverges
	// from the expected one; the violation carries the full diff.
	RouterEnrollmentMismatch ViolationType = "RouterEnrollmentMismatch"

	// MissingRouter flags a configuration gap: no resolvable router for
	// a chain in the deployment universe.
	MissingRouter ViolationType = "MissingRouter"

	// OwnershipMismatch flags a router owned by someone other than the
	// configured owner.
	OwnershipMismatch ViolationType = "OwnershipMismatch"
)

// ExpectedActual is one diverging enrollment entry.
type ExpectedActual struct {
	Expected types.Bytes32 `json:"expected"`
	Actual   types.Bytes32 `json:"actual"`
}

// Violation is one detected drift. Enrollment mismatches carry the
// per-domain diff, everything else compares two single values.
type Violation struct {
	Chain       string        `json:"chain"`
	Type        ViolationType `json:"type"`
	Contract    types.Bytes32 `json:"contract,omitempty"`
	Expected    types.Bytes32 `json:"expected,omitempty"`
	Actual      types.Bytes32 `json:"actual,omitempty"`
	Description string        `json:"description"`

	EnrollmentDiff map[uint32]ExpectedActual `json:"enrollmentDiff,omitempty"`
}

func (v *Violation) String() string {
	return fmt.Sprintf("[%s] %s: %s", v.Chain, v.Type, v.Description)
}

// Report is the outcome of one check run. Unreachable chains are kept
// apart from violations: "could not read" is not "read and diverged".
type Report struct {
	Violations  []Violation      `json:"violations"`
	Unreachable map[string]error `json:"-"`
}

// Clean reports whether every readable chain is compliant.
func (r *Report) Clean() bool {
	return len(r.Violations) == 0
}

// ByChain groups violations per chain name.
func (r *Report) ByChain() map[string][]Violation {
	out := map[string][]Violation{}
	for _, violation := range r.Violations {
		out[violation.Chain] = append(out[violation.Chain], violation)
	}

	return out
}

// UnreachableChains returns the sorted names of chains the checker
// could not read.
func (r *Report) UnreachableChains() []string {
	out := make([]string, 0, len(r.Unreachable))
	for chain := range r.Unreachable {
		out = append(out, chain)
	}

	sort.Strings(out)

	return out
}

package deployer

import (
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/0xPolygon/router-mesh/types"
)

// ChainResult is the per-chain outcome of a reconciliation run.
type ChainResult struct {
	Chain string

	Router     types.Bytes32
	ProxyAdmin types.Bytes32
	Timelock   types.Bytes32

	// Deployed is true when the router was freshly deployed during
	// this run, false when reused or foreign.
	Deployed bool

	// Foreign marks read-only enrollment targets.
	Foreign bool

	// Submissions counts state-changing transactions sent to the chain.
	Submissions int

	// SkipReason is set when ownership policy suppressed writes.
	SkipReason string

	// Err accumulates everything that went wrong on this chain.
	Err error
}

func (r *ChainResult) appendErr(err error) {
	r.Err = multierror.Append(r.Err, err).ErrorOrNil()
}

// DeploymentResult collects per-chain outcomes. Chain failures stay
// isolated here, they never abort the run.
type DeploymentResult struct {
	mu     sync.Mutex
	chains map[string]*ChainResult
}

func newDeploymentResult() *DeploymentResult {
	return &DeploymentResult{
		chains: map[string]*ChainResult{},
	}
}

func (r *DeploymentResult) put(result *ChainResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chains[result.Chain] = result
}

// Chain returns the result for one chain, nil when unknown.
func (r *DeploymentResult) Chain(name string) *ChainResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.chains[name]
}

// Chains returns all per-chain results ordered by chain name.
func (r *DeploymentResult) Chains() []*ChainResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*ChainResult, 0, len(r.chains))
	for _, result := range r.chains {
		out = append(out, result)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Chain < out[j].Chain
	})

	return out
}

// Err aggregates all chain errors, nil when every chain converged.
func (r *DeploymentResult) Err() error {
	var combined *multierror.Error

	for _, result := range r.Chains() {
		if result.Err != nil {
			combined = multierror.Append(combined, result.Err)
		}
	}

	return combined.ErrorOrNil()
}

// Routers returns the final chain-to-router table of the run.
func (r *DeploymentResult) Routers() map[string]types.Bytes32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]types.Bytes32, len(r.chains))

	for name, result := range r.chains {
		if !result.Router.IsZero() {
			out[name] = result.Router
		}
	}

	return out
}

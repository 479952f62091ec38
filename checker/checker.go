package checker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/0xPolygon/router-mesh/config"
	"github.com/0xPolygon/router-mesh/ism"
	"github.com/0xPolygon/router-mesh/provider"
	"github.com/0xPolygon/router-mesh/registry"
	"github.com/0xPolygon/router-mesh/types"
)

const defaultConcurrency = 8

// RouterChecker detects drift between the configured desired state and
// what is actually on chain. It never writes: a check run is safe
// against production at any time.
type RouterChecker struct {
	provider    *provider.MultiProtocolProvider
	concurrency int
	logger      hclog.Logger
}

type Option func(*RouterChecker)

func WithConcurrency(limit int) Option {
	return func(c *RouterChecker) {
		if limit > 0 {
			c.concurrency = limit
		}
	}
}

func WithLogger(logger hclog.Logger) Option {
	return func(c *RouterChecker) {
		c.logger = logger
	}
}

func NewRouterChecker(p *provider.MultiProtocolProvider, opts ...Option) *RouterChecker {
	c := &RouterChecker{
		provider:    p,
		concurrency: defaultConcurrency,
		logger:      hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Check audits every chain in cfg against the given chain-to-router
// table. Chains with no table entry become MissingRouter violations;
// chains that cannot be read are reported as unreachable, not as
// violations.
func (c *RouterChecker) Check(ctx context.Context, cfg config.DeployConfig,
	routers map[string]types.Bytes32) (*Report, error) {
	if err := cfg.Validate(c.provider.Registry()); err != nil {
		return nil, err
	}

	if err := c.provider.EnsureFamilies(cfg.LocalChains()...); err != nil {
		return nil, err
	}

	report := &Report{
		Unreachable: map[string]error{},
	}

	// config gaps are detectable without touching any chain
	for name, chainCfg := range cfg {
		if chainCfg.IsForeign() {
			continue
		}

		if router, ok := routers[name]; !ok || router.IsZero() {
			report.Violations = append(report.Violations, Violation{
				Chain:       name,
				Type:        MissingRouter,
				Description: fmt.Sprintf("no resolvable router for chain '%s'", name),
			})
		}
	}

	expected := c.expectedDomainTable(routers)

	var lock sync.Mutex

	g, ctx2 := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for name, chainCfg := range cfg {
		if chainCfg.IsForeign() {
			continue
		}

		router, ok := routers[name]
		if !ok || router.IsZero() {
			continue
		}

		name, chainCfg, router := name, chainCfg, router

		g.Go(func() error {
			violations, err := c.checkChain(ctx2, name, chainCfg, router, expected)

			lock.Lock()
			defer lock.Unlock()

			if err != nil {
				report.Unreachable[name] = err
			} else {
				report.Violations = append(report.Violations, violations...)
			}

			return nil
		})
	}

	_ = g.Wait()

	sort.Slice(report.Violations, func(i, j int) bool {
		if report.Violations[i].Chain != report.Violations[j].Chain {
			return report.Violations[i].Chain < report.Violations[j].Chain
		}

		return report.Violations[i].Type < report.Violations[j].Type
	})

	return report, nil
}

// checkChain audits one chain. A read failure marks the whole chain
// unreachable; partial judgments from a half-read chain would be noise.
func (c *RouterChecker) checkChain(ctx context.Context, chain string,
	chainCfg *config.RouterConfig, router types.Bytes32,
	expected map[uint32]types.Bytes32) ([]Violation, error) {
	adapter, err := c.provider.AdapterFor(chain)
	if err != nil {
		return nil, err
	}

	meta, err := c.provider.Registry().GetByName(chain)
	if err != nil {
		return nil, err
	}

	var violations []Violation

	owner, err := adapter.ReadOwner(ctx, router)
	if err != nil {
		return nil, fmt.Errorf("failed to read owner: %w", err)
	}

	if !owner.Equal(chainCfg.Owner) {
		violations = append(violations, Violation{
			Chain:       chain,
			Type:        OwnershipMismatch,
			Expected:    chainCfg.Owner,
			Actual:      owner,
			Description: fmt.Sprintf("router is owned by %s, expected %s", owner, chainCfg.Owner),
		})
	}

	mailbox, err := adapter.ReadMailbox(ctx, router)
	if err != nil {
		return nil, fmt.Errorf("failed to read mailbox: %w", err)
	}

	if !mailbox.Equal(chainCfg.Mailbox) {
		violations = append(violations, Violation{
			Chain:       chain,
			Type:        TransportEndpointMismatch,
			Expected:    chainCfg.Mailbox,
			Actual:      mailbox,
			Description: fmt.Sprintf("router transport endpoint is %s, expected %s", mailbox, chainCfg.Mailbox),
		})
	}

	if !chainCfg.InterchainGasPaymaster.IsZero() {
		gasPaymaster, err := adapter.ReadGasPaymaster(ctx, router)
		if err != nil {
			return nil, fmt.Errorf("failed to read gas paymaster: %w", err)
		}

		if !gasPaymaster.Equal(chainCfg.InterchainGasPaymaster) {
			violations = append(violations, Violation{
				Chain:       chain,
				Type:        FeeModuleMismatch,
				Expected:    chainCfg.InterchainGasPaymaster,
				Actual:      gasPaymaster,
				Description: fmt.Sprintf("router fee module is %s, expected %s",
					gasPaymaster, chainCfg.InterchainGasPaymaster),
			})
		}
	}

	if violation, err := c.checkSecurityModule(ctx, adapter, chain, chainCfg, router); err != nil {
		return nil, err
	} else if violation != nil {
		violations = append(violations, *violation)
	}

	if violation, err := c.checkEnrollments(ctx, adapter, meta, chainCfg, router, expected); err != nil {
		return nil, err
	} else if violation != nil {
		violations = append(violations, *violation)
	}

	for i := range violations {
		violations[i].Contract = router
	}

	return violations, nil
}

// checkSecurityModule compares the on-chain module against the declared
// value. Address inequality alone is not a violation when both sides
// resolve to the same structure.
func (c *RouterChecker) checkSecurityModule(ctx context.Context, adapter provider.Adapter,
	chain string, chainCfg *config.RouterConfig, router types.Bytes32) (*Violation, error) {
	declared := chainCfg.InterchainSecurityModule
	if declared.IsUnset() {
		return nil, nil
	}

	actual, err := adapter.ReadSecurityModule(ctx, router)
	if err != nil {
		return nil, fmt.Errorf("failed to read security module: %w", err)
	}

	switch declared.Kind() {
	case config.Concrete:
		if actual.Equal(declared.Address()) {
			return nil, nil
		}

		declaredPolicy, err := adapter.ResolveSecurityModule(ctx, declared.Address())
		if err == nil && declaredPolicy != nil {
			actualPolicy, err := adapter.ResolveSecurityModule(ctx, actual)
			if err == nil && actualPolicy != nil && ism.Matches(declaredPolicy, actualPolicy) {
				return nil, nil
			}
		}

		return &Violation{
			Chain:       chain,
			Type:        SecurityModuleMismatch,
			Expected:    declared.Address(),
			Actual:      actual,
			Description: fmt.Sprintf("security module is %s, expected %s", actual, declared.Address()),
		}, nil

	case config.Declarative:
		actualPolicy, err := adapter.ResolveSecurityModule(ctx, actual)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve security module: %w", err)
		}

		if ism.Matches(declared.Policy(), actualPolicy) {
			return nil, nil
		}

		return &Violation{
			Chain:       chain,
			Type:        SecurityModuleMismatch,
			Actual:      actual,
			Description: "security module structure does not match the declared policy",
		}, nil
	}

	return nil, nil
}

// checkEnrollments diffs the stored remote-router table against the
// expected one and reports all divergence in a single violation.
func (c *RouterChecker) checkEnrollments(ctx context.Context, adapter provider.Adapter,
	meta *registry.ChainMetadata, chainCfg *config.RouterConfig, router types.Bytes32,
	expected map[uint32]types.Bytes32) (*Violation, error) {
	current, err := adapter.ReadRemoteRouters(ctx, router)
	if err != nil {
		return nil, fmt.Errorf("failed to read remote routers: %w", err)
	}

	want := make(map[uint32]types.Bytes32, len(expected))

	for domain, remote := range expected {
		if domain == meta.DomainID {
			continue
		}

		want[domain] = remote
	}

	for domain, remote := range chainCfg.RemoteRouterOverrides {
		want[domain] = remote
	}

	diff := map[uint32]ExpectedActual{}

	for domain, remote := range want {
		if !current[domain].Equal(remote) {
			diff[domain] = ExpectedActual{Expected: remote, Actual: current[domain]}
		}
	}

	for domain, remote := range current {
		if _, ok := want[domain]; !ok {
			diff[domain] = ExpectedActual{Actual: remote}
		}
	}

	if len(diff) == 0 {
		return nil, nil
	}

	return &Violation{
		Chain:          meta.Name,
		Type:           RouterEnrollmentMismatch,
		Description:    fmt.Sprintf("%d enrollment entries diverge from the expected table", len(diff)),
		EnrollmentDiff: diff,
	}, nil
}

func (c *RouterChecker) expectedDomainTable(routers map[string]types.Bytes32) map[uint32]types.Bytes32 {
	expected := map[uint32]types.Bytes32{}

	for chain, router := range routers {
		if router.IsZero() {
			continue
		}

		meta, err := c.provider.Registry().GetByName(chain)
		if err != nil {
			continue
		}

		expected[meta.DomainID] = router
	}

	return expected
}

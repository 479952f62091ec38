package deployer

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/0xPolygon/router-mesh/config"
	"github.com/0xPolygon/router-mesh/ism"
	"github.com/0xPolygon/router-mesh/provider"
	"github.com/0xPolygon/router-mesh/types"
)

const defaultConcurrency = 8

// RouterDeployer is the reconciliation engine. A run converges every
// configured chain toward its desired state with the minimal set of
// writes: deploy only what is missing, enroll only diverging table
// entries, rewrite only mismatched infra wiring, and transfer
// ownership last. Chains fail independently; a failed chain never
// aborts the rest of the run.
type RouterDeployer struct {
	provider    *provider.MultiProtocolProvider
	store       *ArtifactStore
	policy      WritePolicy
	concurrency int
	logger      hclog.Logger
}

type Option func(*RouterDeployer)

func WithPolicy(policy WritePolicy) Option {
	return func(d *RouterDeployer) {
		d.policy = policy
	}
}

func WithConcurrency(limit int) Option {
	return func(d *RouterDeployer) {
		if limit > 0 {
			d.concurrency = limit
		}
	}
}

func WithArtifactStore(store *ArtifactStore) Option {
	return func(d *RouterDeployer) {
		d.store = store
	}
}

func WithLogger(logger hclog.Logger) Option {
	return func(d *RouterDeployer) {
		d.logger = logger
	}
}

func NewRouterDeployer(p *provider.MultiProtocolProvider, opts ...Option) *RouterDeployer {
	d := &RouterDeployer{
		provider:    p,
		policy:      SkipUnauthorized,
		concurrency: defaultConcurrency,
		logger:      hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.store == nil {
		d.store, _ = OpenArtifactStore("")
	}

	return d
}

// Deploy reconciles the whole fleet described by cfg. The returned
// result carries per-chain outcomes and errors; the error return is
// reserved for structural problems with the config itself.
func (d *RouterDeployer) Deploy(ctx context.Context, cfg config.DeployConfig) (*DeploymentResult, error) {
	if err := cfg.Validate(d.provider.Registry()); err != nil {
		return nil, err
	}

	if err := d.provider.EnsureFamilies(cfg.LocalChains()...); err != nil {
		return nil, err
	}

	result := newDeploymentResult()

	// foreign routers enter the table as-is, they are never written to
	for name, chainCfg := range cfg {
		if chainCfg.IsForeign() {
			result.put(&ChainResult{
				Chain:   name,
				Router:  chainCfg.ForeignDeployment,
				Foreign: true,
			})
		}
	}

	d.forEachLocalChain(ctx, cfg, func(ctx context.Context, name string, chainCfg *config.RouterConfig) {
		chainResult := &ChainResult{Chain: name}
		d.ensureRouter(ctx, name, chainCfg, chainResult)
		result.put(chainResult)
	})

	expected := d.expectedDomainTable(result)

	d.forEachLocalChain(ctx, cfg, func(ctx context.Context, name string, chainCfg *config.RouterConfig) {
		chainResult := result.Chain(name)
		if chainResult.Err != nil || chainResult.Router.IsZero() {
			return
		}

		d.reconcile(ctx, name, chainCfg, chainResult, expected)
		result.put(chainResult)
	})

	return result, nil
}

// forEachLocalChain runs fn for every locally deployed chain with the
// configured fan-out bound. Chain errors are recorded by fn itself,
// cancellation is the only thing that stops the group early.
func (d *RouterDeployer) forEachLocalChain(ctx context.Context, cfg config.DeployConfig,
	fn func(context.Context, string, *config.RouterConfig)) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for name, chainCfg := range cfg {
		if chainCfg.IsForeign() {
			continue
		}

		name, chainCfg := name, chainCfg

		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
				fn(gctx, name, chainCfg)

				return nil
			}
		})
	}

	_ = g.Wait()
}

// ensureRouter makes sure the chain has a live router contract,
// reusing a recorded deployment when its address still has code.
func (d *RouterDeployer) ensureRouter(ctx context.Context, chain string,
	chainCfg *config.RouterConfig, chainResult *ChainResult) {
	adapter, err := d.provider.AdapterFor(chain)
	if err != nil {
		chainResult.appendErr(err)

		return
	}

	argsHash := DeploymentArgsHash(chainCfg)

	if recorded, ok := d.store.Get(chain, RouterContractName, argsHash); ok {
		hasCode, err := adapter.HasCode(ctx, recorded)
		if err != nil {
			chainResult.appendErr(fmt.Errorf("failed to verify recorded router: %w", err))

			return
		}

		if hasCode {
			d.logger.Debug("reusing recorded router", "chain", chain, "router", recorded)
			chainResult.Router = recorded

			return
		}

		d.logger.Warn("recorded router has no code, redeploying", "chain", chain, "router", recorded)
	}

	deployment, err := adapter.DeployRouter(ctx, provider.RouterInit{
		Mailbox:        chainCfg.Mailbox,
		GasPaymaster:   chainCfg.InterchainGasPaymaster,
		SecurityModule: concreteModule(chainCfg.InterchainSecurityModule),
		Upgradeable:    chainCfg.Upgradeable || chainCfg.Timelock,
		Timelock:       chainCfg.Timelock,
	})
	if err != nil {
		chainResult.appendErr(fmt.Errorf("router deployment failed: %w", err))

		return
	}

	chainResult.Router = deployment.Router
	chainResult.ProxyAdmin = deployment.ProxyAdmin
	chainResult.Timelock = deployment.Timelock
	chainResult.Deployed = true
	chainResult.Submissions++

	if err := d.store.Put(chain, RouterContractName, argsHash, deployment.Router); err != nil {
		chainResult.appendErr(fmt.Errorf("failed to record deployment: %w", err))
	}

	d.logger.Info("router deployed", "chain", chain, "router", deployment.Router)
}

// reconcile converges one chain: enrollment table, infra wiring, then
// ownership. Writes are gated by the run's ownership policy.
func (d *RouterDeployer) reconcile(ctx context.Context, chain string,
	chainCfg *config.RouterConfig, chainResult *ChainResult, expected map[uint32]types.Bytes32) {
	adapter, err := d.provider.AdapterFor(chain)
	if err != nil {
		chainResult.appendErr(err)

		return
	}

	currentOwner, err := adapter.ReadOwner(ctx, chainResult.Router)
	if err != nil {
		chainResult.appendErr(fmt.Errorf("failed to read owner: %w", err))

		return
	}

	if d.policy == SkipUnauthorized {
		signer, err := adapter.SignerAddress()
		if err != nil || !signer.Equal(currentOwner) {
			chainResult.SkipReason = fmt.Sprintf(
				"signer is not the current owner %s, writes skipped", currentOwner)
			d.logger.Info("skipping writes", "chain", chain, "owner", currentOwner)

			return
		}
	}

	d.reconcileEnrollments(ctx, adapter, chain, chainCfg, chainResult, expected)
	d.reconcileInfra(ctx, adapter, chain, chainCfg, chainResult)
	d.reconcileOwnership(ctx, adapter, chainCfg, chainResult, currentOwner)
}

// reconcileEnrollments diffs the stored remote-router table against
// the expected one and batches only diverging entries, including
// removal of stale domains, into a single submission.
func (d *RouterDeployer) reconcileEnrollments(ctx context.Context, adapter provider.Adapter,
	chain string, chainCfg *config.RouterConfig, chainResult *ChainResult,
	expected map[uint32]types.Bytes32) {
	meta, err := d.provider.Registry().GetByName(chain)
	if err != nil {
		chainResult.appendErr(err)

		return
	}

	current, err := adapter.ReadRemoteRouters(ctx, chainResult.Router)
	if err != nil {
		chainResult.appendErr(fmt.Errorf("failed to read remote routers: %w", err))

		return
	}

	want := make(map[uint32]types.Bytes32, len(expected))

	for domain, router := range expected {
		if domain == meta.DomainID {
			continue
		}

		want[domain] = router
	}

	for domain, router := range chainCfg.RemoteRouterOverrides {
		want[domain] = router
	}

	var updates []provider.EnrollmentUpdate

	for domain, router := range want {
		if !current[domain].Equal(router) {
			updates = append(updates, provider.EnrollmentUpdate{Domain: domain, Router: router})
		}
	}

	for domain := range current {
		if _, ok := want[domain]; !ok {
			updates = append(updates, provider.EnrollmentUpdate{Domain: domain})
		}
	}

	if len(updates) == 0 {
		return
	}

	sort.Slice(updates, func(i, j int) bool {
		return updates[i].Domain < updates[j].Domain
	})

	if err := d.submit(ctx, chainResult, "enrollment update", func() (provider.TxHandle, error) {
		return adapter.SubmitEnrollment(ctx, chainResult.Router, updates)
	}); err == nil {
		d.logger.Info("enrollment table updated", "chain", chain, "entries", len(updates))
	}
}

// reconcileInfra read-compares the shared infra wiring and rewrites
// only mismatched values.
func (d *RouterDeployer) reconcileInfra(ctx context.Context, adapter provider.Adapter,
	chain string, chainCfg *config.RouterConfig, chainResult *ChainResult) {
	router := chainResult.Router

	mailbox, err := adapter.ReadMailbox(ctx, router)
	if err != nil {
		chainResult.appendErr(fmt.Errorf("failed to read mailbox: %w", err))
	} else if !mailbox.Equal(chainCfg.Mailbox) {
		_ = d.submit(ctx, chainResult, "mailbox update", func() (provider.TxHandle, error) {
			return adapter.SubmitMailboxUpdate(ctx, router, chainCfg.Mailbox)
		})
	}

	if !chainCfg.InterchainGasPaymaster.IsZero() {
		gasPaymaster, err := adapter.ReadGasPaymaster(ctx, router)
		if err != nil {
			chainResult.appendErr(fmt.Errorf("failed to read gas paymaster: %w", err))
		} else if !gasPaymaster.Equal(chainCfg.InterchainGasPaymaster) {
			_ = d.submit(ctx, chainResult, "gas paymaster update", func() (provider.TxHandle, error) {
				return adapter.SubmitGasPaymasterUpdate(ctx, router, chainCfg.InterchainGasPaymaster)
			})
		}
	}

	d.reconcileSecurityModule(ctx, adapter, chain, chainCfg, chainResult)
}

func (d *RouterDeployer) reconcileSecurityModule(ctx context.Context, adapter provider.Adapter,
	chain string, chainCfg *config.RouterConfig, chainResult *ChainResult) {
	declared := chainCfg.InterchainSecurityModule
	if declared.IsUnset() {
		return
	}

	actual, err := adapter.ReadSecurityModule(ctx, chainResult.Router)
	if err != nil {
		chainResult.appendErr(fmt.Errorf("failed to read security module: %w", err))

		return
	}

	switch declared.Kind() {
	case config.Concrete:
		if !actual.Equal(declared.Address()) {
			_ = d.submit(ctx, chainResult, "security module update", func() (provider.TxHandle, error) {
				return adapter.SubmitSecurityModuleUpdate(ctx, chainResult.Router, declared.Address())
			})
		}

	case config.Declarative:
		actualPolicy, err := adapter.ResolveSecurityModule(ctx, actual)
		if err != nil {
			chainResult.appendErr(fmt.Errorf("failed to resolve security module: %w", err))

			return
		}

		if !ism.Matches(declared.Policy(), actualPolicy) {
			// a declarative policy names no concrete module to install,
			// drift can only be surfaced here
			chainResult.appendErr(fmt.Errorf(
				"security module on chain %s does not match the declared policy; "+
					"declarative policies cannot be converged automatically", chain))
		}
	}
}

// reconcileOwnership transfers ownership as the very last step, and
// only when the on-chain owner differs from the configured one.
func (d *RouterDeployer) reconcileOwnership(ctx context.Context, adapter provider.Adapter,
	chainCfg *config.RouterConfig, chainResult *ChainResult, currentOwner types.Bytes32) {
	if currentOwner.Equal(chainCfg.Owner) {
		return
	}

	_ = d.submit(ctx, chainResult, "ownership transfer", func() (provider.TxHandle, error) {
		return adapter.SubmitOwnershipTransfer(ctx, chainResult.Router, chainCfg.Owner)
	})
}

// submit sends one write and waits for inclusion, folding failures
// into the chain result.
func (d *RouterDeployer) submit(ctx context.Context, chainResult *ChainResult,
	operation string, send func() (provider.TxHandle, error)) error {
	handle, err := send()
	if err != nil {
		err = fmt.Errorf("%s failed: %w", operation, err)
		chainResult.appendErr(err)

		return err
	}

	chainResult.Submissions++

	txResult, err := handle.Wait(ctx)
	if err != nil {
		err = fmt.Errorf("%s failed while waiting for inclusion: %w", operation, err)
		chainResult.appendErr(err)

		return err
	}

	if !txResult.Success {
		err = fmt.Errorf("%s reverted: %s", operation, txResult.Hash)
		chainResult.appendErr(err)

		return err
	}

	return nil
}

// expectedDomainTable builds the global domain-to-router table from
// the run's resolved routers.
func (d *RouterDeployer) expectedDomainTable(result *DeploymentResult) map[uint32]types.Bytes32 {
	expected := map[uint32]types.Bytes32{}

	for chain, router := range result.Routers() {
		meta, err := d.provider.Registry().GetByName(chain)
		if err != nil {
			continue
		}

		expected[meta.DomainID] = router
	}

	return expected
}

// DeploymentArgsHash derives the artifact-store key material for a
// chain's router deployment.
func DeploymentArgsHash(chainCfg *config.RouterConfig) string {
	flags := []byte{0, 0}
	if chainCfg.Upgradeable {
		flags[0] = 1
	}

	if chainCfg.Timelock {
		flags[1] = 1
	}

	module := concreteModule(chainCfg.InterchainSecurityModule)

	return HashArgs(
		chainCfg.Mailbox.Bytes(),
		chainCfg.InterchainGasPaymaster.Bytes(),
		module.Bytes(),
		flags,
	)
}

// concreteModule extracts the deployable module address; declarative
// policies have no concrete module to install at deploy time.
func concreteModule(module config.AddressOrPolicy) types.Bytes32 {
	if module.IsConcrete() {
		return module.Address()
	}

	return types.Bytes32{}
}

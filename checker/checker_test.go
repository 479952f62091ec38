package checker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0xPolygon/router-mesh/config"
	"github.com/0xPolygon/router-mesh/deployer"
	"github.com/0xPolygon/router-mesh/ism"
	"github.com/0xPolygon/router-mesh/provider"
	"github.com/0xPolygon/router-mesh/provider/memchain"
	"github.com/0xPolygon/router-mesh/registry"
	"github.com/0xPolygon/router-mesh/types"
)

const testSignerKey = "0x00000000000000000000000000000000000000000000000000000000000000a1"

func testSigner(t *testing.T) types.Bytes32 {
	t.Helper()

	signer, err := types.StringToBytes32(testSignerKey)
	require.NoError(t, err)

	return signer
}

type testEnv struct {
	backend  *memchain.Backend
	provider *provider.MultiProtocolProvider
	cfg      config.DeployConfig
}

func newTestEnv(t *testing.T, chains ...string) *testEnv {
	t.Helper()

	backend := memchain.NewBackend()
	metadata := make([]registry.ChainMetadata, 0, len(chains))
	cfg := config.DeployConfig{}

	for i, name := range chains {
		backend.AddChain(name)
		metadata = append(metadata, registry.ChainMetadata{
			Name:     name,
			DomainID: uint32(100 * (i + 1)),
			Protocol: registry.AccountModel,
			RPCURLs:  []registry.Endpoint{{HTTP: "http://localhost"}},
		})

		cfg[name] = &config.RouterConfig{
			Owner:   testSigner(t),
			Mailbox: types.StringToAddress("0xffff").Bytes32(),
		}
	}

	reg, err := registry.NewChainRegistry(metadata)
	require.NoError(t, err)

	p := provider.NewMultiProtocolProvider(reg,
		provider.WithFactory(registry.AccountModel, backend.Factory()),
		provider.WithDefaultSigner(provider.SignerConfig{HexKey: testSignerKey}),
	)

	return &testEnv{backend: backend, provider: p, cfg: cfg}
}

// deploy converges the fleet and returns the resolved router table.
func (e *testEnv) deploy(t *testing.T) map[string]types.Bytes32 {
	t.Helper()

	result, err := deployer.NewRouterDeployer(e.provider).Deploy(context.Background(), e.cfg)
	require.NoError(t, err)
	require.NoError(t, result.Err())

	return result.Routers()
}

func (e *testEnv) check(t *testing.T, routers map[string]types.Bytes32) *Report {
	t.Helper()

	report, err := NewRouterChecker(e.provider).Check(context.Background(), e.cfg, routers)
	require.NoError(t, err)

	return report
}

func testValidators(t *testing.T) []types.Bytes32 {
	t.Helper()

	out := make([]types.Bytes32, 0, 3)

	for _, raw := range []string{"0x01", "0x02", "0x03"} {
		v, err := types.StringToBytes32(raw)
		require.NoError(t, err)

		out = append(out, v)
	}

	return out
}

func findViolation(t *testing.T, report *Report, chain string, vt ViolationType) *Violation {
	t.Helper()

	for i := range report.Violations {
		if report.Violations[i].Chain == chain && report.Violations[i].Type == vt {
			return &report.Violations[i]
		}
	}

	t.Fatalf("no %s violation for chain %s in %+v", vt, chain, report.Violations)

	return nil
}

func TestCheck_CleanAfterDeploy(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "alpha", "beta", "gamma")
	routers := env.deploy(t)

	report := env.check(t, routers)

	require.True(t, report.Clean())
	require.Empty(t, report.Unreachable)
}

func TestCheck_MissingRouter(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "alpha", "beta")
	routers := env.deploy(t)

	delete(routers, "beta")

	report := env.check(t, routers)

	require.False(t, report.Clean())
	findViolation(t, report, "beta", MissingRouter)

	// alpha is still checked: its table expects a beta entry that the
	// resolvable set no longer contains
	alpha := findViolation(t, report, "alpha", RouterEnrollmentMismatch)
	require.Contains(t, alpha.EnrollmentDiff, uint32(200))
	require.True(t, alpha.EnrollmentDiff[200].Expected.IsZero())
}

func TestCheck_EnrollmentDrift(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "alpha", "beta")
	routers := env.deploy(t)

	wrong := types.StringToAddress("0xbad").Bytes32()
	stale := types.StringToAddress("0xdead").Bytes32()
	env.backend.Enroll("alpha", routers["alpha"], 200, wrong)
	env.backend.Enroll("alpha", routers["alpha"], 999, stale)

	report := env.check(t, routers)

	violation := findViolation(t, report, "alpha", RouterEnrollmentMismatch)
	require.Len(t, violation.EnrollmentDiff, 2)

	require.Equal(t, routers["beta"], violation.EnrollmentDiff[200].Expected)
	require.Equal(t, wrong, violation.EnrollmentDiff[200].Actual)

	// the stale domain has no expected counterpart
	require.True(t, violation.EnrollmentDiff[999].Expected.IsZero())
	require.Equal(t, stale, violation.EnrollmentDiff[999].Actual)

	// the drifted chain does not contaminate the other one
	require.Len(t, report.ByChain()["beta"], 0)
}

func TestCheck_OwnershipMismatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "alpha")
	routers := env.deploy(t)

	expectedOwner := env.cfg["alpha"].Owner
	env.cfg["alpha"].Owner = types.StringToAddress("0x4242").Bytes32()

	report := env.check(t, routers)

	violation := findViolation(t, report, "alpha", OwnershipMismatch)
	require.Equal(t, env.cfg["alpha"].Owner, violation.Expected)
	require.Equal(t, expectedOwner, violation.Actual)
}

func TestCheck_TransportAndFeeMismatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "alpha")
	routers := env.deploy(t)

	env.cfg["alpha"].Mailbox = types.StringToAddress("0x1234").Bytes32()
	env.cfg["alpha"].InterchainGasPaymaster = types.StringToAddress("0x5678").Bytes32()

	report := env.check(t, routers)

	findViolation(t, report, "alpha", TransportEndpointMismatch)

	fee := findViolation(t, report, "alpha", FeeModuleMismatch)
	require.Equal(t, env.cfg["alpha"].InterchainGasPaymaster, fee.Expected)
	require.True(t, fee.Actual.IsZero())
}

func TestCheck_SecurityModuleConcreteMismatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "alpha")
	declared := types.StringToAddress("0xaaaa").Bytes32()

	env.cfg["alpha"].InterchainSecurityModule = config.ConcreteAddress(declared)
	routers := env.deploy(t)

	// induce drift after deploy by reverting the module on chain
	env.cfg["alpha"].InterchainSecurityModule = config.ConcreteAddress(
		types.StringToAddress("0xbbbb").Bytes32())

	report := env.check(t, routers)

	violation := findViolation(t, report, "alpha", SecurityModuleMismatch)
	require.Equal(t, declared, violation.Actual)
}

func TestCheck_SecurityModuleStructuralMatchSuppressesAddressMismatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "alpha")

	policy := &ism.Policy{
		Type:       ism.MessageIDMultisig,
		Threshold:  2,
		Validators: testValidators(t),
	}

	declared := types.StringToAddress("0xaaaa").Bytes32()
	installed := types.StringToAddress("0xbbbb").Bytes32()
	env.backend.SetPolicy("alpha", declared, policy)
	env.backend.SetPolicy("alpha", installed, policy)

	env.cfg["alpha"].InterchainSecurityModule = config.ConcreteAddress(installed)
	routers := env.deploy(t)

	// different address, same structure: not a violation
	env.cfg["alpha"].InterchainSecurityModule = config.ConcreteAddress(declared)

	report := env.check(t, routers)
	require.True(t, report.Clean())
}

func TestCheck_SecurityModuleDeclarative(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "alpha")

	policy := &ism.Policy{
		Type:       ism.MessageIDMultisig,
		Threshold:  2,
		Validators: testValidators(t),
	}

	installed := types.StringToAddress("0xbbbb").Bytes32()
	env.backend.SetPolicy("alpha", installed, policy)

	env.cfg["alpha"].InterchainSecurityModule = config.ConcreteAddress(installed)
	routers := env.deploy(t)

	env.cfg["alpha"].InterchainSecurityModule = config.DeclarativePolicy(policy)

	report := env.check(t, routers)
	require.True(t, report.Clean())

	// raising the threshold makes the installed module diverge
	env.cfg["alpha"].InterchainSecurityModule = config.DeclarativePolicy(&ism.Policy{
		Type:       ism.MessageIDMultisig,
		Threshold:  3,
		Validators: testValidators(t),
	})

	report = env.check(t, routers)
	findViolation(t, report, "alpha", SecurityModuleMismatch)
}

func TestCheck_UnreachableChainIsNotAViolation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "alpha", "beta")
	routers := env.deploy(t)

	readErr := errors.New("node unavailable")
	env.backend.FailReads("beta", readErr)

	report := env.check(t, routers)

	require.True(t, report.Clean())
	require.Equal(t, []string{"beta"}, report.UnreachableChains())
	require.ErrorIs(t, report.Unreachable["beta"], readErr)
}

func TestCheck_ForeignChainIsNotAudited(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "alpha", "offshore")
	foreignRouter := types.StringToAddress("0xf0f0").Bytes32()

	env.cfg["offshore"] = &config.RouterConfig{ForeignDeployment: foreignRouter}

	routers := env.deploy(t)
	require.Equal(t, foreignRouter, routers["offshore"])

	// nothing on offshore is readable, but foreign chains are only
	// enrollment targets, never audit subjects
	env.backend.FailReads("offshore", errors.New("node unavailable"))

	report := env.check(t, routers)

	require.True(t, report.Clean())
	require.Empty(t, report.Unreachable)
}

func TestCheck_RejectsUnknownChain(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, "alpha")
	env.cfg["ghost"] = &config.RouterConfig{
		Owner:   testSigner(t),
		Mailbox: types.StringToAddress("0x1").Bytes32(),
	}

	_, err := NewRouterChecker(env.provider).Check(context.Background(), env.cfg, nil)
	require.ErrorIs(t, err, config.ErrChainNotInRegistry)
}

func TestCheck_UnsupportedFamilyAbortsBatch(t *testing.T) {
	t.Parallel()

	backend := memchain.NewBackend()
	backend.AddChain("alpha")

	reg, err := registry.NewChainRegistry([]registry.ChainMetadata{
		{
			Name:     "alpha",
			DomainID: 100,
			Protocol: registry.AccountModel,
			RPCURLs:  []registry.Endpoint{{HTTP: "http://localhost"}},
		},
		{
			Name:     "solchain",
			DomainID: 200,
			Protocol: registry.PDAModel,
			RPCURLs:  []registry.Endpoint{{HTTP: "http://localhost"}},
		},
	})
	require.NoError(t, err)

	p := provider.NewMultiProtocolProvider(reg,
		provider.WithFactory(registry.AccountModel, backend.Factory()),
	)

	cfg := config.DeployConfig{
		"alpha":    {Owner: testSigner(t), Mailbox: types.StringToAddress("0xffff").Bytes32()},
		"solchain": {Owner: testSigner(t), Mailbox: types.StringToAddress("0xffff").Bytes32()},
	}

	report, err := NewRouterChecker(p).Check(context.Background(), cfg, nil)
	require.ErrorIs(t, err, provider.ErrNoAdapter)
	require.Nil(t, report)
}

func TestReport_ByChainAndString(t *testing.T) {
	t.Parallel()

	report := &Report{
		Violations: []Violation{
			{Chain: "alpha", Type: OwnershipMismatch, Description: "owner differs"},
			{Chain: "alpha", Type: TransportEndpointMismatch, Description: "mailbox differs"},
			{Chain: "beta", Type: MissingRouter, Description: "no router"},
		},
	}

	require.False(t, report.Clean())

	byChain := report.ByChain()
	require.Len(t, byChain["alpha"], 2)
	require.Len(t, byChain["beta"], 1)

	require.Equal(t, "[beta] MissingRouter: no router", report.Violations[2].String())
}

package check

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xPolygon/router-mesh/checker"
	"github.com/0xPolygon/router-mesh/command"
	"github.com/0xPolygon/router-mesh/config"
	"github.com/0xPolygon/router-mesh/deployer"
	"github.com/0xPolygon/router-mesh/registry"
	"github.com/0xPolygon/router-mesh/types"
)

var (
	params checkParams

	errDriftDetected = errors.New("drift detected")
)

// GetCommand returns the check command
func GetCommand() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:          "check",
		Short:        "Audits the deployed router fleet against its desired state without writing",
		PreRunE:      runPreRun,
		RunE:         runCommand,
		SilenceUsage: true,
	}

	setFlags(checkCmd)

	return checkCmd
}

func setFlags(cmd *cobra.Command) {
	params.RegisterFlags(cmd)

	cmd.Flags().StringVar(
		&params.artifactsPath,
		command.ArtifactsPathFlag,
		command.DefaultArtifactsFileName,
		"the path to the deployment artifact store",
	)
}

func runPreRun(_ *cobra.Command, _ []string) error {
	return params.validateFlags()
}

// runCommand exits nonzero when drift is found, so the command slots
// into CI pipelines directly.
func runCommand(cmd *cobra.Command, _ []string) error {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	logger := params.Logger()

	reg, err := registry.LoadFromFile(params.RegistryPath)
	if err != nil {
		return fmt.Errorf("failed to load chain registry: %w", err)
	}

	cfg, err := params.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load deploy config: %w", err)
	}

	p := params.BuildProvider(reg, logger)

	store, err := deployer.OpenArtifactStore(params.artifactsPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact store: %w", err)
	}

	c := checker.NewRouterChecker(p,
		checker.WithConcurrency(params.Concurrency),
		checker.WithLogger(logger),
	)

	report, err := c.Check(cmd.Context(), cfg, resolveRouters(cfg, store))
	if err != nil {
		return err
	}

	outputter.SetCommandResult(newCheckResult(report))

	if !report.Clean() {
		return errDriftDetected
	}

	return nil
}

// resolveRouters builds the chain-to-router table from the artifact
// store and the configured foreign deployments. Chains with no recorded
// router surface as MissingRouter violations.
func resolveRouters(cfg config.DeployConfig, store *deployer.ArtifactStore) map[string]types.Bytes32 {
	routers := map[string]types.Bytes32{}

	for name, chainCfg := range cfg {
		if chainCfg.IsForeign() {
			routers[name] = chainCfg.ForeignDeployment

			continue
		}

		if recorded, ok := store.Get(name, deployer.RouterContractName,
			deployer.DeploymentArgsHash(chainCfg)); ok {
			routers[name] = recorded
		}
	}

	return routers
}

package deploy

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xPolygon/router-mesh/command"
	"github.com/0xPolygon/router-mesh/deployer"
	"github.com/0xPolygon/router-mesh/registry"
)

var params deployParams

// GetCommand returns the deploy command
func GetCommand() *cobra.Command {
	deployCmd := &cobra.Command{
		Use:          "deploy",
		Short:        "Converges every configured chain toward its desired router state",
		PreRunE:      runPreRun,
		RunE:         runCommand,
		SilenceUsage: true,
	}

	setFlags(deployCmd)

	return deployCmd
}

func setFlags(cmd *cobra.Command) {
	params.RegisterFlags(cmd)

	cmd.Flags().StringVar(
		&params.artifactsPath,
		command.ArtifactsPathFlag,
		command.DefaultArtifactsFileName,
		"the path to the deployment artifact store",
	)

	cmd.Flags().StringVar(
		&params.policyRaw,
		command.WritePolicyFlag,
		string(deployer.SkipUnauthorized),
		"the write policy for routers the signer does not own "+
			"(skip-unauthorized or attempt-all)",
	)
}

func runPreRun(_ *cobra.Command, _ []string) error {
	return params.validateFlags()
}

// runCommand fails the process only on structural problems: a broken
// registry, config, or signer setup. Per-chain failures are part of the
// printed result, a partially converged fleet is still a completed run.
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

	d := deployer.NewRouterDeployer(p,
		deployer.WithPolicy(params.policy),
		deployer.WithConcurrency(params.Concurrency),
		deployer.WithArtifactStore(store),
		deployer.WithLogger(logger),
	)

	result, err := d.Deploy(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	outputter.SetCommandResult(newDeployResult(result))

	return nil
}

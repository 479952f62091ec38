package helper

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"

	"github.com/0xPolygon/router-mesh/command"
	"github.com/0xPolygon/router-mesh/config"
	"github.com/0xPolygon/router-mesh/provider"
	"github.com/0xPolygon/router-mesh/provider/cosmosmod"
	"github.com/0xPolygon/router-mesh/provider/evm"
	"github.com/0xPolygon/router-mesh/provider/sealevel"
	"github.com/0xPolygon/router-mesh/registry"
)

var ErrMissingSignerKey = errors.New("no signer key provided, use --signer-key or " +
	command.SignerKeyEnvVar)

func RegisterJSONOutputFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool(
		command.JSONOutputFlag,
		false,
		"get all outputs in json format (default false)",
	)
}

// EngineParams are the flags every engine command shares: where the
// chain catalog and desired state live and how to reach the chains.
type EngineParams struct {
	RegistryPath string
	ConfigPath   string
	ContractsDir string
	SignerKey    string
	Chains       []string
	Concurrency  int
	LogLevel     string
}

func (ep *EngineParams) RegisterFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&ep.RegistryPath,
		command.RegistryPathFlag,
		command.DefaultRegistryFileName,
		"the path to the chain registry file",
	)

	cmd.Flags().StringVar(
		&ep.ConfigPath,
		command.ConfigPathFlag,
		command.DefaultConfigFileName,
		"the path to the router deploy config file",
	)

	cmd.Flags().StringVar(
		&ep.ContractsDir,
		command.ContractsDirFlag,
		"",
		"the directory holding compiled contract artifacts for account-model chains",
	)

	cmd.Flags().StringVar(
		&ep.SignerKey,
		command.SignerKeyFlag,
		"",
		"the hex-encoded signer key, falls back to "+command.SignerKeyEnvVar,
	)

	cmd.Flags().StringSliceVar(
		&ep.Chains,
		command.ChainsFlag,
		nil,
		"restrict the run to the given chains (default all configured chains)",
	)

	cmd.Flags().IntVar(
		&ep.Concurrency,
		command.ConcurrencyFlag,
		command.DefaultConcurrency,
		"the maximum number of chains worked on in parallel",
	)

	cmd.Flags().StringVar(
		&ep.LogLevel,
		command.LogLevelFlag,
		"INFO",
		"the log level for engine output",
	)
}

func (ep *EngineParams) Validate() error {
	if ep.RegistryPath == "" {
		return errors.New("registry path is required")
	}

	if ep.ConfigPath == "" {
		return errors.New("config path is required")
	}

	if ep.SignerKey == "" {
		ep.SignerKey = os.Getenv(command.SignerKeyEnvVar)
	}

	return nil
}

func (ep *EngineParams) Logger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  "router-mesh",
		Level: hclog.LevelFromString(ep.LogLevel),
	})
}

// LoadConfig reads the deploy config, optionally narrowed to the
// requested chains. A narrowed run reconciles a sub-universe: chains
// outside the selection drop out of the expected enrollment table too.
func (ep *EngineParams) LoadConfig() (config.DeployConfig, error) {
	cfg, err := config.LoadFromFile(ep.ConfigPath)
	if err != nil {
		return nil, err
	}

	if len(ep.Chains) == 0 {
		return cfg, nil
	}

	narrowed := config.DeployConfig{}

	for _, name := range ep.Chains {
		chainCfg, ok := cfg[name]
		if !ok {
			return nil, fmt.Errorf("chain '%s' is not part of the configured universe", name)
		}

		narrowed[name] = chainCfg
	}

	return narrowed, nil
}

// RequireSigner enforces a signer key for commands that write to
// chains. Read-only commands skip this and run without key material.
func (ep *EngineParams) RequireSigner() error {
	if ep.SignerKey == "" {
		return ErrMissingSignerKey
	}

	return nil
}

// BuildProvider wires one adapter factory per protocol family the
// registry can name. An empty signer key is allowed: it leaves every
// chain read-only, writes then fail with the adapter's signer-missing
// error.
func (ep *EngineParams) BuildProvider(reg *registry.ChainRegistry,
	logger hclog.Logger) *provider.MultiProtocolProvider {
	return provider.NewMultiProtocolProvider(reg,
		provider.WithFactory(registry.AccountModel, evm.NewFactory(ep.ContractsDir)),
		provider.WithFactory(registry.PDAModel, sealevel.NewFactory()),
		provider.WithFactory(registry.CosmosModel, cosmosmod.NewFactory()),
		provider.WithDefaultSigner(provider.SignerConfig{HexKey: ep.SignerKey}),
		provider.WithLogger(logger),
	)
}

// OUTPUT FORMATTING //

// FormatList formats a list, using a specific blank value replacement
func FormatList(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"

	return columnize.Format(in, columnConf)
}

// FormatKV formats key value pairs:
//
// Key = Value
//
// Key = <none>
func FormatKV(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"
	columnConf.Glue = " = "

	return columnize.Format(in, columnConf)
}

package command

const (
	DefaultRegistryFileName  = "registry.yaml"
	DefaultConfigFileName    = "routers.json"
	DefaultArtifactsFileName = "artifacts.json"
	DefaultConcurrency       = 8
)

const (
	JSONOutputFlag    = "json"
	RegistryPathFlag  = "registry"
	ConfigPathFlag    = "config"
	ArtifactsPathFlag = "artifacts"
	ContractsDirFlag  = "contracts-dir"
	ChainsFlag        = "chains"
	ConcurrencyFlag   = "concurrency"
	SignerKeyFlag     = "signer-key"
	SignerKeyEnvVar   = "ROUTER_MESH_SIGNER_KEY"
	WritePolicyFlag   = "policy"
	LogLevelFlag      = "log-level"
)

package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// registryFile is the on-disk registry document.
type registryFile struct {
	Chains []ChainMetadata `yaml:"chains"`
}

// LoadFromFile reads a YAML chain registry from disk.
func LoadFromFile(path string) (*ChainRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file '%s': %w", path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse registry file '%s': %w", path, err)
	}

	return NewChainRegistry(file.Chains)
}

package evm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/0xPolygon/router-mesh/helper/hex"
)

// Artifact names expected under the contracts directory.
const (
	RouterArtifactName     = "Router"
	ProxyAdminArtifactName = "ProxyAdmin"
	ProxyArtifactName      = "TransparentUpgradeableProxy"
	TimelockArtifactName   = "Timelock"
)

// Artifact holds compiled contract creation bytecode.
type Artifact struct {
	Bytecode []byte
}

// LoadArtifact reads <name>.json from the given directory and
// decodes its creation bytecode.
func LoadArtifact(dir, name string) (*Artifact, error) {
	absolutePath, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	filePath := filepath.Join(absolutePath, name+".json")

	data, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact for contract %s: %w", name, err)
	}

	var artifact struct {
		Bytecode string `json:"bytecode"`
	}

	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to decode artifact for contract %s: %w", name, err)
	}

	bytecode, err := hex.DecodeHex(artifact.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("malformed bytecode in artifact for contract %s: %w", name, err)
	}

	return &Artifact{Bytecode: bytecode}, nil
}

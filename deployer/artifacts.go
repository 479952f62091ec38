package deployer

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/0xPolygon/router-mesh/helper/hex"
	"github.com/0xPolygon/router-mesh/types"
)

// RouterContractName keys router deployments in the artifact store.
const RouterContractName = "Router"

// ArtifactStore records deployed contract addresses keyed by
// (chain, contract, constructor-args hash) so re-runs reuse existing
// deployments instead of creating new ones. Backed by a single JSON
// file; an empty path keeps the store in memory only.
type ArtifactStore struct {
	path string

	mu      sync.Mutex
	entries map[string]ArtifactEntry
}

type ArtifactEntry struct {
	Chain    string        `json:"chain"`
	Contract string        `json:"contract"`
	ArgsHash string        `json:"argsHash"`
	Address  types.Bytes32 `json:"address"`
}

// OpenArtifactStore loads the store at path, creating an empty one
// when the file does not exist yet.
func OpenArtifactStore(path string) (*ArtifactStore, error) {
	store := &ArtifactStore{
		path:    path,
		entries: map[string]ArtifactEntry{},
	}

	if path == "" {
		return store, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store, nil
		}

		return nil, fmt.Errorf("failed to read artifact store: %w", err)
	}

	var entries []ArtifactEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("malformed artifact store %s: %w", path, err)
	}

	for _, entry := range entries {
		store.entries[artifactKey(entry.Chain, entry.Contract, entry.ArgsHash)] = entry
	}

	return store, nil
}

func (s *ArtifactStore) Get(chain, contract, argsHash string) (types.Bytes32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[artifactKey(chain, contract, argsHash)]

	return entry.Address, ok
}

// Put records a deployment and persists the store.
func (s *ArtifactStore) Put(chain, contract, argsHash string, address types.Bytes32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[artifactKey(chain, contract, argsHash)] = ArtifactEntry{
		Chain:    chain,
		Contract: contract,
		ArgsHash: argsHash,
		Address:  address,
	}

	return s.save()
}

func (s *ArtifactStore) save() error {
	if s.path == "" {
		return nil
	}

	entries := make([]ArtifactEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o600)
}

func artifactKey(chain, contract, argsHash string) string {
	return chain + "/" + contract + "/" + argsHash
}

// HashArgs derives the constructor-args hash from the values that
// shape a deployment.
func HashArgs(parts ...[]byte) string {
	h := sha256.New()
	for _, part := range parts {
		h.Write(part)
	}

	return hex.EncodeToString(h.Sum(nil))
}

package evm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/umbracle/ethgo"

	"github.com/0xPolygon/router-mesh/provider"
	"github.com/0xPolygon/router-mesh/types"
)

func TestEnrollmentCalldata(t *testing.T) {
	t.Parallel()

	updates := []provider.EnrollmentUpdate{
		{Domain: 100, Router: types.StringToAddress("0x1").Bytes32()},
		{Domain: 200, Router: types.Bytes32{}}, // unenrollment
	}

	domains := make([]uint32, len(updates))
	routers := make([][32]byte, len(updates))

	for i, update := range updates {
		domains[i] = update.Domain
		routers[i] = [32]byte(update.Router)
	}

	input, err := enrollRemoteRoutersMethod.Encode([]interface{}{domains, routers})
	require.NoError(t, err)

	decodedRaw, err := enrollRemoteRoutersMethod.Inputs.Decode(input[4:])
	require.NoError(t, err)

	decoded, ok := decodedRaw.(map[string]interface{})
	require.True(t, ok)

	decodedDomains, ok := decoded["_domains"].([]uint32)
	require.True(t, ok)
	require.Equal(t, domains, decodedDomains)

	decodedRouters, ok := decoded["_addresses"].([][32]byte)
	require.True(t, ok)
	require.Equal(t, routers, decodedRouters)
}

func TestAddressConversion(t *testing.T) {
	t.Parallel()

	addr := ethgo.Address{0xde, 0xad, 0xbe, 0xef}

	padded := addressToBytes32(addr)
	require.True(t, padded.Address() == types.Address(addr))
	require.Equal(t, addr, evmAddress(padded))

	// top 12 bytes are zero padding
	for i := 0; i < 12; i++ {
		require.Zero(t, padded[i])
	}
}

func TestSetterCalldata(t *testing.T) {
	t.Parallel()

	mailbox := types.StringToAddress("0xabcdef").Bytes32()

	input, err := setMailboxMethod.Encode([]interface{}{evmAddress(mailbox)})
	require.NoError(t, err)

	decodedRaw, err := setMailboxMethod.Inputs.Decode(input[4:])
	require.NoError(t, err)

	decoded, ok := decodedRaw.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, evmAddress(mailbox), decoded["_mailbox"])
}

func TestLoadArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, "Router.json"),
		[]byte(`{"bytecode": "0x60806040"}`), 0o600)
	require.NoError(t, err)

	artifact, err := LoadArtifact(dir, RouterArtifactName)
	require.NoError(t, err)
	require.Equal(t, []byte{0x60, 0x80, 0x60, 0x40}, artifact.Bytecode)

	_, err = LoadArtifact(dir, ProxyAdminArtifactName)
	require.Error(t, err)
}

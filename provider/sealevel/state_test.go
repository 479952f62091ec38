package sealevel

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0xPolygon/router-mesh/ism"
	"github.com/0xPolygon/router-mesh/types"
)

func b32(t *testing.T, s string) types.Bytes32 {
	t.Helper()

	out, err := types.StringToBytes32(s)
	require.NoError(t, err)

	return out
}

func TestRouterStateRoundTrip(t *testing.T) {
	t.Parallel()

	state := &routerState{
		Owner:          b32(t, "0x01"),
		Mailbox:        b32(t, "0x02"),
		GasPaymaster:   b32(t, "0x03"),
		SecurityModule: b32(t, "0x04"),
		RemoteRouters: map[uint32]types.Bytes32{
			100: b32(t, "0xaa"),
			200: b32(t, "0xbb"),
		},
	}

	decoded, err := decodeRouterState(encodeRouterState(state))
	require.NoError(t, err)
	require.Equal(t, state, decoded)
}

func TestDecodeRouterState_Malformed(t *testing.T) {
	t.Parallel()

	_, err := decodeRouterState(make([]byte, 10))
	require.Error(t, err)

	// header declares one entry but carries none
	data := make([]byte, routerStateHeaderSize)
	binary.LittleEndian.PutUint32(data[128:132], 1)

	_, err = decodeRouterState(data)
	require.Error(t, err)
}

func TestDecodeRouterState_SkipsZeroEntries(t *testing.T) {
	t.Parallel()

	state := &routerState{
		RemoteRouters: map[uint32]types.Bytes32{},
	}

	data := encodeRouterState(state)
	data = binary.LittleEndian.AppendUint32(data, 300)
	data = append(data, make([]byte, 32)...)
	binary.LittleEndian.PutUint32(data[128:132], 1)

	decoded, err := decodeRouterState(data)
	require.NoError(t, err)
	require.Empty(t, decoded.RemoteRouters)
}

func TestEnrollInstructionLayout(t *testing.T) {
	t.Parallel()

	router := b32(t, "0xaa")
	data := encodeEnrollInstruction([]uint32{7}, []types.Bytes32{router})

	require.Equal(t, instructionEnrollRemoteRouters, data[0])
	require.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[1:5]))
	require.Equal(t, uint32(7), binary.LittleEndian.Uint32(data[5:9]))
	require.Equal(t, router[:], data[9:41])
}

func TestDeriveStorageAccount_Deterministic(t *testing.T) {
	t.Parallel()

	program := b32(t, "0x11")
	payer := b32(t, "0x22")

	first := deriveStorageAccount(program, payer)
	second := deriveStorageAccount(program, payer)
	require.Equal(t, first, second)

	other := deriveStorageAccount(program, b32(t, "0x33"))
	require.NotEqual(t, first, other)
}

func TestDecodeMultisigModule(t *testing.T) {
	t.Parallel()

	validator := b32(t, "0xcc")

	data := []byte{ismAccountMessageIDMultisig, 2}
	data = binary.LittleEndian.AppendUint32(data, 1)
	data = append(data, validator[:]...)

	policy, err := decodeMultisigModule(data)
	require.NoError(t, err)
	require.Equal(t, ism.MessageIDMultisig, policy.Type)
	require.Equal(t, uint8(2), policy.Threshold)
	require.Equal(t, []types.Bytes32{validator}, policy.Validators)

	// unknown shape is opaque
	opaque, err := decodeMultisigModule([]byte{0xff, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	require.Nil(t, opaque)
}

func TestEncodeBase58(t *testing.T) {
	t.Parallel()

	require.Equal(t, "StV1DL6CwTryKyV", EncodeBase58([]byte("hello world")))
	require.Equal(t, "11", EncodeBase58([]byte{0, 0}))
	require.Equal(t, "", EncodeBase58(nil))
}

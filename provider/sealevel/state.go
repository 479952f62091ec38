package sealevel

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/0xPolygon/router-mesh/ism"
	"github.com/0xPolygon/router-mesh/types"
)

// Router program instruction tags.
const (
	instructionInit uint8 = iota
	instructionEnrollRemoteRouters
	instructionSetMailbox
	instructionSetGasPaymaster
	instructionSetSecurityModule
	instructionTransferOwnership
)

// routerState is the router program's storage account layout:
// owner, mailbox, gas paymaster and security module as 32-byte
// accounts, followed by a length-prefixed (domain, router) table.
// All integers are little-endian.
type routerState struct {
	Owner          types.Bytes32
	Mailbox        types.Bytes32
	GasPaymaster   types.Bytes32
	SecurityModule types.Bytes32
	RemoteRouters  map[uint32]types.Bytes32
}

const routerStateHeaderSize = 4*32 + 4

func decodeRouterState(data []byte) (*routerState, error) {
	if len(data) < routerStateHeaderSize {
		return nil, fmt.Errorf("router state too short: %d bytes", len(data))
	}

	state := &routerState{
		RemoteRouters: map[uint32]types.Bytes32{},
	}

	copy(state.Owner[:], data[0:32])
	copy(state.Mailbox[:], data[32:64])
	copy(state.GasPaymaster[:], data[64:96])
	copy(state.SecurityModule[:], data[96:128])

	count := binary.LittleEndian.Uint32(data[128:132])
	offset := routerStateHeaderSize

	if len(data) < offset+int(count)*36 {
		return nil, fmt.Errorf("router state truncated: %d entries declared, %d bytes left",
			count, len(data)-offset)
	}

	for i := uint32(0); i < count; i++ {
		domain := binary.LittleEndian.Uint32(data[offset : offset+4])

		var router types.Bytes32

		copy(router[:], data[offset+4:offset+36])
		offset += 36

		if !router.IsZero() {
			state.RemoteRouters[domain] = router
		}
	}

	return state, nil
}

func encodeRouterState(state *routerState) []byte {
	out := make([]byte, 0, routerStateHeaderSize+len(state.RemoteRouters)*36)
	out = append(out, state.Owner[:]...)
	out = append(out, state.Mailbox[:]...)
	out = append(out, state.GasPaymaster[:]...)
	out = append(out, state.SecurityModule[:]...)

	out = binary.LittleEndian.AppendUint32(out, uint32(len(state.RemoteRouters)))

	for domain, router := range state.RemoteRouters {
		out = binary.LittleEndian.AppendUint32(out, domain)
		out = append(out, router[:]...)
	}

	return out
}

// encodeEnrollInstruction encodes a batched enrollment update:
// tag, entry count, then (domain, router) pairs. A zero router
// clears the domain.
func encodeEnrollInstruction(domains []uint32, routers []types.Bytes32) []byte {
	out := make([]byte, 0, 5+len(domains)*36)
	out = append(out, instructionEnrollRemoteRouters)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(domains)))

	for i, domain := range domains {
		out = binary.LittleEndian.AppendUint32(out, domain)
		out = append(out, routers[i][:]...)
	}

	return out
}

func encodeAccountInstruction(tag uint8, account types.Bytes32) []byte {
	out := make([]byte, 0, 33)
	out = append(out, tag)
	out = append(out, account[:]...)

	return out
}

func encodeInitInstruction(mailbox, gasPaymaster, securityModule types.Bytes32) []byte {
	out := make([]byte, 0, 97)
	out = append(out, instructionInit)
	out = append(out, mailbox[:]...)
	out = append(out, gasPaymaster[:]...)
	out = append(out, securityModule[:]...)

	return out
}

// deriveStorageAccount computes the deterministic storage account
// the router program allocates for a given payer.
func deriveStorageAccount(program, payer types.Bytes32) types.Bytes32 {
	h := sha256.New()
	h.Write(program[:])
	h.Write(payer[:])
	h.Write([]byte("router_storage"))

	var out types.Bytes32

	copy(out[:], h.Sum(nil))

	return out
}

// Security module account type tags.
const (
	ismAccountMessageIDMultisig uint8 = iota
	ismAccountMerkleRootMultisig
)

// decodeMultisigModule decodes a multisig security module account:
// type tag, threshold, validator count, then 32-byte validators.
func decodeMultisigModule(data []byte) (*ism.Policy, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("security module state too short: %d bytes", len(data))
	}

	var moduleType ism.ModuleType

	switch data[0] {
	case ismAccountMessageIDMultisig:
		moduleType = ism.MessageIDMultisig
	case ismAccountMerkleRootMultisig:
		moduleType = ism.MerkleRootMultisig
	default:
		// unknown account shape, report as opaque
		return nil, nil
	}

	threshold := data[1]
	count := binary.LittleEndian.Uint32(data[2:6])

	if len(data) < 6+int(count)*32 {
		return nil, fmt.Errorf("security module state truncated: %d validators declared", count)
	}

	policy := &ism.Policy{
		Type:      moduleType,
		Threshold: threshold,
	}

	offset := 6
	for i := uint32(0); i < count; i++ {
		var validator types.Bytes32

		copy(validator[:], data[offset:offset+32])
		offset += 32

		policy.Validators = append(policy.Validators, validator)
	}

	return policy, nil
}

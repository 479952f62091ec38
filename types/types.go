package types

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/0xPolygon/router-mesh/helper/hex"
)

const (
	AddressLength = 20
	Bytes32Length = 32
)

var (
	ZeroAddress = Address{}
	ZeroBytes32 = Bytes32{}

	// ErrBytes32Overflow signals that a value does not fit into the fixed
	// 32-byte routing slot. It indicates a data-model bug and is never
	// retried.
	ErrBytes32Overflow = errors.New("value exceeds 32 bytes")
)

// Address is a native account-model (EVM) address.
type Address [AddressLength]byte

// Bytes32 is the normalized fixed-width address representation stored in
// router enrollment tables. Account-model addresses occupy the low 20
// bytes; PDA-model and Cosmos-model addresses use the full width.
type Bytes32 [Bytes32Length]byte

func min(i, j int) int {
	if i < j {
		return i
	}

	return j
}

func BytesToAddress(b []byte) Address {
	var a Address

	size := len(b)
	m := min(size, AddressLength)

	copy(a[AddressLength-m:], b[len(b)-m:])

	return a
}

func StringToAddress(str string) Address {
	return BytesToAddress(stringToBytes(str))
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) String() string {
	return hex.EncodeToHex(a[:])
}

// Bytes32 returns the address left-padded into the normalized slot.
func (a Address) Bytes32() Bytes32 {
	var b Bytes32

	copy(b[Bytes32Length-AddressLength:], a[:])

	return b
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(input []byte) error {
	buf := stringToBytes(string(input))
	if len(buf) != AddressLength {
		return fmt.Errorf("incorrect address length %d", len(buf))
	}

	*a = BytesToAddress(buf)

	return nil
}

// BytesToBytes32 left-pads b into a 32-byte slot. Inputs longer than 32
// bytes fail with ErrBytes32Overflow.
func BytesToBytes32(b []byte) (Bytes32, error) {
	var out Bytes32

	if len(b) > Bytes32Length {
		return out, fmt.Errorf("%w: got %d bytes", ErrBytes32Overflow, len(b))
	}

	copy(out[Bytes32Length-len(b):], b)

	return out, nil
}

// StringToBytes32 parses a hex string (with or without 0x prefix) into the
// normalized slot, left-padding short values.
func StringToBytes32(str string) (Bytes32, error) {
	buf, err := hex.DecodeHex(strings.TrimSpace(str))
	if err != nil {
		return Bytes32{}, fmt.Errorf("failed to decode hex value '%s': %w", str, err)
	}

	return BytesToBytes32(buf)
}

func (b Bytes32) Bytes() []byte {
	return b[:]
}

func (b Bytes32) String() string {
	return hex.EncodeToHex(b[:])
}

// IsZero reports whether the slot holds no address.
func (b Bytes32) IsZero() bool {
	return b == ZeroBytes32
}

// Address truncates the slot to its low 20 bytes. Only meaningful for
// values that originated from account-model addresses.
func (b Bytes32) Address() Address {
	return BytesToAddress(b[Bytes32Length-AddressLength:])
}

// Equal is a byte-for-byte comparison on the normalized encoding.
func (b Bytes32) Equal(other Bytes32) bool {
	return bytes.Equal(b[:], other[:])
}

func (b Bytes32) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Bytes32) UnmarshalText(input []byte) error {
	parsed, err := StringToBytes32(string(input))
	if err != nil {
		return err
	}

	*b = parsed

	return nil
}

func stringToBytes(str string) []byte {
	str = strings.TrimPrefix(str, "0x")
	if len(str)%2 == 1 {
		str = "0" + str
	}

	b, _ := hex.DecodeString(str)

	return b
}

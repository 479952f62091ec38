package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesToBytes32_Padding(t *testing.T) {
	t.Parallel()

	addr := StringToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")

	slot, err := BytesToBytes32(addr.Bytes())
	require.NoError(t, err)

	// low 20 bytes carry the address, high 12 bytes are zero
	require.Equal(t, addr, slot.Address())

	for _, b := range slot[:Bytes32Length-AddressLength] {
		require.Zero(t, b)
	}
}

func TestBytesToBytes32_Overflow(t *testing.T) {
	t.Parallel()

	_, err := BytesToBytes32(make([]byte, 33))
	require.ErrorIs(t, err, ErrBytes32Overflow)
}

func TestStringToBytes32(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "full width", input: "0x000000000000000000000000d3e345ef10b0b1f1cb4923f089dcb6d4d8b16d41"},
		{name: "account model width", input: "0xd3e345ef10b0b1f1cb4923f089dcb6d4d8b16d41"},
		{name: "no prefix", input: "d3e345ef10b0b1f1cb4923f089dcb6d4d8b16d41"},
		{name: "invalid hex", input: "0xzz", wantErr: true},
		{name: "too long", input: "0x" + "00" + "000000000000000000000000d3e345ef10b0b1f1cb4923f089dcb6d4d8b16d41", wantErr: true},
	}

	expected, err := StringToBytes32("0x000000000000000000000000d3e345ef10b0b1f1cb4923f089dcb6d4d8b16d41")
	require.NoError(t, err)

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			got, err := StringToBytes32(c.input)
			if c.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			require.True(t, got.Equal(expected))
		})
	}
}

func TestBytes32_RoundTripText(t *testing.T) {
	t.Parallel()

	original, err := StringToBytes32("0x0102030405060708091011121314151617181920212223242526272829303132")
	require.NoError(t, err)

	text, err := original.MarshalText()
	require.NoError(t, err)

	var decoded Bytes32
	require.NoError(t, decoded.UnmarshalText(text))
	require.Equal(t, original, decoded)
}

func TestBytes32_IsZero(t *testing.T) {
	t.Parallel()

	require.True(t, ZeroBytes32.IsZero())
	require.True(t, ZeroAddress.Bytes32().IsZero())

	nonZero, err := StringToBytes32("0x01")
	require.NoError(t, err)
	require.False(t, nonZero.IsZero())
}

package ism

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0xPolygon/router-mesh/types"
)

func validator(t *testing.T, raw string) types.Bytes32 {
	t.Helper()

	v, err := types.StringToBytes32(raw)
	require.NoError(t, err)

	return v
}

func TestMatches_Multisig(t *testing.T) {
	t.Parallel()

	v1 := validator(t, "0x01")
	v2 := validator(t, "0x02")
	v3 := validator(t, "0x03")

	declared := &Policy{
		Type:       MessageIDMultisig,
		Validators: []types.Bytes32{v1, v2, v3},
		Threshold:  2,
	}

	// validator order must not matter
	actual := &Policy{
		Type:       MessageIDMultisig,
		Validators: []types.Bytes32{v3, v1, v2},
		Threshold:  2,
	}
	require.True(t, Matches(declared, actual))

	// different threshold
	actual.Threshold = 3
	require.False(t, Matches(declared, actual))

	// different validator set
	actual.Threshold = 2
	actual.Validators = []types.Bytes32{v1, v2, v2}
	require.False(t, Matches(declared, actual))

	// different multisig flavor
	require.False(t, Matches(declared, &Policy{
		Type:       MerkleRootMultisig,
		Validators: []types.Bytes32{v1, v2, v3},
		Threshold:  2,
	}))
}

func TestMatches_Aggregation(t *testing.T) {
	t.Parallel()

	v1 := validator(t, "0x01")
	v2 := validator(t, "0x02")

	multisig := &Policy{Type: MessageIDMultisig, Validators: []types.Bytes32{v1, v2}, Threshold: 1}
	noop := &Policy{Type: Noop}

	declared := &Policy{
		Type:      Aggregation,
		Modules:   []*Policy{multisig, noop},
		Threshold: 1,
	}

	// sub-module order must not matter
	actual := &Policy{
		Type:      Aggregation,
		Modules:   []*Policy{noop, multisig},
		Threshold: 1,
	}
	require.True(t, Matches(declared, actual))

	actual.Modules = []*Policy{noop, noop}
	require.False(t, Matches(declared, actual))
}

func TestMatches_Routing(t *testing.T) {
	t.Parallel()

	v1 := validator(t, "0x01")

	sub := &Policy{Type: MessageIDMultisig, Validators: []types.Bytes32{v1}, Threshold: 1}

	declared := &Policy{
		Type:    Routing,
		Domains: map[uint32]*Policy{1: sub, 2: {Type: Noop}},
	}

	actual := &Policy{
		Type:    Routing,
		Domains: map[uint32]*Policy{1: sub, 2: {Type: Noop}},
	}
	require.True(t, Matches(declared, actual))

	// missing route
	delete(actual.Domains, 2)
	require.False(t, Matches(declared, actual))

	// extra route
	actual.Domains[2] = &Policy{Type: Noop}
	actual.Domains[3] = &Policy{Type: Noop}
	require.False(t, Matches(declared, actual))
}

func TestMatches_Nil(t *testing.T) {
	t.Parallel()

	require.True(t, Matches(nil, nil))
	require.False(t, Matches(&Policy{Type: Noop}, nil))
	require.False(t, Matches(nil, &Policy{Type: Noop}))
}

func TestPolicy_Validate(t *testing.T) {
	t.Parallel()

	v1 := validator(t, "0x01")

	cases := []struct {
		name    string
		policy  *Policy
		wantErr bool
	}{
		{
			name:   "valid multisig",
			policy: &Policy{Type: MessageIDMultisig, Validators: []types.Bytes32{v1}, Threshold: 1},
		},
		{
			name:    "threshold above validator count",
			policy:  &Policy{Type: MessageIDMultisig, Validators: []types.Bytes32{v1}, Threshold: 2},
			wantErr: true,
		},
		{
			name:    "zero threshold",
			policy:  &Policy{Type: MerkleRootMultisig, Validators: []types.Bytes32{v1}},
			wantErr: true,
		},
		{
			name:    "empty aggregation",
			policy:  &Policy{Type: Aggregation, Threshold: 1},
			wantErr: true,
		},
		{
			name: "invalid nested module",
			policy: &Policy{
				Type:      Aggregation,
				Threshold: 1,
				Modules:   []*Policy{{Type: MessageIDMultisig}},
			},
			wantErr: true,
		},
		{
			name:    "unknown type",
			policy:  &Policy{Type: "optimistic"},
			wantErr: true,
		},
		{
			name:   "noop",
			policy: &Policy{Type: Noop},
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			err := c.policy.Validate()
			if c.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

package cosmosmod

import (
	"context"
	"testing"

	"github.com/bcp-innovations/hyperlane-cosmos/util"
	ismtypes "github.com/bcp-innovations/hyperlane-cosmos/x/core/01_interchain_security/types"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/gogoproto/proto"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/0xPolygon/router-mesh/ism"
	"github.com/0xPolygon/router-mesh/provider"
)

type stubISMQuery struct {
	ismtypes.QueryClient

	resp *ismtypes.QueryIsmResponse
}

func (s *stubISMQuery) Ism(_ context.Context, _ *ismtypes.QueryIsmRequest,
	_ ...grpc.CallOption) (*ismtypes.QueryIsmResponse, error) {
	return s.resp, nil
}

func TestISMResolver_MultisigStructure(t *testing.T) {
	t.Parallel()

	module := &ismtypes.MessageIdMultisigISM{
		Validators: []string{"0x01", "0x02", "0x03"},
		Threshold:  2,
	}

	value, err := proto.Marshal(module)
	require.NoError(t, err)

	r := &ismResolver{query: &stubISMQuery{resp: &ismtypes.QueryIsmResponse{
		Ism: codectypes.Any{
			TypeUrl: "/hyperlane.core.interchain_security.v1.MessageIdMultisigISM",
			Value:   value,
		},
	}}}

	policy, err := r.resolve(context.Background(), util.HexAddress{}, 0)
	require.NoError(t, err)
	require.Equal(t, ism.MessageIDMultisig, policy.Type)
	require.EqualValues(t, 2, policy.Threshold)
	require.Len(t, policy.Validators, 3)
}

func TestISMResolver_EmptyResponse(t *testing.T) {
	t.Parallel()

	// a response whose Any carries no type url is malformed, not a noop
	r := &ismResolver{query: &stubISMQuery{resp: &ismtypes.QueryIsmResponse{}}}

	_, err := r.resolve(context.Background(), util.HexAddress{}, 0)
	require.ErrorIs(t, err, provider.ErrMalformedResponse)
}

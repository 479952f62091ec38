package cosmosmod

import (
	"context"
	"fmt"
	"strings"

	"github.com/bcp-innovations/hyperlane-cosmos/util"
	ismtypes "github.com/bcp-innovations/hyperlane-cosmos/x/core/01_interchain_security/types"
	"github.com/cosmos/gogoproto/proto"
	"google.golang.org/grpc"

	"github.com/0xPolygon/router-mesh/ism"
	"github.com/0xPolygon/router-mesh/provider"
	"github.com/0xPolygon/router-mesh/types"
)

// maxModuleDepth bounds recursion when walking routed security modules.
const maxModuleDepth = 8

// ismResolver reconstructs security module structure from the core
// module's query service. Query responses carry the concrete module as
// a protobuf Any, dispatched here on its type url.
type ismResolver struct {
	query ismtypes.QueryClient
}

func newISMResolver(conn grpc.ClientConnInterface) *ismResolver {
	return &ismResolver{
		query: ismtypes.NewQueryClient(conn),
	}
}

func (r *ismResolver) resolve(ctx context.Context, id util.HexAddress, depth int) (*ism.Policy, error) {
	if depth >= maxModuleDepth {
		return nil, fmt.Errorf("security module nesting exceeds depth %d", maxModuleDepth)
	}

	resp, err := r.query.Ism(ctx, &ismtypes.QueryIsmRequest{Id: id.String()})
	if err != nil {
		return nil, err
	}

	if resp.Ism.TypeUrl == "" {
		return nil, fmt.Errorf("%w: empty security module response for %s",
			provider.ErrMalformedResponse, id)
	}

	switch {
	case strings.HasSuffix(resp.Ism.TypeUrl, "NoopISM"):
		return &ism.Policy{Type: ism.Noop}, nil

	case strings.HasSuffix(resp.Ism.TypeUrl, "MessageIdMultisigISM"):
		var module ismtypes.MessageIdMultisigISM
		if err := proto.Unmarshal(resp.Ism.Value, &module); err != nil {
			return nil, fmt.Errorf("%w: %s", provider.ErrMalformedResponse, err)
		}

		return multisigPolicy(ism.MessageIDMultisig, module.Owner, module.Validators, module.Threshold)

	case strings.HasSuffix(resp.Ism.TypeUrl, "MerkleRootMultisigISM"):
		var module ismtypes.MerkleRootMultisigISM
		if err := proto.Unmarshal(resp.Ism.Value, &module); err != nil {
			return nil, fmt.Errorf("%w: %s", provider.ErrMalformedResponse, err)
		}

		return multisigPolicy(ism.MerkleRootMultisig, module.Owner, module.Validators, module.Threshold)

	case strings.HasSuffix(resp.Ism.TypeUrl, "RoutingISM"):
		var module ismtypes.RoutingISM
		if err := proto.Unmarshal(resp.Ism.Value, &module); err != nil {
			return nil, fmt.Errorf("%w: %s", provider.ErrMalformedResponse, err)
		}

		return r.routingPolicy(ctx, &module, depth)

	default:
		// unknown module kind, report as opaque
		return nil, nil
	}
}

func (r *ismResolver) routingPolicy(ctx context.Context,
	module *ismtypes.RoutingISM, depth int) (*ism.Policy, error) {
	policy := &ism.Policy{
		Type:    ism.Routing,
		Owner:   ownerOrZero(module.Owner),
		Domains: map[uint32]*ism.Policy{},
	}

	for _, route := range module.Routes {
		inner, err := r.resolve(ctx, route.Ism, depth+1)
		if err != nil {
			return nil, err
		}

		policy.Domains[route.Domain] = inner
	}

	return policy, nil
}

func multisigPolicy(moduleType ism.ModuleType, owner string,
	validators []string, threshold uint32) (*ism.Policy, error) {
	policy := &ism.Policy{
		Type:      moduleType,
		Threshold: uint8(threshold),
		Owner:     ownerOrZero(owner),
	}

	for _, validator := range validators {
		decoded, err := types.StringToBytes32(validator)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed validator %q", provider.ErrMalformedResponse, validator)
		}

		policy.Validators = append(policy.Validators, decoded)
	}

	return policy, nil
}

func ownerOrZero(owner string) types.Bytes32 {
	if owner == "" {
		return types.Bytes32{}
	}

	decoded, err := bech32ToBytes32(owner)
	if err != nil {
		return types.Bytes32{}
	}

	return decoded
}

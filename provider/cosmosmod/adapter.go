package cosmosmod

import (
	"context"
	"fmt"
	"strings"

	"cosmossdk.io/math"
	"github.com/bcp-innovations/hyperlane-cosmos/util"
	warptypes "github.com/bcp-innovations/hyperlane-cosmos/x/warp/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/0xPolygon/router-mesh/ism"
	"github.com/0xPolygon/router-mesh/provider"
	"github.com/0xPolygon/router-mesh/registry"
	"github.com/0xPolygon/router-mesh/types"
)

// defaultEnrollmentGas is the destination gas recorded with each
// enrolled route.
var defaultEnrollmentGas = math.NewInt(200_000)

// Adapter drives warp-token routers on Cosmos-model chains. Reads go
// through the module query services over gRPC, writes are signed and
// broadcast by the injected Broadcaster.
type Adapter struct {
	chain       *registry.ChainMetadata
	conn        grpc.ClientConnInterface
	broadcaster Broadcaster
	warpQuery   warptypes.QueryClient
	ismResolver *ismResolver
	logger      hclog.Logger
}

// FactoryOption configures the Cosmos-model adapter factory.
type FactoryOption func(*factoryConfig)

type factoryConfig struct {
	broadcasters map[string]Broadcaster
	dial         func(*registry.ChainMetadata) (grpc.ClientConnInterface, error)
}

// WithBroadcaster installs the signing broadcaster for a chain.
func WithBroadcaster(chainName string, broadcaster Broadcaster) FactoryOption {
	return func(c *factoryConfig) {
		c.broadcasters[chainName] = broadcaster
	}
}

// WithDialer overrides how the gRPC connection is established.
func WithDialer(dial func(*registry.ChainMetadata) (grpc.ClientConnInterface, error)) FactoryOption {
	return func(c *factoryConfig) {
		c.dial = dial
	}
}

// NewFactory returns an adapter factory for Cosmos-model chains.
func NewFactory(opts ...FactoryOption) provider.AdapterFactory {
	cfg := &factoryConfig{
		broadcasters: map[string]Broadcaster{},
		dial: func(chain *registry.ChainMetadata) (grpc.ClientConnInterface, error) {
			endpoint := chain.GRPCURL()
			if endpoint == "" {
				return nil, fmt.Errorf("chain %s has no grpc endpoint", chain.Name)
			}

			return grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(chain *registry.ChainMetadata, _ provider.SignerConfig,
		logger hclog.Logger) (provider.Adapter, error) {
		conn, err := cfg.dial(chain)
		if err != nil {
			return nil, fmt.Errorf("failed to dial grpc endpoint for chain %s: %w", chain.Name, err)
		}

		return &Adapter{
			chain:       chain,
			conn:        conn,
			broadcaster: cfg.broadcasters[chain.Name],
			warpQuery:   warptypes.NewQueryClient(conn),
			ismResolver: newISMResolver(conn),
			logger:      logger.Named("cosmosmod").With("chain", chain.Name),
		}, nil
	}
}

func (a *Adapter) ChainName() string {
	return a.chain.Name
}

func (a *Adapter) SignerAddress() (types.Bytes32, error) {
	if a.broadcaster == nil {
		return types.Bytes32{}, provider.ErrSignerMissing
	}

	return bech32ToBytes32(a.broadcaster.Address())
}

// HasCode reports whether a warp token with the given id exists.
func (a *Adapter) HasCode(ctx context.Context, addr types.Bytes32) (bool, error) {
	token, err := a.queryToken(ctx, addr)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}

		return false, err
	}

	return token != nil, nil
}

// DeployRouter creates a synthetic warp token bound to the configured
// mailbox. Upgradeability toggles have no on-chain counterpart here,
// module upgrades are chain governance territory.
func (a *Adapter) DeployRouter(ctx context.Context, init provider.RouterInit) (*provider.Deployment, error) {
	if a.broadcaster == nil {
		return nil, provider.ErrSignerMissing
	}

	create := &warptypes.MsgCreateSyntheticToken{
		Owner:         a.broadcaster.Address(),
		OriginMailbox: util.HexAddress(init.Mailbox),
	}

	resp, err := a.broadcaster.BroadcastMessages(ctx, create)
	if err != nil {
		return nil, fmt.Errorf("failed to create warp token: %w", err)
	}

	if resp.Code != 0 {
		return nil, fmt.Errorf("warp token creation failed with code %d: %s", resp.Code, resp.RawLog)
	}

	tokenID, err := tokenIDFromEvents(resp.Events)
	if err != nil {
		return nil, err
	}

	router := types.Bytes32(tokenID)

	if !init.SecurityModule.IsZero() {
		ismID := util.HexAddress(init.SecurityModule)

		set := &warptypes.MsgSetToken{
			TokenId: tokenID,
			Owner:   a.broadcaster.Address(),
			IsmId:   &ismID,
		}

		if resp, err := a.broadcaster.BroadcastMessages(ctx, set); err != nil {
			return nil, fmt.Errorf("failed to set security module on warp token: %w", err)
		} else if resp.Code != 0 {
			return nil, fmt.Errorf("security module assignment failed with code %d: %s", resp.Code, resp.RawLog)
		}
	}

	a.logger.Info("warp token created", "token", router)

	return &provider.Deployment{Router: router}, nil
}

func (a *Adapter) ReadOwner(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	token, err := a.queryToken(ctx, router)
	if err != nil {
		return types.Bytes32{}, err
	}

	if token.Owner == "" {
		return types.Bytes32{}, nil
	}

	return bech32ToBytes32(token.Owner)
}

func (a *Adapter) ReadMailbox(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	token, err := a.queryToken(ctx, router)
	if err != nil {
		return types.Bytes32{}, err
	}

	return parseHexField(token.OriginMailbox)
}

// ReadGasPaymaster always reports unset: destination gas on these
// chains is paid through mailbox hooks, not a per-router paymaster.
func (a *Adapter) ReadGasPaymaster(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	return types.Bytes32{}, nil
}

func (a *Adapter) ReadSecurityModule(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	token, err := a.queryToken(ctx, router)
	if err != nil {
		return types.Bytes32{}, err
	}

	// an unset ism id means the token relies on the mailbox default
	if token.IsmId == nil {
		return types.Bytes32{}, nil
	}

	return types.Bytes32(*token.IsmId), nil
}

// parseHexField decodes a hex-rendered account id from a query
// response, treating an absent field as the zero address.
func parseHexField(raw string) (types.Bytes32, error) {
	if raw == "" {
		return types.Bytes32{}, nil
	}

	decoded, err := util.DecodeHexAddress(raw)
	if err != nil {
		return types.Bytes32{}, fmt.Errorf("%w: malformed account id %q", provider.ErrMalformedResponse, raw)
	}

	return types.Bytes32(decoded), nil
}

func (a *Adapter) ResolveSecurityModule(ctx context.Context, module types.Bytes32) (*ism.Policy, error) {
	if module.IsZero() {
		return nil, nil
	}

	return a.ismResolver.resolve(ctx, util.HexAddress(module), 0)
}

func (a *Adapter) ReadRemoteRouters(ctx context.Context, router types.Bytes32) (map[uint32]types.Bytes32, error) {
	resp, err := a.warpQuery.RemoteRouters(ctx, &warptypes.QueryRemoteRoutersRequest{
		Id: util.HexAddress(router).String(),
	})
	if err != nil {
		return nil, err
	}

	enrolled := make(map[uint32]types.Bytes32, len(resp.RemoteRouters))

	for _, remote := range resp.RemoteRouters {
		contract, err := types.StringToBytes32(remote.ReceiverContract)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed receiver contract %q for domain %d",
				provider.ErrMalformedResponse, remote.ReceiverContract, remote.ReceiverDomain)
		}

		if !contract.IsZero() {
			enrolled[remote.ReceiverDomain] = contract
		}
	}

	return enrolled, nil
}

// SubmitEnrollment broadcasts the whole update batch in one transaction.
// Zero routers become unenrollment messages.
func (a *Adapter) SubmitEnrollment(ctx context.Context, router types.Bytes32,
	updates []provider.EnrollmentUpdate) (provider.TxHandle, error) {
	if a.broadcaster == nil {
		return nil, provider.ErrSignerMissing
	}

	tokenID := util.HexAddress(router)
	owner := a.broadcaster.Address()
	msgs := make([]Msg, 0, len(updates))

	for _, update := range updates {
		if update.Router.IsZero() {
			msgs = append(msgs, &warptypes.MsgUnrollRemoteRouter{
				TokenId:        tokenID,
				Owner:          owner,
				ReceiverDomain: update.Domain,
			})

			continue
		}

		msgs = append(msgs, &warptypes.MsgEnrollRemoteRouter{
			TokenId: tokenID,
			Owner:   owner,
			RemoteRouter: &warptypes.RemoteRouter{
				ReceiverDomain:   update.Domain,
				ReceiverContract: update.Router.String(),
				Gas:              defaultEnrollmentGas,
			},
		})
	}

	return a.broadcast(ctx, msgs...)
}

// SubmitMailboxUpdate is unsupported, the origin mailbox of a warp
// token is fixed at creation.
func (a *Adapter) SubmitMailboxUpdate(ctx context.Context,
	router, mailbox types.Bytes32) (provider.TxHandle, error) {
	return nil, fmt.Errorf("origin mailbox of token %s is immutable on chain %s", router, a.chain.Name)
}

// SubmitGasPaymasterUpdate is unsupported, destination gas is managed
// by mailbox hooks.
func (a *Adapter) SubmitGasPaymasterUpdate(ctx context.Context,
	router, gasPaymaster types.Bytes32) (provider.TxHandle, error) {
	return nil, fmt.Errorf("gas paymaster is managed by mailbox hooks on chain %s", a.chain.Name)
}

func (a *Adapter) SubmitSecurityModuleUpdate(ctx context.Context,
	router, module types.Bytes32) (provider.TxHandle, error) {
	if a.broadcaster == nil {
		return nil, provider.ErrSignerMissing
	}

	ismID := util.HexAddress(module)

	return a.broadcast(ctx, &warptypes.MsgSetToken{
		TokenId: util.HexAddress(router),
		Owner:   a.broadcaster.Address(),
		IsmId:   &ismID,
	})
}

func (a *Adapter) SubmitOwnershipTransfer(ctx context.Context,
	router, newOwner types.Bytes32) (provider.TxHandle, error) {
	if a.broadcaster == nil {
		return nil, provider.ErrSignerMissing
	}

	encodedOwner, err := bytes32ToBech32(a.chain.Bech32Prefix, newOwner)
	if err != nil {
		return nil, err
	}

	return a.broadcast(ctx, &warptypes.MsgSetToken{
		TokenId:  util.HexAddress(router),
		Owner:    a.broadcaster.Address(),
		NewOwner: encodedOwner,
	})
}

func (a *Adapter) broadcast(ctx context.Context, msgs ...Msg) (provider.TxHandle, error) {
	resp, err := a.broadcaster.BroadcastMessages(ctx, msgs...)
	if err != nil {
		return nil, err
	}

	return &txHandle{resp: resp}, nil
}

func (a *Adapter) queryToken(ctx context.Context, router types.Bytes32) (*warptypes.WrappedHypToken, error) {
	resp, err := a.warpQuery.Token(ctx, &warptypes.QueryTokenRequest{
		Id: util.HexAddress(router).String(),
	})
	if err != nil {
		return nil, err
	}

	if resp.Token == nil {
		return nil, fmt.Errorf("%w: empty token response for %s",
			provider.ErrMalformedResponse, util.HexAddress(router))
	}

	return resp.Token, nil
}

// txHandle wraps a completed broadcast: inclusion already happened by
// the time BroadcastMessages returns.
type txHandle struct {
	resp *TxResponse
}

func (h *txHandle) TxHash() string {
	return h.resp.TxHash
}

func (h *txHandle) Wait(ctx context.Context) (*provider.TxResult, error) {
	return &provider.TxResult{
		Hash:    h.resp.TxHash,
		Success: h.resp.Code == 0,
		GasUsed: uint64(h.resp.GasUsed),
	}, nil
}

// tokenIDFromEvents extracts the created token id from broadcast events.
func tokenIDFromEvents(events []Event) (util.HexAddress, error) {
	for _, event := range events {
		if !strings.HasSuffix(event.Type, "EventCreateSyntheticToken") {
			continue
		}

		for _, attr := range event.Attributes {
			if attr.Key != "token_id" {
				continue
			}

			raw := strings.Trim(attr.Value, `"`)

			tokenID, err := util.DecodeHexAddress(raw)
			if err != nil {
				return util.HexAddress{}, fmt.Errorf("malformed token id %q in creation event: %w", raw, err)
			}

			return tokenID, nil
		}
	}

	return util.HexAddress{}, fmt.Errorf("no token creation event found")
}

func bech32ToBytes32(addr string) (types.Bytes32, error) {
	_, raw, err := bech32.DecodeAndConvert(addr)
	if err != nil {
		return types.Bytes32{}, fmt.Errorf("malformed bech32 address %q: %w", addr, err)
	}

	return types.BytesToBytes32(raw)
}

func bytes32ToBech32(prefix string, addr types.Bytes32) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("chain has no bech32 prefix configured")
	}

	return bech32.ConvertAndEncode(prefix, addr.Address().Bytes())
}

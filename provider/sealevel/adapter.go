package sealevel

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/0xPolygon/router-mesh/ism"
	"github.com/0xPolygon/router-mesh/provider"
	"github.com/0xPolygon/router-mesh/registry"
	"github.com/0xPolygon/router-mesh/types"
)

// Adapter drives a router program on PDA-model chains. Router addresses
// are the program's storage accounts, read and written through the
// low-level Client.
type Adapter struct {
	chain   *registry.ChainMetadata
	client  Client
	program types.Bytes32
	logger  hclog.Logger
}

// FactoryOption configures the PDA-model adapter factory.
type FactoryOption func(*factoryConfig)

type factoryConfig struct {
	programs  map[string]types.Bytes32
	newClient func(*registry.ChainMetadata, provider.SignerConfig) (Client, error)
}

// WithProgram sets the router program account for a chain.
func WithProgram(chainName string, program types.Bytes32) FactoryOption {
	return func(c *factoryConfig) {
		c.programs[chainName] = program
	}
}

// WithClientConstructor overrides how the low-level client is built.
func WithClientConstructor(
	newClient func(*registry.ChainMetadata, provider.SignerConfig) (Client, error)) FactoryOption {
	return func(c *factoryConfig) {
		c.newClient = newClient
	}
}

// NewFactory returns an adapter factory for PDA-model chains.
func NewFactory(opts ...FactoryOption) provider.AdapterFactory {
	cfg := &factoryConfig{
		programs: map[string]types.Bytes32{},
		newClient: func(chain *registry.ChainMetadata, signer provider.SignerConfig) (Client, error) {
			var clientOpts []ClientOption

			if signer.HexKey != "" {
				signerAccount, err := types.StringToBytes32(signer.HexKey)
				if err != nil {
					return nil, fmt.Errorf("malformed signer account for chain %s: %w", chain.Name, err)
				}

				clientOpts = append(clientOpts, WithSigner(signerAccount))
			}

			return NewRPCClient(chain.RPCURL(), clientOpts...), nil
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(chain *registry.ChainMetadata, signer provider.SignerConfig,
		logger hclog.Logger) (provider.Adapter, error) {
		client, err := cfg.newClient(chain, signer)
		if err != nil {
			return nil, err
		}

		return &Adapter{
			chain:   chain,
			client:  client,
			program: cfg.programs[chain.Name],
			logger:  logger.Named("sealevel").With("chain", chain.Name),
		}, nil
	}
}

func (a *Adapter) ChainName() string {
	return a.chain.Name
}

func (a *Adapter) SignerAddress() (types.Bytes32, error) {
	return a.client.SignerAddress()
}

func (a *Adapter) HasCode(ctx context.Context, addr types.Bytes32) (bool, error) {
	return a.client.AccountExists(ctx, addr)
}

// DeployRouter initializes a fresh storage account for the router
// program. The account address is derived from the program and payer,
// so repeated deploys by the same payer land on the same account.
func (a *Adapter) DeployRouter(ctx context.Context, init provider.RouterInit) (*provider.Deployment, error) {
	if a.program.IsZero() {
		return nil, fmt.Errorf("no router program configured for chain %s", a.chain.Name)
	}

	payer, err := a.client.SignerAddress()
	if err != nil {
		return nil, err
	}

	storage := deriveStorageAccount(a.program, payer)

	data := encodeInitInstruction(init.Mailbox, init.GasPaymaster, init.SecurityModule)

	signature, err := a.client.SendInstruction(ctx, a.program, data, []types.Bytes32{storage, payer})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize router storage: %w", err)
	}

	result, err := a.client.WaitForConfirmation(ctx, signature)
	if err != nil {
		return nil, err
	}

	if !result.Success {
		return nil, fmt.Errorf("router initialization failed: %s", signature)
	}

	a.logger.Info("router storage initialized", "account", storage, "signature", signature)

	return &provider.Deployment{Router: storage}, nil
}

func (a *Adapter) ReadOwner(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	state, err := a.readState(ctx, router)
	if err != nil {
		return types.Bytes32{}, err
	}

	return state.Owner, nil
}

func (a *Adapter) ReadMailbox(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	state, err := a.readState(ctx, router)
	if err != nil {
		return types.Bytes32{}, err
	}

	return state.Mailbox, nil
}

func (a *Adapter) ReadGasPaymaster(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	state, err := a.readState(ctx, router)
	if err != nil {
		return types.Bytes32{}, err
	}

	return state.GasPaymaster, nil
}

func (a *Adapter) ReadSecurityModule(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	state, err := a.readState(ctx, router)
	if err != nil {
		return types.Bytes32{}, err
	}

	return state.SecurityModule, nil
}

// ResolveSecurityModule decodes the security module account when it has
// a multisig shape, otherwise reports the module as opaque.
func (a *Adapter) ResolveSecurityModule(ctx context.Context, module types.Bytes32) (*ism.Policy, error) {
	if module.IsZero() {
		return nil, nil
	}

	data, err := a.client.ReadAccount(ctx, module)
	if err != nil {
		return nil, err
	}

	return decodeMultisigModule(data)
}

func (a *Adapter) ReadRemoteRouters(ctx context.Context, router types.Bytes32) (map[uint32]types.Bytes32, error) {
	state, err := a.readState(ctx, router)
	if err != nil {
		return nil, err
	}

	return state.RemoteRouters, nil
}

func (a *Adapter) SubmitEnrollment(ctx context.Context, router types.Bytes32,
	updates []provider.EnrollmentUpdate) (provider.TxHandle, error) {
	domains := make([]uint32, len(updates))
	routers := make([]types.Bytes32, len(updates))

	for i, update := range updates {
		domains[i] = update.Domain
		routers[i] = update.Router
	}

	return a.submit(ctx, router, encodeEnrollInstruction(domains, routers))
}

func (a *Adapter) SubmitMailboxUpdate(ctx context.Context,
	router, mailbox types.Bytes32) (provider.TxHandle, error) {
	return a.submit(ctx, router, encodeAccountInstruction(instructionSetMailbox, mailbox))
}

func (a *Adapter) SubmitGasPaymasterUpdate(ctx context.Context,
	router, gasPaymaster types.Bytes32) (provider.TxHandle, error) {
	return a.submit(ctx, router, encodeAccountInstruction(instructionSetGasPaymaster, gasPaymaster))
}

func (a *Adapter) SubmitSecurityModuleUpdate(ctx context.Context,
	router, module types.Bytes32) (provider.TxHandle, error) {
	return a.submit(ctx, router, encodeAccountInstruction(instructionSetSecurityModule, module))
}

func (a *Adapter) SubmitOwnershipTransfer(ctx context.Context,
	router, newOwner types.Bytes32) (provider.TxHandle, error) {
	return a.submit(ctx, router, encodeAccountInstruction(instructionTransferOwnership, newOwner))
}

func (a *Adapter) submit(ctx context.Context, router types.Bytes32, data []byte) (provider.TxHandle, error) {
	payer, err := a.client.SignerAddress()
	if err != nil {
		return nil, err
	}

	signature, err := a.client.SendInstruction(ctx, a.program, data, []types.Bytes32{router, payer})
	if err != nil {
		return nil, err
	}

	return &txHandle{client: a.client, signature: signature}, nil
}

func (a *Adapter) readState(ctx context.Context, router types.Bytes32) (*routerState, error) {
	data, err := a.client.ReadAccount(ctx, router)
	if err != nil {
		return nil, err
	}

	state, err := decodeRouterState(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", provider.ErrMalformedResponse, err)
	}

	return state, nil
}

type txHandle struct {
	client    Client
	signature string
}

func (h *txHandle) TxHash() string {
	return h.signature
}

func (h *txHandle) Wait(ctx context.Context) (*provider.TxResult, error) {
	return h.client.WaitForConfirmation(ctx, h.signature)
}

package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/hashicorp/go-hclog"
	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/abi"
	"github.com/umbracle/ethgo/wallet"

	"github.com/0xPolygon/router-mesh/helper/hex"
	"github.com/0xPolygon/router-mesh/ism"
	"github.com/0xPolygon/router-mesh/provider"
	"github.com/0xPolygon/router-mesh/registry"
	"github.com/0xPolygon/router-mesh/types"
)

var (
	ownerMethod, _          = abi.NewMethod("function owner() returns (address)")
	mailboxMethod, _        = abi.NewMethod("function mailbox() returns (address)")
	gasPaymasterMethod, _   = abi.NewMethod("function interchainGasPaymaster() returns (address)")
	securityModuleMethod, _ = abi.NewMethod("function interchainSecurityModule() returns (address)")

	domainsMethod, _             = abi.NewMethod("function domains() returns (uint32[])")
	routersMethod, _             = abi.NewMethod("function routers(uint32 _domain) returns (bytes32)")
	enrollRemoteRoutersMethod, _ = abi.NewMethod("function enrollRemoteRouters(uint32[] _domains, bytes32[] _addresses)")

	setMailboxMethod, _        = abi.NewMethod("function setMailbox(address _mailbox)")
	setGasPaymasterMethod, _   = abi.NewMethod("function setInterchainGasPaymaster(address _interchainGasPaymaster)")
	setSecurityModuleMethod, _ = abi.NewMethod("function setInterchainSecurityModule(address _module)")
	transferOwnershipMethod, _ = abi.NewMethod("function transferOwnership(address newOwner)")

	initializeMethod, _ = abi.NewMethod("function initialize(" +
		"address _mailbox," +
		"address _interchainGasPaymaster," +
		"address _interchainSecurityModule)")

	moduleTypeMethod, _             = abi.NewMethod("function moduleType() returns (uint8)")
	validatorsAndThresholdMethod, _ = abi.NewMethod("function validatorsAndThreshold(bytes _message) " +
		"returns (address[] validators, uint8 threshold)")
	modulesAndThresholdMethod, _ = abi.NewMethod("function modulesAndThreshold(bytes _message) " +
		"returns (address[] modules, uint8 threshold)")
	routeModuleMethod, _ = abi.NewMethod("function module(uint32 _origin) returns (address)")

	proxyConstructorType = abi.MustNewType("tuple(address logic, address admin, bytes data)")
)

// On-chain security module type tags.
const (
	moduleTypeUnused uint8 = iota
	moduleTypeRouting
	moduleTypeAggregation
	moduleTypeLegacyMultisig
	moduleTypeMerkleRootMultisig
	moduleTypeMessageIDMultisig
)

// maxModuleDepth bounds recursion when walking nested security modules.
const maxModuleDepth = 8

// Adapter drives router contracts on account-model chains over JSON RPC.
type Adapter struct {
	chain        *registry.ChainMetadata
	relayer      *TxRelayer
	key          ethgo.Key
	artifactsDir string
	logger       hclog.Logger
}

// NewFactory returns an adapter factory for account-model chains.
// Compiled contract artifacts are loaded from artifactsDir on deploy.
func NewFactory(artifactsDir string) provider.AdapterFactory {
	return func(chain *registry.ChainMetadata, signer provider.SignerConfig,
		logger hclog.Logger) (provider.Adapter, error) {
		relayer, err := NewTxRelayer(WithAddr(chain.RPCURL()))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tx relayer for chain %s: %w", chain.Name, err)
		}

		var key ethgo.Key

		if signer.HexKey != "" {
			rawKey, err := hex.DecodeHex(signer.HexKey)
			if err != nil {
				return nil, fmt.Errorf("malformed signer key for chain %s: %w", chain.Name, err)
			}

			wlt, err := wallet.NewWalletFromPrivKey(rawKey)
			if err != nil {
				return nil, fmt.Errorf("failed to derive signer for chain %s: %w", chain.Name, err)
			}

			key = wlt
		}

		return &Adapter{
			chain:        chain,
			relayer:      relayer,
			key:          key,
			artifactsDir: artifactsDir,
			logger:       logger.Named("evm").With("chain", chain.Name),
		}, nil
	}
}

func (a *Adapter) ChainName() string {
	return a.chain.Name
}

func (a *Adapter) SignerAddress() (types.Bytes32, error) {
	if a.key == nil {
		return types.Bytes32{}, provider.ErrSignerMissing
	}

	return addressToBytes32(a.key.Address()), nil
}

func (a *Adapter) HasCode(ctx context.Context, addr types.Bytes32) (bool, error) {
	var code string

	err := provider.WithBackoff(ctx, func() error {
		var err error
		code, err = a.relayer.Client().Eth().GetCode(evmAddress(addr), ethgo.Latest)

		return err
	})
	if err != nil {
		return false, err
	}

	return code != "" && code != "0x", nil
}

// DeployRouter deploys the router contract set. With Upgradeable set the
// implementation sits behind a transparent proxy whose constructor runs
// initialization, otherwise the router is initialized with a follow-up call.
func (a *Adapter) DeployRouter(ctx context.Context, init provider.RouterInit) (*provider.Deployment, error) {
	if a.key == nil {
		return nil, provider.ErrSignerMissing
	}

	implAddr, err := a.deployArtifact(ctx, RouterArtifactName, nil)
	if err != nil {
		return nil, err
	}

	initInput, err := initializeMethod.Encode([]interface{}{
		evmAddress(init.Mailbox),
		evmAddress(init.GasPaymaster),
		evmAddress(init.SecurityModule),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode router initializer: %w", err)
	}

	deployment := &provider.Deployment{}

	if init.Upgradeable {
		adminAddr, err := a.deployArtifact(ctx, ProxyAdminArtifactName, nil)
		if err != nil {
			return nil, err
		}

		ctorArgs, err := abi.Encode(map[string]interface{}{
			"logic": implAddr,
			"admin": adminAddr,
			"data":  initInput,
		}, proxyConstructorType)
		if err != nil {
			return nil, fmt.Errorf("failed to encode proxy constructor: %w", err)
		}

		proxyAddr, err := a.deployArtifact(ctx, ProxyArtifactName, ctorArgs)
		if err != nil {
			return nil, err
		}

		deployment.Router = addressToBytes32(proxyAddr)
		deployment.ProxyAdmin = addressToBytes32(adminAddr)
	} else {
		receipt, err := a.sendTransaction(ctx, implAddr, initInput)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize router: %w", err)
		}

		if receipt.Status != 1 {
			return nil, errors.New("router initialization transaction reverted")
		}

		deployment.Router = addressToBytes32(implAddr)
	}

	if init.Timelock {
		timelockArgs, err := abi.Encode(map[string]interface{}{
			"minDelay": big.NewInt(0),
			"admin":    a.key.Address(),
		}, abi.MustNewType("tuple(uint256 minDelay, address admin)"))
		if err != nil {
			return nil, fmt.Errorf("failed to encode timelock constructor: %w", err)
		}

		timelockAddr, err := a.deployArtifact(ctx, TimelockArtifactName, timelockArgs)
		if err != nil {
			return nil, err
		}

		deployment.Timelock = addressToBytes32(timelockAddr)
	}

	a.logger.Info("router deployed",
		"router", deployment.Router,
		"upgradeable", init.Upgradeable,
		"timelock", init.Timelock)

	return deployment, nil
}

func (a *Adapter) deployArtifact(ctx context.Context, name string, ctorArgs []byte) (ethgo.Address, error) {
	artifact, err := LoadArtifact(a.artifactsDir, name)
	if err != nil {
		return ethgo.ZeroAddress, err
	}

	input := artifact.Bytecode
	if len(ctorArgs) > 0 {
		input = append(append([]byte{}, input...), ctorArgs...)
	}

	receipt, err := a.sendTransactionTo(ctx, nil, input)
	if err != nil {
		return ethgo.ZeroAddress, fmt.Errorf("failed to deploy contract %s: %w", name, err)
	}

	if receipt.Status != 1 {
		return ethgo.ZeroAddress, fmt.Errorf("deployment transaction for contract %s reverted", name)
	}

	return receipt.ContractAddress, nil
}

func (a *Adapter) ReadOwner(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	return a.readAddress(ctx, router, ownerMethod)
}

func (a *Adapter) ReadMailbox(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	return a.readAddress(ctx, router, mailboxMethod)
}

func (a *Adapter) ReadGasPaymaster(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	return a.readAddress(ctx, router, gasPaymasterMethod)
}

func (a *Adapter) ReadSecurityModule(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	return a.readAddress(ctx, router, securityModuleMethod)
}

// ResolveSecurityModule walks the on-chain security module and reconstructs
// its structure. Modules of unknown type are reported as opaque (nil policy).
func (a *Adapter) ResolveSecurityModule(ctx context.Context, module types.Bytes32) (*ism.Policy, error) {
	if module.IsZero() {
		return nil, nil
	}

	return a.resolveModule(ctx, evmAddress(module), 0)
}

func (a *Adapter) resolveModule(ctx context.Context, module ethgo.Address, depth int) (*ism.Policy, error) {
	if depth >= maxModuleDepth {
		return nil, fmt.Errorf("security module nesting exceeds depth %d", maxModuleDepth)
	}

	decoded, err := a.call(ctx, module, moduleTypeMethod, nil)
	if err != nil {
		// not introspectable, treat as opaque
		return nil, nil //nolint:nilerr
	}

	moduleType, ok := decoded["0"].(uint8)
	if !ok {
		return nil, provider.ErrMalformedResponse
	}

	switch moduleType {
	case moduleTypeMerkleRootMultisig, moduleTypeMessageIDMultisig:
		return a.resolveMultisigModule(ctx, module, moduleType)
	case moduleTypeAggregation:
		return a.resolveAggregationModule(ctx, module, depth)
	case moduleTypeRouting:
		return a.resolveRoutingModule(ctx, module, depth)
	default:
		return nil, nil
	}
}

func (a *Adapter) resolveMultisigModule(ctx context.Context,
	module ethgo.Address, moduleType uint8) (*ism.Policy, error) {
	decoded, err := a.call(ctx, module, validatorsAndThresholdMethod, []interface{}{[]byte{}})
	if err != nil {
		return nil, err
	}

	validators, ok := decoded["validators"].([]ethgo.Address)
	if !ok {
		return nil, provider.ErrMalformedResponse
	}

	threshold, ok := decoded["threshold"].(uint8)
	if !ok {
		return nil, provider.ErrMalformedResponse
	}

	policy := &ism.Policy{
		Type:      ism.MerkleRootMultisig,
		Threshold: threshold,
		Owner:     a.readModuleOwner(ctx, module),
	}
	if moduleType == moduleTypeMessageIDMultisig {
		policy.Type = ism.MessageIDMultisig
	}

	for _, validator := range validators {
		policy.Validators = append(policy.Validators, addressToBytes32(validator))
	}

	return policy, nil
}

func (a *Adapter) resolveAggregationModule(ctx context.Context,
	module ethgo.Address, depth int) (*ism.Policy, error) {
	decoded, err := a.call(ctx, module, modulesAndThresholdMethod, []interface{}{[]byte{}})
	if err != nil {
		return nil, err
	}

	modules, ok := decoded["modules"].([]ethgo.Address)
	if !ok {
		return nil, provider.ErrMalformedResponse
	}

	threshold, ok := decoded["threshold"].(uint8)
	if !ok {
		return nil, provider.ErrMalformedResponse
	}

	policy := &ism.Policy{
		Type:      ism.Aggregation,
		Threshold: threshold,
		Owner:     a.readModuleOwner(ctx, module),
	}

	for _, inner := range modules {
		innerPolicy, err := a.resolveModule(ctx, inner, depth+1)
		if err != nil {
			return nil, err
		}

		policy.Modules = append(policy.Modules, innerPolicy)
	}

	return policy, nil
}

func (a *Adapter) resolveRoutingModule(ctx context.Context,
	module ethgo.Address, depth int) (*ism.Policy, error) {
	decoded, err := a.call(ctx, module, domainsMethod, nil)
	if err != nil {
		return nil, err
	}

	domains, ok := decoded["0"].([]uint32)
	if !ok {
		return nil, provider.ErrMalformedResponse
	}

	policy := &ism.Policy{
		Type:    ism.Routing,
		Owner:   a.readModuleOwner(ctx, module),
		Domains: map[uint32]*ism.Policy{},
	}

	for _, domain := range domains {
		routeDecoded, err := a.call(ctx, module, routeModuleMethod, []interface{}{domain})
		if err != nil {
			return nil, err
		}

		routeModule, ok := routeDecoded["0"].(ethgo.Address)
		if !ok {
			return nil, provider.ErrMalformedResponse
		}

		routePolicy, err := a.resolveModule(ctx, routeModule, depth+1)
		if err != nil {
			return nil, err
		}

		policy.Domains[domain] = routePolicy
	}

	return policy, nil
}

func (a *Adapter) readModuleOwner(ctx context.Context, module ethgo.Address) types.Bytes32 {
	decoded, err := a.call(ctx, module, ownerMethod, nil)
	if err != nil {
		return types.Bytes32{}
	}

	owner, ok := decoded["0"].(ethgo.Address)
	if !ok {
		return types.Bytes32{}
	}

	return addressToBytes32(owner)
}

// ReadRemoteRouters returns the enrolled remote router table keyed by domain.
func (a *Adapter) ReadRemoteRouters(ctx context.Context, router types.Bytes32) (map[uint32]types.Bytes32, error) {
	decoded, err := a.call(ctx, evmAddress(router), domainsMethod, nil)
	if err != nil {
		return nil, err
	}

	domains, ok := decoded["0"].([]uint32)
	if !ok {
		return nil, provider.ErrMalformedResponse
	}

	enrolled := make(map[uint32]types.Bytes32, len(domains))

	for _, domain := range domains {
		routerDecoded, err := a.call(ctx, evmAddress(router), routersMethod, []interface{}{domain})
		if err != nil {
			return nil, err
		}

		remote, ok := routerDecoded["0"].([32]byte)
		if !ok {
			return nil, provider.ErrMalformedResponse
		}

		remoteRouter := types.Bytes32(remote)
		if !remoteRouter.IsZero() {
			enrolled[domain] = remoteRouter
		}
	}

	return enrolled, nil
}

// SubmitEnrollment writes the given enrollment updates in a single
// batched transaction. A zero router clears the corresponding domain.
func (a *Adapter) SubmitEnrollment(ctx context.Context, router types.Bytes32,
	updates []provider.EnrollmentUpdate) (provider.TxHandle, error) {
	domains := make([]uint32, len(updates))
	routers := make([][32]byte, len(updates))

	for i, update := range updates {
		domains[i] = update.Domain
		routers[i] = [32]byte(update.Router)
	}

	input, err := enrollRemoteRoutersMethod.Encode([]interface{}{domains, routers})
	if err != nil {
		return nil, fmt.Errorf("failed to encode enrollment update: %w", err)
	}

	return a.submit(ctx, router, input)
}

func (a *Adapter) SubmitMailboxUpdate(ctx context.Context,
	router, mailbox types.Bytes32) (provider.TxHandle, error) {
	return a.submitAddressUpdate(ctx, router, setMailboxMethod, mailbox)
}

func (a *Adapter) SubmitGasPaymasterUpdate(ctx context.Context,
	router, gasPaymaster types.Bytes32) (provider.TxHandle, error) {
	return a.submitAddressUpdate(ctx, router, setGasPaymasterMethod, gasPaymaster)
}

func (a *Adapter) SubmitSecurityModuleUpdate(ctx context.Context,
	router, module types.Bytes32) (provider.TxHandle, error) {
	return a.submitAddressUpdate(ctx, router, setSecurityModuleMethod, module)
}

func (a *Adapter) SubmitOwnershipTransfer(ctx context.Context,
	router, newOwner types.Bytes32) (provider.TxHandle, error) {
	return a.submitAddressUpdate(ctx, router, transferOwnershipMethod, newOwner)
}

func (a *Adapter) submitAddressUpdate(ctx context.Context, router types.Bytes32,
	method *abi.Method, value types.Bytes32) (provider.TxHandle, error) {
	input, err := method.Encode([]interface{}{evmAddress(value)})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s calldata: %w", method.Name, err)
	}

	return a.submit(ctx, router, input)
}

func (a *Adapter) submit(ctx context.Context, router types.Bytes32, input []byte) (provider.TxHandle, error) {
	if a.key == nil {
		return nil, provider.ErrSignerMissing
	}

	to := evmAddress(router)
	txn := &ethgo.Transaction{
		To:    &to,
		Input: input,
	}

	hash, err := a.relayer.SendTransaction(ctx, txn, a.key)
	if err != nil {
		return nil, err
	}

	return &txHandle{relayer: a.relayer, hash: hash}, nil
}

func (a *Adapter) sendTransaction(ctx context.Context, to ethgo.Address, input []byte) (*ethgo.Receipt, error) {
	return a.sendTransactionTo(ctx, &to, input)
}

func (a *Adapter) sendTransactionTo(ctx context.Context, to *ethgo.Address, input []byte) (*ethgo.Receipt, error) {
	txn := &ethgo.Transaction{
		To:    to,
		Input: input,
	}

	return a.relayer.SendTransactionAndWait(ctx, txn, a.key)
}

func (a *Adapter) readAddress(ctx context.Context, router types.Bytes32,
	method *abi.Method) (types.Bytes32, error) {
	decoded, err := a.call(ctx, evmAddress(router), method, nil)
	if err != nil {
		return types.Bytes32{}, err
	}

	addr, ok := decoded["0"].(ethgo.Address)
	if !ok {
		return types.Bytes32{}, provider.ErrMalformedResponse
	}

	return addressToBytes32(addr), nil
}

func (a *Adapter) call(ctx context.Context, to ethgo.Address,
	method *abi.Method, args []interface{}) (map[string]interface{}, error) {
	if args == nil {
		args = []interface{}{}
	}

	input, err := method.Encode(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s calldata: %w", method.Name, err)
	}

	var from ethgo.Address
	if a.key != nil {
		from = a.key.Address()
	}

	response, err := a.relayer.Call(ctx, from, to, input)
	if err != nil {
		return nil, err
	}

	if response == "" || response == "0x" {
		return nil, fmt.Errorf("%w: empty response for %s call", provider.ErrMalformedResponse, method.Name)
	}

	raw, err := hex.DecodeHex(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", provider.ErrMalformedResponse, err)
	}

	decoded, err := method.Outputs.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s response: %s", provider.ErrMalformedResponse, method.Name, err)
	}

	decodedMap, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, provider.ErrMalformedResponse
	}

	return decodedMap, nil
}

type txHandle struct {
	relayer *TxRelayer
	hash    ethgo.Hash
}

func (h *txHandle) TxHash() string {
	return h.hash.String()
}

func (h *txHandle) Wait(ctx context.Context) (*provider.TxResult, error) {
	receipt, err := h.relayer.WaitForReceipt(ctx, h.hash)
	if err != nil {
		return nil, err
	}

	return &provider.TxResult{
		Hash:    receipt.TransactionHash.String(),
		Success: receipt.Status == 1,
		GasUsed: receipt.GasUsed,
	}, nil
}

func evmAddress(b types.Bytes32) ethgo.Address {
	return ethgo.Address(b.Address())
}

func addressToBytes32(a ethgo.Address) types.Bytes32 {
	return types.Address(a).Bytes32()
}

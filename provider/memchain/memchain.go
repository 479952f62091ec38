package memchain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/0xPolygon/router-mesh/ism"
	"github.com/0xPolygon/router-mesh/provider"
	"github.com/0xPolygon/router-mesh/registry"
	"github.com/0xPolygon/router-mesh/types"
)

// Backend is a deterministic in-memory fleet of chains. It backs the
// adapter factory used in engine tests: every write is counted per
// chain and failures can be injected to exercise isolation paths.
type Backend struct {
	mu     sync.Mutex
	chains map[string]*chainState
}

type chainState struct {
	routers  map[types.Bytes32]*routerContract
	policies map[types.Bytes32]*ism.Policy
	code     map[types.Bytes32]bool

	writes    int
	failWrite error
	failRead  error

	nextNonce uint64
}

type routerContract struct {
	owner          types.Bytes32
	mailbox        types.Bytes32
	gasPaymaster   types.Bytes32
	securityModule types.Bytes32
	remoteRouters  map[uint32]types.Bytes32
}

// RouterSnapshot is a read-only copy of a router's state for assertions.
type RouterSnapshot struct {
	Owner          types.Bytes32
	Mailbox        types.Bytes32
	GasPaymaster   types.Bytes32
	SecurityModule types.Bytes32
	RemoteRouters  map[uint32]types.Bytes32
}

func NewBackend() *Backend {
	return &Backend{
		chains: map[string]*chainState{},
	}
}

// AddChain registers an empty chain under the given name.
func (b *Backend) AddChain(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chains[name] = &chainState{
		routers:  map[types.Bytes32]*routerContract{},
		policies: map[types.Bytes32]*ism.Policy{},
		code:     map[types.Bytes32]bool{},
	}
}

// CreateRouter seeds a pre-existing router contract and returns its address.
func (b *Backend) CreateRouter(chain string, owner, mailbox, gasPaymaster,
	securityModule types.Bytes32) types.Bytes32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.chains[chain]
	addr := deriveAddress(chain, state.nextNonce)
	state.nextNonce++

	state.routers[addr] = &routerContract{
		owner:          owner,
		mailbox:        mailbox,
		gasPaymaster:   gasPaymaster,
		securityModule: securityModule,
		remoteRouters:  map[uint32]types.Bytes32{},
	}
	state.code[addr] = true

	return addr
}

// SetCode marks an arbitrary address as having code without a router
// contract behind it.
func (b *Backend) SetCode(chain string, addr types.Bytes32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chains[chain].code[addr] = true
}

// SetPolicy makes a security module address resolvable to a policy.
func (b *Backend) SetPolicy(chain string, module types.Bytes32, policy *ism.Policy) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chains[chain].policies[module] = policy
	b.chains[chain].code[module] = true
}

// Enroll pre-enrolls a remote router directly in backend state.
func (b *Backend) Enroll(chain string, router types.Bytes32, domain uint32, remote types.Bytes32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chains[chain].routers[router].remoteRouters[domain] = remote
}

// FailWrites makes every subsequent write on the chain fail with err.
func (b *Backend) FailWrites(chain string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chains[chain].failWrite = err
}

// FailReads makes every subsequent read on the chain fail with err.
func (b *Backend) FailReads(chain string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chains[chain].failRead = err
}

// WriteCount returns how many state-changing submissions the chain has seen.
func (b *Backend) WriteCount(chain string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.chains[chain].writes
}

// Router returns a snapshot of the router's current state.
func (b *Backend) Router(chain string, addr types.Bytes32) (*RouterSnapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	contract, ok := b.chains[chain].routers[addr]
	if !ok {
		return nil, false
	}

	snapshot := &RouterSnapshot{
		Owner:          contract.owner,
		Mailbox:        contract.mailbox,
		GasPaymaster:   contract.gasPaymaster,
		SecurityModule: contract.securityModule,
		RemoteRouters:  map[uint32]types.Bytes32{},
	}
	for domain, remote := range contract.remoteRouters {
		snapshot.RemoteRouters[domain] = remote
	}

	return snapshot, true
}

// Factory returns an adapter factory bound to this backend. The signer
// key is interpreted as the signer's 32-byte identity.
func (b *Backend) Factory() provider.AdapterFactory {
	return func(chain *registry.ChainMetadata, signer provider.SignerConfig,
		_ hclog.Logger) (provider.Adapter, error) {
		var signerAddr types.Bytes32

		if signer.HexKey != "" {
			decoded, err := types.StringToBytes32(signer.HexKey)
			if err != nil {
				return nil, err
			}

			signerAddr = decoded
		}

		if _, ok := b.chains[chain.Name]; !ok {
			return nil, fmt.Errorf("chain %s not present in backend", chain.Name)
		}

		return &Adapter{backend: b, chain: chain.Name, signer: signerAddr}, nil
	}
}

func deriveAddress(chain string, nonce uint64) types.Bytes32 {
	h := sha256.New()
	h.Write([]byte(chain))

	var buf [8]byte

	binary.BigEndian.PutUint64(buf[:], nonce)
	h.Write(buf[:])

	var out types.Bytes32

	copy(out[:], h.Sum(nil))

	return out
}

// Adapter is the in-memory protocol adapter for one backend chain.
type Adapter struct {
	backend *Backend
	chain   string
	signer  types.Bytes32
}

func (a *Adapter) ChainName() string {
	return a.chain
}

func (a *Adapter) SignerAddress() (types.Bytes32, error) {
	if a.signer.IsZero() {
		return types.Bytes32{}, provider.ErrSignerMissing
	}

	return a.signer, nil
}

func (a *Adapter) HasCode(ctx context.Context, addr types.Bytes32) (bool, error) {
	a.backend.mu.Lock()
	defer a.backend.mu.Unlock()

	state := a.backend.chains[a.chain]
	if state.failRead != nil {
		return false, state.failRead
	}

	return state.code[addr], nil
}

func (a *Adapter) DeployRouter(ctx context.Context, init provider.RouterInit) (*provider.Deployment, error) {
	if a.signer.IsZero() {
		return nil, provider.ErrSignerMissing
	}

	a.backend.mu.Lock()
	defer a.backend.mu.Unlock()

	state := a.backend.chains[a.chain]
	if state.failWrite != nil {
		return nil, state.failWrite
	}

	addr := deriveAddress(a.chain, state.nextNonce)
	state.nextNonce++
	state.writes++

	state.routers[addr] = &routerContract{
		owner:          a.signer,
		mailbox:        init.Mailbox,
		gasPaymaster:   init.GasPaymaster,
		securityModule: init.SecurityModule,
		remoteRouters:  map[uint32]types.Bytes32{},
	}
	state.code[addr] = true

	return &provider.Deployment{Router: addr}, nil
}

func (a *Adapter) ReadOwner(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	contract, err := a.read(router)
	if err != nil {
		return types.Bytes32{}, err
	}

	return contract.owner, nil
}

func (a *Adapter) ReadMailbox(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	contract, err := a.read(router)
	if err != nil {
		return types.Bytes32{}, err
	}

	return contract.mailbox, nil
}

func (a *Adapter) ReadGasPaymaster(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	contract, err := a.read(router)
	if err != nil {
		return types.Bytes32{}, err
	}

	return contract.gasPaymaster, nil
}

func (a *Adapter) ReadSecurityModule(ctx context.Context, router types.Bytes32) (types.Bytes32, error) {
	contract, err := a.read(router)
	if err != nil {
		return types.Bytes32{}, err
	}

	return contract.securityModule, nil
}

func (a *Adapter) ResolveSecurityModule(ctx context.Context, module types.Bytes32) (*ism.Policy, error) {
	a.backend.mu.Lock()
	defer a.backend.mu.Unlock()

	state := a.backend.chains[a.chain]
	if state.failRead != nil {
		return nil, state.failRead
	}

	return state.policies[module], nil
}

func (a *Adapter) ReadRemoteRouters(ctx context.Context, router types.Bytes32) (map[uint32]types.Bytes32, error) {
	contract, err := a.read(router)
	if err != nil {
		return nil, err
	}

	a.backend.mu.Lock()
	defer a.backend.mu.Unlock()

	out := make(map[uint32]types.Bytes32, len(contract.remoteRouters))
	for domain, remote := range contract.remoteRouters {
		out[domain] = remote
	}

	return out, nil
}

func (a *Adapter) SubmitEnrollment(ctx context.Context, router types.Bytes32,
	updates []provider.EnrollmentUpdate) (provider.TxHandle, error) {
	return a.write(router, func(contract *routerContract) {
		for _, update := range updates {
			if update.Router.IsZero() {
				delete(contract.remoteRouters, update.Domain)
			} else {
				contract.remoteRouters[update.Domain] = update.Router
			}
		}
	})
}

func (a *Adapter) SubmitMailboxUpdate(ctx context.Context,
	router, mailbox types.Bytes32) (provider.TxHandle, error) {
	return a.write(router, func(contract *routerContract) {
		contract.mailbox = mailbox
	})
}

func (a *Adapter) SubmitGasPaymasterUpdate(ctx context.Context,
	router, gasPaymaster types.Bytes32) (provider.TxHandle, error) {
	return a.write(router, func(contract *routerContract) {
		contract.gasPaymaster = gasPaymaster
	})
}

func (a *Adapter) SubmitSecurityModuleUpdate(ctx context.Context,
	router, module types.Bytes32) (provider.TxHandle, error) {
	return a.write(router, func(contract *routerContract) {
		contract.securityModule = module
	})
}

func (a *Adapter) SubmitOwnershipTransfer(ctx context.Context,
	router, newOwner types.Bytes32) (provider.TxHandle, error) {
	return a.write(router, func(contract *routerContract) {
		contract.owner = newOwner
	})
}

func (a *Adapter) read(router types.Bytes32) (*routerContract, error) {
	a.backend.mu.Lock()
	defer a.backend.mu.Unlock()

	state := a.backend.chains[a.chain]
	if state.failRead != nil {
		return nil, state.failRead
	}

	contract, ok := state.routers[router]
	if !ok {
		return nil, fmt.Errorf("no router contract at %s on chain %s", router, a.chain)
	}

	return contract, nil
}

// write applies mutate under the chain's ownership rule: submissions
// from a non-owner are included but revert.
func (a *Adapter) write(router types.Bytes32, mutate func(*routerContract)) (provider.TxHandle, error) {
	if a.signer.IsZero() {
		return nil, provider.ErrSignerMissing
	}

	a.backend.mu.Lock()
	defer a.backend.mu.Unlock()

	state := a.backend.chains[a.chain]
	if state.failWrite != nil {
		return nil, state.failWrite
	}

	contract, ok := state.routers[router]
	if !ok {
		return nil, fmt.Errorf("no router contract at %s on chain %s", router, a.chain)
	}

	state.writes++
	hash := fmt.Sprintf("%s-%d", a.chain, state.writes)

	if contract.owner != a.signer {
		return &txHandle{result: &provider.TxResult{Hash: hash, Success: false}}, nil
	}

	mutate(contract)

	return &txHandle{result: &provider.TxResult{Hash: hash, Success: true}}, nil
}

type txHandle struct {
	result *provider.TxResult
}

func (h *txHandle) TxHash() string {
	return h.result.Hash
}

func (h *txHandle) Wait(ctx context.Context) (*provider.TxResult, error) {
	return h.result, nil
}

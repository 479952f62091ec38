package provider

import (
	"context"
	"errors"

	"github.com/0xPolygon/router-mesh/ism"
	"github.com/0xPolygon/router-mesh/types"
)

var (
	// ErrNoAdapter means the chain's protocol family has no registered
	// adapter factory. This is a whole-batch structural error: no chain
	// of that family can make progress.
	ErrNoAdapter = errors.New("no adapter registered for protocol family")

	// ErrSignerMissing means a write was requested on a chain with no
	// configured signer. It signals a permissions gap, not a transient
	// fault, and is never retried.
	ErrSignerMissing = errors.New("no signer configured for chain")

	// ErrMalformedResponse means an RPC endpoint returned a payload the
	// adapter cannot interpret. Not retryable.
	ErrMalformedResponse = errors.New("malformed rpc response")
)

// TxResult is the confirmed outcome of a submitted transaction.
type TxResult struct {
	Hash    string
	Success bool
	GasUsed uint64
}

// TxHandle is returned by every submitting operation and can be awaited
// to confirmation. Wait respects the context deadline; a timed-out wait
// does not imply the transaction failed on chain.
type TxHandle interface {
	TxHash() string
	Wait(ctx context.Context) (*TxResult, error)
}

// Deployment holds the addresses produced by a router deployment on one
// chain. ProxyAdmin and Timelock are zero unless the config requested
// upgradeability.
type Deployment struct {
	Router     types.Bytes32
	ProxyAdmin types.Bytes32
	Timelock   types.Bytes32
}

// RouterInit carries the constructor/initializer values for a fresh
// router deployment.
type RouterInit struct {
	Mailbox        types.Bytes32
	GasPaymaster   types.Bytes32
	SecurityModule types.Bytes32
	Upgradeable    bool
	Timelock       bool
}

// EnrollmentUpdate is one diverging routing-table entry. A zero Router
// value un-enrolls the domain.
type EnrollmentUpdate struct {
	Domain uint32
	Router types.Bytes32
}

// Adapter is the fixed capability surface every protocol family must
// implement to participate. Reads never have side effects; submissions
// return a handle that can be awaited to confirmation. Transaction
// ordering within a chain (nonces, sequences) is the adapter's
// responsibility.
type Adapter interface {
	// ChainName returns the registry name of the chain this adapter is
	// bound to.
	ChainName() string

	// SignerAddress returns the configured signer's address in the
	// normalized encoding, or ErrSignerMissing.
	SignerAddress() (types.Bytes32, error)

	// HasCode reports whether a contract (or program/module entity)
	// exists at the given address.
	HasCode(ctx context.Context, addr types.Bytes32) (bool, error)

	// DeployRouter deploys a fresh router initialized with the given
	// wiring and returns its addresses after confirmation.
	DeployRouter(ctx context.Context, init RouterInit) (*Deployment, error)

	// ReadOwner returns the router's current owner.
	ReadOwner(ctx context.Context, router types.Bytes32) (types.Bytes32, error)

	// ReadMailbox returns the transport endpoint the router is wired to.
	ReadMailbox(ctx context.Context, router types.Bytes32) (types.Bytes32, error)

	// ReadGasPaymaster returns the fee module the router is wired to.
	ReadGasPaymaster(ctx context.Context, router types.Bytes32) (types.Bytes32, error)

	// ReadSecurityModule returns the router's security module address.
	ReadSecurityModule(ctx context.Context, router types.Bytes32) (types.Bytes32, error)

	// ResolveSecurityModule derives the declarative structure of a
	// deployed security module, recursively for composite modules. A nil
	// policy with nil error means the module is opaque to this adapter.
	ResolveSecurityModule(ctx context.Context, module types.Bytes32) (*ism.Policy, error)

	// ReadRemoteRouters returns the router's full enrollment table.
	ReadRemoteRouters(ctx context.Context, router types.Bytes32) (map[uint32]types.Bytes32, error)

	// SubmitEnrollment submits one batched transaction carrying exactly
	// the given domain/address pairs.
	SubmitEnrollment(ctx context.Context, router types.Bytes32, updates []EnrollmentUpdate) (TxHandle, error)

	// SubmitMailboxUpdate points the router at a new transport endpoint.
	SubmitMailboxUpdate(ctx context.Context, router, mailbox types.Bytes32) (TxHandle, error)

	// SubmitGasPaymasterUpdate points the router at a new fee module.
	SubmitGasPaymasterUpdate(ctx context.Context, router, paymaster types.Bytes32) (TxHandle, error)

	// SubmitSecurityModuleUpdate points the router at a new security
	// module.
	SubmitSecurityModuleUpdate(ctx context.Context, router, module types.Bytes32) (TxHandle, error)

	// SubmitOwnershipTransfer hands the router (and its proxy admin, if
	// any) to a new owner.
	SubmitOwnershipTransfer(ctx context.Context, router, newOwner types.Bytes32) (TxHandle, error)
}

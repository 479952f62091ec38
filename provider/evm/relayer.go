package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/umbracle/ethgo"
	"github.com/umbracle/ethgo/jsonrpc"
	"github.com/umbracle/ethgo/wallet"

	"github.com/0xPolygon/router-mesh/provider"
)

const (
	defaultGasPrice = 1879048192 // 0x70000000
	defaultGasLimit = 5242880    // 0x500000

	receiptPollInterval = 50 * time.Millisecond
	receiptPollAttempts = 600
)

var errReceiptTimeout = errors.New("timeout while waiting for transaction receipt")

type RelayerOption func(*TxRelayer)

func WithAddr(addr string) RelayerOption {
	return func(t *TxRelayer) {
		t.addr = addr
	}
}

func WithClient(client *jsonrpc.Client) RelayerOption {
	return func(t *TxRelayer) {
		t.client = client
	}
}

// TxRelayer signs and submits transactions to a single JSON RPC endpoint
// and serializes nonce assignment across concurrent callers.
type TxRelayer struct {
	addr   string
	client *jsonrpc.Client

	lock sync.Mutex
}

func NewTxRelayer(opts ...RelayerOption) (*TxRelayer, error) {
	t := &TxRelayer{
		addr: "http://127.0.0.1:8545",
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.client == nil {
		client, err := jsonrpc.NewClient(t.addr)
		if err != nil {
			return nil, err
		}

		t.client = client
	}

	return t, nil
}

// SendTransaction signs txn with the given key and submits it,
// returning the transaction hash without waiting for inclusion.
func (t *TxRelayer) SendTransaction(ctx context.Context, txn *ethgo.Transaction, key ethgo.Key) (ethgo.Hash, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	var pendingNonce uint64

	err := provider.WithBackoff(ctx, func() error {
		var err error
		pendingNonce, err = t.client.Eth().GetNonce(key.Address(), ethgo.Pending)

		return err
	})
	if err != nil {
		return ethgo.ZeroHash, fmt.Errorf("failed to query pending nonce: %w", err)
	}

	txn.GasPrice = defaultGasPrice
	txn.Gas = defaultGasLimit
	txn.Nonce = pendingNonce

	chainID, err := t.client.Eth().ChainID()
	if err != nil {
		return ethgo.ZeroHash, err
	}

	signer := wallet.NewEIP155Signer(chainID.Uint64())
	if txn, err = signer.SignTx(txn, key); err != nil {
		return ethgo.ZeroHash, err
	}

	data, err := txn.MarshalRLPTo(nil)
	if err != nil {
		return ethgo.ZeroHash, err
	}

	var txnHash ethgo.Hash

	err = provider.WithBackoff(ctx, func() error {
		var err error
		txnHash, err = t.client.Eth().SendRawTransaction(data)

		return err
	})
	if err != nil {
		return ethgo.ZeroHash, err
	}

	return txnHash, nil
}

// SendTransactionAndWait submits txn and blocks until a receipt is available.
func (t *TxRelayer) SendTransactionAndWait(ctx context.Context,
	txn *ethgo.Transaction, key ethgo.Key) (*ethgo.Receipt, error) {
	txnHash, err := t.SendTransaction(ctx, txn, key)
	if err != nil {
		return nil, err
	}

	return t.WaitForReceipt(ctx, txnHash)
}

// WaitForReceipt polls for the receipt of the given transaction hash.
func (t *TxRelayer) WaitForReceipt(ctx context.Context, hash ethgo.Hash) (*ethgo.Receipt, error) {
	for count := 0; count < receiptPollAttempts; count++ {
		receipt, err := t.client.Eth().GetTransactionReceipt(hash)
		if err != nil && err.Error() != "not found" {
			return nil, err
		}

		if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(receiptPollInterval):
		}
	}

	return nil, errReceiptTimeout
}

// Call executes a read-only contract call against the pending block.
func (t *TxRelayer) Call(ctx context.Context, from, to ethgo.Address, input []byte) (string, error) {
	callMsg := &ethgo.CallMsg{
		From:     from,
		To:       &to,
		Data:     input,
		GasPrice: defaultGasPrice,
		Gas:      big.NewInt(defaultGasLimit),
	}

	var response string

	err := provider.WithBackoff(ctx, func() error {
		var err error
		response, err = t.client.Eth().Call(callMsg, ethgo.Pending)

		return err
	})

	return response, err
}

// Client exposes the underlying JSON RPC client.
func (t *TxRelayer) Client() *jsonrpc.Client {
	return t.client
}

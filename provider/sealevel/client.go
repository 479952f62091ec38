package sealevel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"github.com/0xPolygon/router-mesh/provider"
	"github.com/0xPolygon/router-mesh/types"
)

// Client is the low-level surface the PDA-model adapter needs from a
// chain endpoint. Implementations own transaction assembly and signing.
type Client interface {
	// SignerAddress returns the configured fee payer account.
	SignerAddress() (types.Bytes32, error)

	// AccountExists reports whether the account is funded on chain.
	AccountExists(ctx context.Context, account types.Bytes32) (bool, error)

	// ReadAccount returns the raw data of the given account.
	ReadAccount(ctx context.Context, account types.Bytes32) ([]byte, error)

	// GetBalance returns the lamport balance of the given account.
	GetBalance(ctx context.Context, account types.Bytes32) (uint64, error)

	// SendInstruction signs and submits a single program instruction
	// and returns its signature.
	SendInstruction(ctx context.Context, program types.Bytes32,
		data []byte, accounts []types.Bytes32) (string, error)

	// WaitForConfirmation blocks until the given signature is finalized.
	WaitForConfirmation(ctx context.Context, signature string) (*provider.TxResult, error)
}

// InstructionSubmitter assembles, signs and submits an instruction.
// The concrete signing path is deployment-specific and injected here.
type InstructionSubmitter func(ctx context.Context, program types.Bytes32,
	data []byte, accounts []types.Bytes32) (string, error)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// RPCClient talks JSON RPC to a PDA-model chain endpoint. Reads are
// handled directly, writes are delegated to the injected submitter.
type RPCClient struct {
	endpoint  string
	client    *http.Client
	signer    types.Bytes32
	submitter InstructionSubmitter
}

type ClientOption func(*RPCClient)

// WithSigner sets the fee payer account the client reports as signer.
func WithSigner(signer types.Bytes32) ClientOption {
	return func(c *RPCClient) {
		c.signer = signer
	}
}

// WithSubmitter installs the signing transaction submitter.
func WithSubmitter(submitter InstructionSubmitter) ClientOption {
	return func(c *RPCClient) {
		c.submitter = submitter
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *RPCClient) {
		c.client = client
	}
}

func NewRPCClient(endpoint string, opts ...ClientOption) *RPCClient {
	c := &RPCClient{
		endpoint: endpoint,
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *RPCClient) SignerAddress() (types.Bytes32, error) {
	if c.signer.IsZero() {
		return types.Bytes32{}, provider.ErrSignerMissing
	}

	return c.signer, nil
}

func (c *RPCClient) AccountExists(ctx context.Context, account types.Bytes32) (bool, error) {
	data, err := c.accountInfo(ctx, account)
	if err != nil {
		return false, err
	}

	return data != nil, nil
}

func (c *RPCClient) ReadAccount(ctx context.Context, account types.Bytes32) ([]byte, error) {
	data, err := c.accountInfo(ctx, account)
	if err != nil {
		return nil, err
	}

	if data == nil {
		return nil, fmt.Errorf("account %s does not exist", account)
	}

	return data, nil
}

func (c *RPCClient) GetBalance(ctx context.Context, account types.Bytes32) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}

	err := c.invoke(ctx, "getBalance", []interface{}{EncodeBase58(account[:])}, &result)
	if err != nil {
		return 0, err
	}

	return result.Value, nil
}

func (c *RPCClient) SendInstruction(ctx context.Context, program types.Bytes32,
	data []byte, accounts []types.Bytes32) (string, error) {
	if c.submitter == nil {
		return "", provider.ErrSignerMissing
	}

	return c.submitter(ctx, program, data, accounts)
}

func (c *RPCClient) WaitForConfirmation(ctx context.Context, signature string) (*provider.TxResult, error) {
	var status struct {
		Value []*struct {
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}

	err := provider.WithBackoff(ctx, func() error {
		if err := c.invoke(ctx, "getSignatureStatuses",
			[]interface{}{[]string{signature}}, &status); err != nil {
			return err
		}

		if len(status.Value) == 0 || status.Value[0] == nil ||
			status.Value[0].ConfirmationStatus != "finalized" {
			return fmt.Errorf("signature %s not finalized yet: %w", signature, errNotConfirmed)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	success := string(status.Value[0].Err) == "null" || len(status.Value[0].Err) == 0

	return &provider.TxResult{
		Hash:    signature,
		Success: success,
	}, nil
}

var errNotConfirmed = &rpcError{Code: -1, Message: "timeout"}

func (c *RPCClient) accountInfo(ctx context.Context, account types.Bytes32) ([]byte, error) {
	var result struct {
		Value *struct {
			Data []string `json:"data"`
		} `json:"value"`
	}

	params := []interface{}{
		EncodeBase58(account[:]),
		map[string]string{"encoding": "base64"},
	}

	err := provider.WithBackoff(ctx, func() error {
		return c.invoke(ctx, "getAccountInfo", params, &result)
	})
	if err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	if len(result.Value.Data) == 0 {
		return nil, provider.ErrMalformedResponse
	}

	data, err := base64.StdEncoding.DecodeString(result.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", provider.ErrMalformedResponse, err)
	}

	return data, nil
}

func (c *RPCClient) invoke(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(&rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var response rpcResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return fmt.Errorf("%w: %s", provider.ErrMalformedResponse, err)
	}

	if response.Error != nil {
		return response.Error
	}

	if err := json.Unmarshal(response.Result, result); err != nil {
		return fmt.Errorf("%w: %s", provider.ErrMalformedResponse, err)
	}

	return nil
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// EncodeBase58 renders raw bytes in the chain's account address encoding.
func EncodeBase58(data []byte) string {
	x := new(big.Int).SetBytes(data)
	radix := big.NewInt(58)
	mod := new(big.Int)

	var out []byte

	for x.Sign() > 0 {
		x.DivMod(x, radix, mod)
		out = append(out, base58Alphabet[mod.Int64()])
	}

	for _, b := range data {
		if b != 0 {
			break
		}

		out = append(out, base58Alphabet[0])
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return string(out)
}

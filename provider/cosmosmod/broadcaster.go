package cosmosmod

import (
	"context"

	abci "github.com/cometbft/cometbft/abci/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Shorthands for the SDK broadcast types the adapter passes around.
type (
	Msg        = sdk.Msg
	TxResponse = sdk.TxResponse
	Event      = abci.Event

	EventAttribute = abci.EventAttribute
)

// Broadcaster signs messages on behalf of a configured account and
// broadcasts them, blocking until the transaction is included. Keyring
// and fee handling are deployment-specific and live behind this
// interface.
type Broadcaster interface {
	// Address returns the bech32 account the broadcaster signs with.
	Address() string

	// BroadcastMessages submits all messages in a single transaction.
	BroadcastMessages(ctx context.Context, msgs ...Msg) (*TxResponse, error)
}

package domain

import (
	"context"
	"time"
)

// ChainLog is a single decoded contract log returned by the RPC layer. Args
// holds the decoded event arguments keyed by their ABI names.
type ChainLog struct {
	Address     string
	Event       string
	Args        map[string]any
	BlockNumber uint64
	Timestamp   time.Time
	TxHash      string
	LogIndex    uint32
}

// SubmitStatus is the structured result of a settlement transaction. The
// resolver must never infer "already resolved" from error text; the chain
// boundary surfaces it as a tagged variant instead.
type SubmitStatus string

const (
	SubmitOK          SubmitStatus = "ok"
	SubmitAlreadyDone SubmitStatus = "already_done"
	SubmitFailed      SubmitStatus = "failed"
)

// SubmitReceipt reports the outcome of SubmitTransaction.
type SubmitReceipt struct {
	Status SubmitStatus
	TxHash string
	Reason string
}

// ChainClient is the blockchain RPC capability the indexer and resolver
// depend on. Every method suspends on network I/O and honours ctx.
type ChainClient interface {
	// CurrentHeight returns the current chain head block number.
	CurrentHeight(ctx context.Context) (uint64, error)

	// QueryLogs returns the decoded logs emitted by address for the named
	// event over [fromBlock, toBlock], in the order the node returned them.
	QueryLogs(ctx context.Context, address, event string, fromBlock, toBlock uint64) ([]ChainLog, error)

	// ReadState performs a read-only contract call and returns the decoded
	// return values.
	ReadState(ctx context.Context, address, fn string, args ...any) ([]any, error)

	// SubmitTransaction signs and submits a state-changing call and waits for
	// the receipt. A revert caused by the operation already having been
	// performed on-chain is reported as SubmitAlreadyDone, not as an error.
	SubmitTransaction(ctx context.Context, address, fn string, args ...any) (SubmitReceipt, error)

	// Subscribe registers a push callback for new logs of the named event.
	// The returned function detaches the subscription.
	Subscribe(ctx context.Context, address, event string, onLog func(ChainLog)) (func(), error)
}

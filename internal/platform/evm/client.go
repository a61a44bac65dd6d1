// Package evm implements domain.ChainClient against an EVM JSON-RPC node
// using go-ethereum.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/oddslab/courtside/internal/domain"
)

// headerCacheMax bounds the block-timestamp cache. Backfill touches many
// distinct blocks; the cache is flushed wholesale once it grows past this.
const headerCacheMax = 4096

// Config holds connection and signing parameters for the EVM client.
type Config struct {
	RPCURL  string
	WSURL   string
	ChainID int64

	// Key signs settlement transactions. A nil key makes the client
	// read-only; SubmitTransaction will fail.
	Key *ecdsa.PrivateKey
}

// Client talks to an EVM node over HTTP for queries and, when a WS endpoint
// is configured, over WebSocket for log subscriptions.
type Client struct {
	http    *ethclient.Client
	ws      *ethclient.Client
	abis    *contractABIs
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int

	mu          sync.Mutex
	headerTimes map[uint64]time.Time
}

// New dials the configured endpoints and returns a ready Client. The WS
// endpoint is optional; without it Subscribe returns an error and callers
// fall back to polling.
func New(ctx context.Context, cfg Config) (*Client, error) {
	abis, err := parseABIs()
	if err != nil {
		return nil, err
	}

	httpClient, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", cfg.RPCURL, err)
	}

	var wsClient *ethclient.Client
	if cfg.WSURL != "" {
		wsClient, err = ethclient.DialContext(ctx, cfg.WSURL)
		if err != nil {
			httpClient.Close()
			return nil, fmt.Errorf("evm: dial ws %s: %w", cfg.WSURL, err)
		}
	}

	c := &Client{
		http:        httpClient,
		ws:          wsClient,
		abis:        abis,
		key:         cfg.Key,
		chainID:     big.NewInt(cfg.ChainID),
		headerTimes: make(map[uint64]time.Time),
	}
	if cfg.Key != nil {
		c.from = ethcrypto.PubkeyToAddress(cfg.Key.PublicKey)
	}
	return c, nil
}

// Close releases both RPC connections.
func (c *Client) Close() {
	c.http.Close()
	if c.ws != nil {
		c.ws.Close()
	}
}

// CurrentHeight returns the chain head block number.
func (c *Client) CurrentHeight(ctx context.Context) (uint64, error) {
	height, err := c.http.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("evm: block number: %w", err)
	}
	return height, nil
}

// QueryLogs fetches and decodes logs for the named event emitted by address
// over [fromBlock, toBlock].
func (c *Client) QueryLogs(ctx context.Context, address, event string, fromBlock, toBlock uint64) ([]domain.ChainLog, error) {
	ev, err := c.abis.event(event)
	if err != nil {
		return nil, err
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{common.HexToAddress(address)},
		Topics:    [][]common.Hash{{ev.ID}},
	}

	logs, err := c.http.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("evm: filter logs %s [%d,%d]: %w", event, fromBlock, toBlock, err)
	}

	out := make([]domain.ChainLog, 0, len(logs))
	for _, lg := range logs {
		decoded, err := c.decodeLog(ctx, ev, lg)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded)
	}
	return out, nil
}

// decodeLog unpacks indexed and non-indexed event arguments into a ChainLog.
func (c *Client) decodeLog(ctx context.Context, ev abi.Event, lg types.Log) (domain.ChainLog, error) {
	args := make(map[string]any)

	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(args, indexed, lg.Topics[1:]); err != nil {
			return domain.ChainLog{}, fmt.Errorf("evm: decode %s topics: %w", ev.Name, err)
		}
	}
	if err := ev.Inputs.NonIndexed().UnpackIntoMap(args, lg.Data); err != nil {
		return domain.ChainLog{}, fmt.Errorf("evm: decode %s data: %w", ev.Name, err)
	}

	// Addresses cross the domain boundary as lowercase hex strings.
	for k, v := range args {
		if addr, ok := v.(common.Address); ok {
			args[k] = strings.ToLower(addr.Hex())
		}
	}

	ts, err := c.blockTime(ctx, lg.BlockNumber)
	if err != nil {
		return domain.ChainLog{}, err
	}

	return domain.ChainLog{
		Address:     strings.ToLower(lg.Address.Hex()),
		Event:       ev.Name,
		Args:        args,
		BlockNumber: lg.BlockNumber,
		Timestamp:   ts,
		TxHash:      lg.TxHash.Hex(),
		LogIndex:    uint32(lg.Index),
	}, nil
}

// blockTime resolves a block number to its timestamp, memoized per block.
func (c *Client) blockTime(ctx context.Context, number uint64) (time.Time, error) {
	c.mu.Lock()
	if ts, ok := c.headerTimes[number]; ok {
		c.mu.Unlock()
		return ts, nil
	}
	c.mu.Unlock()

	header, err := c.http.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return time.Time{}, fmt.Errorf("evm: header %d: %w", number, err)
	}
	ts := time.Unix(int64(header.Time), 0).UTC()

	c.mu.Lock()
	if len(c.headerTimes) >= headerCacheMax {
		c.headerTimes = make(map[uint64]time.Time)
	}
	c.headerTimes[number] = ts
	c.mu.Unlock()
	return ts, nil
}

// ReadState performs an eth_call against address and returns the decoded
// return values.
func (c *Client) ReadState(ctx context.Context, address, fn string, args ...any) ([]any, error) {
	_, contractABI, err := c.abis.method(fn)
	if err != nil {
		return nil, err
	}

	input, err := contractABI.Pack(fn, args...)
	if err != nil {
		return nil, fmt.Errorf("evm: pack %s: %w", fn, err)
	}

	to := common.HexToAddress(address)
	output, err := c.http.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("evm: call %s on %s: %w", fn, address, err)
	}

	values, err := contractABI.Unpack(fn, output)
	if err != nil {
		return nil, fmt.Errorf("evm: unpack %s result: %w", fn, err)
	}
	return values, nil
}

// SubmitTransaction signs and sends a state-changing call, waits for the
// receipt, and classifies the result. A revert on a market whose settlement
// has already happened is reported as SubmitAlreadyDone so the caller can
// converge its local state instead of retrying forever.
func (c *Client) SubmitTransaction(ctx context.Context, address, fn string, args ...any) (domain.SubmitReceipt, error) {
	if c.key == nil {
		return domain.SubmitReceipt{}, fmt.Errorf("evm: submit %s: no signing key configured", fn)
	}

	_, contractABI, err := c.abis.method(fn)
	if err != nil {
		return domain.SubmitReceipt{}, err
	}
	input, err := contractABI.Pack(fn, args...)
	if err != nil {
		return domain.SubmitReceipt{}, fmt.Errorf("evm: pack %s: %w", fn, err)
	}

	to := common.HexToAddress(address)

	gas, err := c.http.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: input})
	if err != nil {
		// Estimation reverts when the call would revert. Check whether the
		// work is already done before reporting failure.
		if done, checkErr := c.alreadyDone(ctx, address, fn); checkErr == nil && done {
			return domain.SubmitReceipt{Status: domain.SubmitAlreadyDone, Reason: "state already settled on chain"}, nil
		}
		return domain.SubmitReceipt{}, fmt.Errorf("evm: estimate gas for %s: %w", fn, err)
	}

	nonce, err := c.http.PendingNonceAt(ctx, c.from)
	if err != nil {
		return domain.SubmitReceipt{}, fmt.Errorf("evm: pending nonce: %w", err)
	}
	tip, err := c.http.SuggestGasTipCap(ctx)
	if err != nil {
		return domain.SubmitReceipt{}, fmt.Errorf("evm: suggest tip: %w", err)
	}
	head, err := c.http.HeaderByNumber(ctx, nil)
	if err != nil {
		return domain.SubmitReceipt{}, fmt.Errorf("evm: head header: %w", err)
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas + gas/5,
		To:        &to,
		Data:      input,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return domain.SubmitReceipt{}, fmt.Errorf("evm: sign tx: %w", err)
	}
	if err := c.http.SendTransaction(ctx, signed); err != nil {
		return domain.SubmitReceipt{}, fmt.Errorf("evm: send tx: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, c.http, signed)
	if err != nil {
		return domain.SubmitReceipt{}, fmt.Errorf("evm: wait mined %s: %w", signed.Hash(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		if done, checkErr := c.alreadyDone(ctx, address, fn); checkErr == nil && done {
			return domain.SubmitReceipt{
				Status: domain.SubmitAlreadyDone,
				TxHash: signed.Hash().Hex(),
				Reason: "state already settled on chain",
			}, nil
		}
		return domain.SubmitReceipt{
			Status: domain.SubmitFailed,
			TxHash: signed.Hash().Hex(),
			Reason: "transaction reverted",
		}, nil
	}

	return domain.SubmitReceipt{Status: domain.SubmitOK, TxHash: signed.Hash().Hex()}, nil
}

// alreadyDone checks whether the effect of fn has already been applied
// on-chain. Settlement is the only mutating call the service makes, so the
// check reads the market's resolved flag.
func (c *Client) alreadyDone(ctx context.Context, address, fn string) (bool, error) {
	if fn != "resolveMarket" {
		return false, nil
	}
	values, err := c.ReadState(ctx, address, "resolved")
	if err != nil {
		return false, err
	}
	if len(values) != 1 {
		return false, fmt.Errorf("evm: resolved() returned %d values", len(values))
	}
	done, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("evm: resolved() returned %T, want bool", values[0])
	}
	return done, nil
}

// Subscribe attaches a WS log subscription for the named event on address and
// invokes onLog for each decoded log. The returned function detaches the
// subscription.
func (c *Client) Subscribe(ctx context.Context, address, event string, onLog func(domain.ChainLog)) (func(), error) {
	if c.ws == nil {
		return nil, fmt.Errorf("evm: subscribe %s: no websocket endpoint configured", event)
	}

	ev, err := c.abis.event(event)
	if err != nil {
		return nil, err
	}

	query := ethereum.FilterQuery{
		Addresses: []common.Address{common.HexToAddress(address)},
		Topics:    [][]common.Hash{{ev.ID}},
	}

	logCh := make(chan types.Log, 64)
	sub, err := c.ws.SubscribeFilterLogs(ctx, query, logCh)
	if err != nil {
		return nil, fmt.Errorf("evm: subscribe %s on %s: %w", event, address, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-sub.Err():
				return
			case lg := <-logCh:
				decoded, err := c.decodeLog(subCtx, ev, lg)
				if err != nil {
					continue
				}
				onLog(decoded)
			}
		}
	}()

	return cancel, nil
}

// Compile-time interface check.
var _ domain.ChainClient = (*Client)(nil)

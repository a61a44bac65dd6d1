package evm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Factory and market contract ABIs. The factory emits MarketCreated for every
// deployed market; each market contract emits the trade, liquidity and
// resolution events and exposes the read/settlement surface the indexer and
// resolver use.
const factoryABIJSON = `[
	{
		"type": "event",
		"name": "MarketCreated",
		"inputs": [
			{"name": "market", "type": "address", "indexed": true},
			{"name": "creator", "type": "address", "indexed": true},
			{"name": "question", "type": "string", "indexed": false},
			{"name": "outcomes", "type": "string[]", "indexed": false},
			{"name": "resolutionTime", "type": "uint256", "indexed": false},
			{"name": "gameId", "type": "string", "indexed": false},
			{"name": "mode", "type": "string", "indexed": false},
			{"name": "thresholdTenths", "type": "int256", "indexed": false}
		]
	}
]`

const marketABIJSON = `[
	{
		"type": "event",
		"name": "SharesPurchased",
		"inputs": [
			{"name": "buyer", "type": "address", "indexed": true},
			{"name": "outcome", "type": "uint256", "indexed": true},
			{"name": "shares", "type": "uint256", "indexed": false},
			{"name": "cost", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "SharesSold",
		"inputs": [
			{"name": "seller", "type": "address", "indexed": true},
			{"name": "outcome", "type": "uint256", "indexed": true},
			{"name": "shares", "type": "uint256", "indexed": false},
			{"name": "payout", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "LiquidityAdded",
		"inputs": [
			{"name": "provider", "type": "address", "indexed": true},
			{"name": "amount", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "LiquidityRemoved",
		"inputs": [
			{"name": "provider", "type": "address", "indexed": true},
			{"name": "amount", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "MarketResolved",
		"inputs": [
			{"name": "winningOutcome", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "function",
		"name": "getPrice",
		"stateMutability": "view",
		"inputs": [{"name": "outcome", "type": "uint256"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "resolved",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "bool"}]
	},
	{
		"type": "function",
		"name": "winningOutcome",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "resolveMarket",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "winningOutcome", "type": "uint256"}],
		"outputs": []
	}
]`

// contractABIs parses both ABIs once and merges their events and methods into
// a single lookup surface keyed by name. Factory and market names do not
// collide.
type contractABIs struct {
	factory abi.ABI
	market  abi.ABI
}

func parseABIs() (*contractABIs, error) {
	factory, err := abi.JSON(strings.NewReader(factoryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("evm: parse factory abi: %w", err)
	}
	market, err := abi.JSON(strings.NewReader(marketABIJSON))
	if err != nil {
		return nil, fmt.Errorf("evm: parse market abi: %w", err)
	}
	return &contractABIs{factory: factory, market: market}, nil
}

// event resolves an event by name, checking the market ABI first (trade and
// resolution events dominate query volume) and falling back to the factory.
func (c *contractABIs) event(name string) (abi.Event, error) {
	if ev, ok := c.market.Events[name]; ok {
		return ev, nil
	}
	if ev, ok := c.factory.Events[name]; ok {
		return ev, nil
	}
	return abi.Event{}, fmt.Errorf("evm: unknown event %q", name)
}

// method resolves a function by name across both ABIs.
func (c *contractABIs) method(name string) (abi.Method, abi.ABI, error) {
	if m, ok := c.market.Methods[name]; ok {
		return m, c.market, nil
	}
	if m, ok := c.factory.Methods[name]; ok {
		return m, c.factory, nil
	}
	return abi.Method{}, abi.ABI{}, fmt.Errorf("evm: unknown function %q", name)
}

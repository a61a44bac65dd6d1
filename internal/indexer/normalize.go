package indexer

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oddslab/courtside/internal/domain"
)

// weiExp is the decimal exponent for 18-decimal fixed point chain values.
const weiExp = -18

// sortChainLogs orders logs by chain position so state is applied in the
// order it happened.
func sortChainLogs(logs []domain.ChainLog) {
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].LogIndex < logs[j].LogIndex
	})
}

// normalizeLog converts a decoded contract log into a ledger event.
func normalizeLog(lg domain.ChainLog) (domain.MarketEvent, error) {
	ev := domain.MarketEvent{
		TxHash:        lg.TxHash,
		LogIndex:      lg.LogIndex,
		MarketAddress: lg.Address,
		BlockNumber:   lg.BlockNumber,
		Timestamp:     lg.Timestamp,
	}
	if payload, err := json.Marshal(lg.Args); err == nil {
		ev.Payload = payload
	}

	switch lg.Event {
	case "MarketCreated":
		ev.Kind = domain.EventMarketCreated
		if creator, err := argStr(lg.Args, "creator"); err == nil {
			ev.Actor = &creator
		}

	case "SharesPurchased", "SharesSold":
		actorKey, amountKey := "buyer", "cost"
		ev.Kind = domain.EventSharesPurchased
		if lg.Event == "SharesSold" {
			actorKey, amountKey = "seller", "payout"
			ev.Kind = domain.EventSharesSold
		}
		actor, err := argStr(lg.Args, actorKey)
		if err != nil {
			return domain.MarketEvent{}, err
		}
		ev.Actor = &actor

		outcome, err := argInt(lg.Args, "outcome")
		if err != nil {
			return domain.MarketEvent{}, err
		}
		ev.OutcomeIndex = &outcome

		shares, err := argWei(lg.Args, "shares")
		if err != nil {
			return domain.MarketEvent{}, err
		}
		ev.Shares = &shares

		cost, err := argWei(lg.Args, amountKey)
		if err != nil {
			return domain.MarketEvent{}, err
		}
		ev.Cost = &cost

	case "LiquidityAdded", "LiquidityRemoved":
		ev.Kind = domain.EventLiquidityAdded
		if lg.Event == "LiquidityRemoved" {
			ev.Kind = domain.EventLiquidityRemoved
		}
		actor, err := argStr(lg.Args, "provider")
		if err != nil {
			return domain.MarketEvent{}, err
		}
		ev.Actor = &actor

		amount, err := argWei(lg.Args, "amount")
		if err != nil {
			return domain.MarketEvent{}, err
		}
		ev.Cost = &amount

	case "MarketResolved":
		ev.Kind = domain.EventMarketResolved
		outcome, err := argInt(lg.Args, "winningOutcome")
		if err != nil {
			return domain.MarketEvent{}, err
		}
		ev.OutcomeIndex = &outcome

	default:
		return domain.MarketEvent{}, fmt.Errorf("unrecognized event %q", lg.Event)
	}

	return ev, nil
}

// marketFromCreation builds the market projection from a factory
// MarketCreated log.
func marketFromCreation(lg domain.ChainLog, factory string) (domain.Market, error) {
	address, err := argStr(lg.Args, "market")
	if err != nil {
		return domain.Market{}, err
	}
	creator, err := argStr(lg.Args, "creator")
	if err != nil {
		return domain.Market{}, err
	}
	question, err := argStr(lg.Args, "question")
	if err != nil {
		return domain.Market{}, err
	}
	labels, err := argStrSlice(lg.Args, "outcomes")
	if err != nil {
		return domain.Market{}, err
	}
	resolutionUnix, err := argBig(lg.Args, "resolutionTime")
	if err != nil {
		return domain.Market{}, err
	}
	gameID, err := argStr(lg.Args, "gameId")
	if err != nil {
		return domain.Market{}, err
	}
	mode, err := argStr(lg.Args, "mode")
	if err != nil {
		return domain.Market{}, err
	}
	thresholdTenths, err := argBig(lg.Args, "thresholdTenths")
	if err != nil {
		return domain.Market{}, err
	}

	outcomes := make([]domain.OutcomeSlot, len(labels))
	for i, label := range labels {
		outcomes[i] = domain.OutcomeSlot{Index: i, Label: label}
	}

	return domain.Market{
		Address:        address,
		Factory:        factory,
		Creator:        creator,
		Question:       question,
		Outcomes:       outcomes,
		Status:         domain.MarketStatusActive,
		ResolutionTime: time.Unix(resolutionUnix.Int64(), 0).UTC(),
		Volume:         decimal.Zero,
		Liquidity:      decimal.Zero,
		GameID:         gameID,
		Mode:           domain.ResolutionMode(mode),
		Threshold:      float64(thresholdTenths.Int64()) / 10,
		CreatedBlock:   lg.BlockNumber,
		CreatedAt:      lg.Timestamp,
	}, nil
}

func argStr(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok {
		return "", fmt.Errorf("arg %q missing or not a string", key)
	}
	return v, nil
}

func argStrSlice(args map[string]any, key string) ([]string, error) {
	v, ok := args[key].([]string)
	if !ok {
		return nil, fmt.Errorf("arg %q missing or not a string slice", key)
	}
	return v, nil
}

func argBig(args map[string]any, key string) (*big.Int, error) {
	v, ok := args[key].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("arg %q missing or not an integer", key)
	}
	return v, nil
}

func argInt(args map[string]any, key string) (int, error) {
	v, err := argBig(args, key)
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// argWei reads an 18-decimal fixed point argument into a decimal.
func argWei(args map[string]any, key string) (decimal.Decimal, error) {
	v, err := argBig(args, key)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromBigInt(v, weiExp), nil
}

func bigFromInt(i int) *big.Int {
	return big.NewInt(int64(i))
}

// decimalFromValues interprets a single-value contract read as an 18-decimal
// fixed point number.
func decimalFromValues(values []any) (decimal.Decimal, error) {
	if len(values) != 1 {
		return decimal.Decimal{}, fmt.Errorf("expected 1 return value, got %d", len(values))
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("return value is %T, want *big.Int", values[0])
	}
	return decimal.NewFromBigInt(v, weiExp), nil
}

package bots

import (
	"context"

	"limitless/engine"
)

// Bot represents a trading agent that can be run under a supervisor.
type Bot interface {
	Start(ctx context.Context, client EngineClient)
}

// EngineClient abstracts the minimal surface bots need from the matching
// engine. The book itself is synchronous (AddOrder/CancelOrder take the
// mutex and return directly), so unlike a channel-actor client this one
// needs no context plumbing to reach the book; ctx is kept on the
// throttling methods only, where a bot's own cancellation matters.
type EngineClient interface {
	SubmitOrder(ctx context.Context, order *engine.Order) (engine.Trades, error)
	CancelOrder(orderID string)
	Snapshot() engine.OrderbookLevelInfos
	Symbol() string
	TickSize() int64
	NextID(prefix string) string
	OwnsOrder(id string) bool
}

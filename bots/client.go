package bots

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"limitless/engine"
)

type ThrottledClient struct {
	book     *engine.Orderbook
	symbol   string
	tickSize int64
	throttle <-chan time.Time
	mu       sync.Mutex
	owned    map[string]struct{}
	onTrade  func(engine.Trades)
}

// NewThrottledClient wraps an order book with basic rate limiting and bookkeeping.
func NewThrottledClient(book *engine.Orderbook, symbol string, tickSize int64, throttle <-chan time.Time) *ThrottledClient {
	return &ThrottledClient{
		book:     book,
		symbol:   symbol,
		tickSize: tickSize,
		throttle: throttle,
		owned:    make(map[string]struct{}),
	}
}

func (c *ThrottledClient) waitThrottle(ctx context.Context) error {
	if c.throttle == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.throttle:
		return nil
	}
}

// SubmitOrder rate-limits and forwards order to the book. The book itself is
// synchronous, so the trades it produces (including fills against other
// bots' resting orders, since every bot shares this client) are returned
// directly rather than delivered over a channel.
func (c *ThrottledClient) SubmitOrder(ctx context.Context, order *engine.Order) (engine.Trades, error) {
	if err := c.waitThrottle(ctx); err != nil {
		return nil, err
	}
	if order.Price > 0 && order.Price%c.tickSize != 0 {
		order.Price = (order.Price / c.tickSize) * c.tickSize
	}

	trades := c.book.AddOrder(order)

	c.mu.Lock()
	c.owned[order.ID] = struct{}{}
	c.mu.Unlock()

	if c.onTrade != nil && len(trades) > 0 {
		c.onTrade(trades)
	}

	return trades, nil
}

func (c *ThrottledClient) CancelOrder(orderID string) {
	c.book.CancelOrder(orderID)
}

func (c *ThrottledClient) Snapshot() engine.OrderbookLevelInfos {
	return c.book.GetLevelInfos()
}

func (c *ThrottledClient) Symbol() string {
	return c.symbol
}

func (c *ThrottledClient) TickSize() int64 {
	return c.tickSize
}

func (c *ThrottledClient) NextID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func (c *ThrottledClient) OwnsOrder(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.owned[id]
	return ok
}

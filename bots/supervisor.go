package bots

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"limitless/engine"
)

// Supervisor orchestrates multiple bots with a shared client and PnL tracking.
type Supervisor struct {
	bots     []Bot
	client   *ThrottledClient
	pnl      *pnlTracker
	throttle *time.Ticker
}

// NewSupervisor builds a default swarm of bots and a throttled client.
func NewSupervisor(book *engine.Orderbook, symbol string, tickSize int64, orderInterval time.Duration) *Supervisor {
	throttle := time.NewTicker(orderInterval)
	client := NewThrottledClient(book, symbol, tickSize, throttle.C)
	pnl := &pnlTracker{}
	client.onTrade = func(trades engine.Trades) { pnl.Record(trades, client) }

	bots := []Bot{
		NewRandomBidBot(),
		NewRandomAskBot(),
		NewRandomBidBot(),
		NewRandomAskBot(),
		NewSpreadCaptureBot(),
	}
	return &Supervisor{
		bots:     bots,
		client:   client,
		pnl:      pnl,
		throttle: throttle,
	}
}

// Start launches all bots and PnL monitoring until the context is canceled.
func (s *Supervisor) Start(ctx context.Context) {
	logTicker := time.NewTicker(2 * time.Second)
	defer logTicker.Stop()
	defer s.throttle.Stop()

	for _, bot := range s.bots {
		b := bot
		go b.Start(ctx, s.client)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-logTicker.C:
			pos, cash := s.pnl.Snapshot()
			log.Printf("PNL position=%d cash=%d", pos, cash)
		}
	}
}

type pnlTracker struct {
	mu       sync.Mutex
	position int64
	cash     int64
}

// Record marks a batch of trades against the shared client's own resting
// orders. Every bot submits through the same ThrottledClient, so this is
// the complete fill feed without a separate trade-broadcast channel.
func (p *pnlTracker) Record(trades engine.Trades, client EngineClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, trade := range trades {
		if client.OwnsOrder(trade.Bid.OrderID) {
			p.position += trade.Bid.Quantity
			p.cash -= trade.Bid.Price * trade.Bid.Quantity
		}
		if client.OwnsOrder(trade.Ask.OrderID) {
			p.position -= trade.Ask.Quantity
			p.cash += trade.Ask.Price * trade.Ask.Quantity
		}
	}
}

func (p *pnlTracker) Snapshot() (int64, int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, p.cash
}

// RunExampleSupervisor demonstrates spinning up the supervisor with a fresh book.
func RunExampleSupervisor() {
	book := engine.NewOrderbook()
	sup := NewSupervisor(book, "SIM", 1, 50*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sup.Start(ctx)
	book.Stop()
	fmt.Printf("final PNL position=%d cash=%d\n", sup.pnl.position, sup.pnl.cash)
}

package bots

import (
	"context"
	"time"

	"limitless/engine"
)

// SpreadCaptureBot maintains paired bids/asks and re-prices when the spread moves.
type SpreadCaptureBot struct {
	Interval       time.Duration
	Lifetime       time.Duration
	ThresholdTicks int64
	Quantity       int64
}

type pairedOrders struct {
	buyID     string
	sellID    string
	anchorMid int64
	placedAt  time.Time
}

func NewSpreadCaptureBot() *SpreadCaptureBot {
	return &SpreadCaptureBot{
		Interval:       300 * time.Millisecond,
		Lifetime:       3 * time.Second,
		ThresholdTicks: 3,
		Quantity:       1,
	}
}

func (b *SpreadCaptureBot) Start(ctx context.Context, client EngineClient) {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	var pair *pairedOrders
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pair = b.refreshPair(ctx, client, client.Snapshot(), pair)
		}
	}
}

func (b *SpreadCaptureBot) refreshPair(ctx context.Context, client EngineClient, infos engine.OrderbookLevelInfos, pair *pairedOrders) *pairedOrders {
	if len(infos.Bids) == 0 || len(infos.Asks) == 0 {
		return b.cancelPair(client, pair)
	}
	bid := infos.Bids[0]
	ask := infos.Asks[0]
	mid := (bid.Price + ask.Price) / 2
	threshold := b.ThresholdTicks * client.TickSize()

	if pair != nil {
		if time.Since(pair.placedAt) > b.Lifetime {
			return b.cancelPair(client, pair)
		}
		if absInt64(mid-pair.anchorMid) >= threshold {
			pair = b.cancelPair(client, pair)
		}
	}

	if pair != nil {
		return pair
	}

	buyPrice := bid.Price
	if mid-client.TickSize() > 0 {
		buyPrice = mid - client.TickSize()
	}
	sellPrice := ask.Price
	if sellPrice <= buyPrice {
		sellPrice = buyPrice + client.TickSize()
	}

	buyID := client.NextID("spread-bid")
	sellID := client.NextID("spread-ask")

	buyOrder := engine.NewOrder(buyID, engine.Buy, engine.GoodTillCancel, buyPrice, b.Quantity)
	sellOrder := engine.NewOrder(sellID, engine.Sell, engine.GoodTillCancel, sellPrice, b.Quantity)

	if _, err := client.SubmitOrder(ctx, buyOrder); err != nil {
		return pair
	}
	if _, err := client.SubmitOrder(ctx, sellOrder); err != nil {
		client.CancelOrder(buyID)
		return pair
	}

	return &pairedOrders{buyID: buyID, sellID: sellID, anchorMid: mid, placedAt: time.Now()}
}

func (b *SpreadCaptureBot) cancelPair(client EngineClient, pair *pairedOrders) *pairedOrders {
	if pair == nil {
		return nil
	}
	client.CancelOrder(pair.buyID)
	client.CancelOrder(pair.sellID)
	return nil
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

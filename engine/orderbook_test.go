package engine

import "testing"

func assertTradeCount(t *testing.T, trades Trades, want int) {
	t.Helper()
	if len(trades) != want {
		t.Fatalf("expected %d trades, got %d: %+v", want, len(trades), trades)
	}
}

func TestAddGTCBuyToEmptyBook(t *testing.T) {
	ob := NewOrderbook()
	defer ob.Stop()

	trades := ob.AddOrder(NewOrder("1", Buy, GoodTillCancel, 100, 10))
	assertTradeCount(t, trades, 0)

	if got := ob.Size(); got != 1 {
		t.Fatalf("expected size 1, got %d", got)
	}

	infos := ob.GetLevelInfos()
	if len(infos.Bids) != 1 || infos.Bids[0] != (LevelInfo{Price: 100, Quantity: 10}) {
		t.Fatalf("unexpected bid levels: %+v", infos.Bids)
	}
}

func TestCancelEmptiesBook(t *testing.T) {
	ob := NewOrderbook()
	defer ob.Stop()

	ob.AddOrder(NewOrder("1", Buy, GoodTillCancel, 100, 10))
	ob.CancelOrder("1")

	if got := ob.Size(); got != 0 {
		t.Fatalf("expected size 0 after cancel, got %d", got)
	}
	infos := ob.GetLevelInfos()
	if len(infos.Bids) != 0 {
		t.Fatalf("expected no bid levels, got %+v", infos.Bids)
	}
}

func TestMultiLevelMatchAcrossTwoAsks(t *testing.T) {
	ob := NewOrderbook()
	defer ob.Stop()

	ob.AddOrder(NewOrder("10", Sell, GoodTillCancel, 101, 5))
	ob.AddOrder(NewOrder("11", Sell, GoodTillCancel, 102, 5))

	trades := ob.AddOrder(NewOrder("20", Buy, GoodTillCancel, 102, 8))
	assertTradeCount(t, trades, 2)

	if trades[0].Ask.OrderID != "10" || trades[0].Bid.Quantity != 5 || trades[0].Ask.Price != 101 {
		t.Fatalf("unexpected first trade: %+v", trades[0])
	}
	if trades[1].Ask.OrderID != "11" || trades[1].Bid.Quantity != 3 || trades[1].Ask.Price != 102 {
		t.Fatalf("unexpected second trade: %+v", trades[1])
	}

	if got := ob.Size(); got != 1 {
		t.Fatalf("expected size 1 (id=11 partially resident), got %d", got)
	}
	infos := ob.GetLevelInfos()
	if len(infos.Asks) != 1 || infos.Asks[0] != (LevelInfo{Price: 102, Quantity: 2}) {
		t.Fatalf("unexpected ask levels: %+v", infos.Asks)
	}
}

func TestFillOrKillRejectsWithoutInserting(t *testing.T) {
	ob := NewOrderbook()
	defer ob.Stop()

	ob.AddOrder(NewOrder("30", Sell, GoodTillCancel, 100, 5))

	trades := ob.AddOrder(NewOrder("31", Buy, FillOrKill, 100, 10))
	assertTradeCount(t, trades, 0)

	if got := ob.Size(); got != 1 {
		t.Fatalf("expected only the original ask resident, got size %d", got)
	}
	if _, ok := ob.orders["31"]; ok {
		t.Fatalf("FOK order must never become resident")
	}
}

func TestFillAndKillCancelsResidual(t *testing.T) {
	ob := NewOrderbook()
	defer ob.Stop()

	ob.AddOrder(NewOrder("40", Sell, GoodTillCancel, 100, 5))

	trades := ob.AddOrder(NewOrder("41", Buy, FillAndKill, 100, 10))
	assertTradeCount(t, trades, 1)
	if trades[0].Bid.Quantity != 5 {
		t.Fatalf("expected fill of 5, got %+v", trades[0])
	}

	if got := ob.Size(); got != 0 {
		t.Fatalf("expected FAK residual to be cancelled, got size %d", got)
	}
}

func TestMarketOrderRejectedWithoutLiquidity(t *testing.T) {
	ob := NewOrderbook()
	defer ob.Stop()

	trades := ob.AddOrder(NewOrder("50", Buy, Market, 0, 1))
	assertTradeCount(t, trades, 0)
	if got := ob.Size(); got != 0 {
		t.Fatalf("expected empty book, got size %d", got)
	}
}

func TestMarketOrderConsumesWorstOppositePrice(t *testing.T) {
	ob := NewOrderbook()
	defer ob.Stop()

	ob.AddOrder(NewOrder("a1", Sell, GoodTillCancel, 50, 2))
	ob.AddOrder(NewOrder("a2", Sell, GoodTillCancel, 55, 5))

	trades := ob.AddOrder(NewOrder("m1", Buy, Market, 0, 4))
	assertTradeCount(t, trades, 2)
	if trades[0].Ask.Price != 50 || trades[0].Bid.Quantity != 2 {
		t.Fatalf("unexpected first trade %+v", trades[0])
	}
	if trades[1].Ask.Price != 55 || trades[1].Bid.Quantity != 2 {
		t.Fatalf("unexpected second trade %+v", trades[1])
	}
}

func TestDuplicateOrderIDIsNoOp(t *testing.T) {
	ob := NewOrderbook()
	defer ob.Stop()

	ob.AddOrder(NewOrder("1", Buy, GoodTillCancel, 100, 10))
	trades := ob.AddOrder(NewOrder("1", Buy, GoodTillCancel, 200, 99))
	assertTradeCount(t, trades, 0)

	if got := ob.Size(); got != 1 {
		t.Fatalf("expected size 1, got %d", got)
	}
	infos := ob.GetLevelInfos()
	if infos.Bids[0].Price != 100 {
		t.Fatalf("duplicate add must not mutate the resident order: %+v", infos.Bids)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	ob := NewOrderbook()
	defer ob.Stop()

	ob.AddOrder(NewOrder("1", Buy, GoodTillCancel, 100, 10))
	ob.CancelOrder("1")
	ob.CancelOrder("1") // must not panic or double-decrement the aggregate

	if got := ob.Size(); got != 0 {
		t.Fatalf("expected size 0, got %d", got)
	}
}

func TestModifyOrderLosesQueuePriority(t *testing.T) {
	ob := NewOrderbook()
	defer ob.Stop()

	ob.AddOrder(NewOrder("1", Buy, GoodTillCancel, 100, 5))
	ob.AddOrder(NewOrder("2", Buy, GoodTillCancel, 100, 5))

	// Modify id=1 back to the same price; it must now sit behind id=2.
	ob.ModifyOrder(OrderModify{ID: "1", Side: Buy, Price: 100, Quantity: 5})

	trades := ob.AddOrder(NewOrder("3", Sell, GoodTillCancel, 100, 5))
	assertTradeCount(t, trades, 1)
	if trades[0].Bid.OrderID != "2" {
		t.Fatalf("expected id=2 (not re-added id=1) to trade first, got %+v", trades[0])
	}
}

func TestModifyOfMissingIDIsNoOp(t *testing.T) {
	ob := NewOrderbook()
	defer ob.Stop()

	trades := ob.ModifyOrder(OrderModify{ID: "ghost", Side: Buy, Price: 1, Quantity: 1})
	assertTradeCount(t, trades, 0)
}

func TestModifyPreservesOriginalType(t *testing.T) {
	ob := NewOrderbook()
	defer ob.Stop()

	ob.AddOrder(NewOrder("1", Sell, GoodForDay, 100, 5))
	ob.ModifyOrder(OrderModify{ID: "1", Side: Sell, Price: 110, Quantity: 5})

	entry, ok := ob.orders["1"]
	if !ok {
		t.Fatalf("expected order 1 to still be resident")
	}
	if entry.order.Type != GoodForDay {
		t.Fatalf("expected original type GoodForDay preserved, got %v", entry.order.Type)
	}
}

func TestAggregateMatchesQueueAfterMixedOps(t *testing.T) {
	ob := NewOrderbook()
	defer ob.Stop()

	ob.AddOrder(NewOrder("b1", Buy, GoodTillCancel, 100, 3))
	ob.AddOrder(NewOrder("b2", Buy, GoodTillCancel, 100, 4))
	ob.AddOrder(NewOrder("b3", Buy, GoodTillCancel, 99, 2))
	ob.CancelOrder("b1")
	ob.AddOrder(NewOrder("s1", Sell, GoodTillCancel, 100, 5))

	for price, level := range ob.bidLevels {
		data, ok := ob.levels[price]
		if !ok {
			t.Fatalf("aggregate missing for resident price %d", price)
		}
		if int64(level.orders.Len()) != data.count {
			t.Fatalf("price %d: aggregate count %d != queue length %d", price, data.count, level.orders.Len())
		}
		if levelQuantity(level) != data.quantity {
			t.Fatalf("price %d: aggregate quantity %d != summed remaining %d", price, data.quantity, levelQuantity(level))
		}
	}
}

func TestTradesNeverCrossMakerLimits(t *testing.T) {
	ob := NewOrderbook()
	defer ob.Stop()

	ob.AddOrder(NewOrder("s1", Sell, GoodTillCancel, 105, 5))
	trades := ob.AddOrder(NewOrder("b1", Buy, GoodTillCancel, 110, 5))
	assertTradeCount(t, trades, 1)
	if trades[0].Bid.Price < trades[0].Ask.Price {
		t.Fatalf("trade crossed maker limits: %+v", trades[0])
	}
}

package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"
)

// Orderbook maintains bids and asks for a single instrument under price-
// time priority. All mutating operations run under mu; a dedicated
// goroutine prunes good-for-day orders at the daily cutoff and contends
// for the same mutex (see expiry.go).
//
// Orderbook must not be copied after first use: it owns a mutex, a
// condition variable, and a background goroutine. go vet's copylocks
// check flags accidental copies.
type Orderbook struct {
	mu   sync.Mutex
	cond *sync.Cond

	bidLevels map[int64]*priceLevel
	askLevels map[int64]*priceLevel
	bidPrices *btree.BTree // of bidPriceItem
	askPrices *btree.BTree // of askPriceItem
	levels    map[int64]*levelData
	orders    map[string]*orderEntry

	expiry
}

// NewOrderbook builds an empty book and starts its good-for-day expiry
// worker. Callers must call Stop when done with the book to join that
// goroutine.
func NewOrderbook(opts ...Option) *Orderbook {
	ob := &Orderbook{
		bidLevels: make(map[int64]*priceLevel),
		askLevels: make(map[int64]*priceLevel),
		bidPrices: btree.New(btreeDegree),
		askPrices: btree.New(btreeDegree),
		levels:    make(map[int64]*levelData),
		orders:    make(map[string]*orderEntry),
	}
	ob.cond = sync.NewCond(&ob.mu)
	ob.initExpiry()
	for _, opt := range opts {
		opt(ob)
	}
	ob.startExpiryWorker()
	return ob
}

// Option configures an Orderbook at construction time. There are exactly
// two tunables: the daily good-for-day cutoff hour and the expiry slack.
type Option func(*Orderbook)

// WithCutoffHour overrides the default 16:00 local good-for-day cutoff.
func WithCutoffHour(hour int) Option {
	return func(ob *Orderbook) { ob.cutoffHour = hour }
}

// WithExpirySlack overrides the default 100ms cutoff slack.
func WithExpirySlack(slack time.Duration) Option {
	return func(ob *Orderbook) { ob.slack = slack }
}

// AddOrder admits order into the book, matches it to quiescence, and
// returns every trade it participated in. This is the entry point for
// all five order types; admission policy (resting, killing, rejecting)
// is decided per type inside addOrderLocked.
func (ob *Orderbook) AddOrder(order *Order) Trades {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.addOrderLocked(order)
}

func (ob *Orderbook) addOrderLocked(order *Order) Trades {
	if _, exists := ob.orders[order.ID]; exists {
		return nil
	}

	if order.Type == Market {
		if order.Side == Buy && ob.askPrices.Len() > 0 {
			order.ToGoodTillCancel(int64(ob.askPrices.Max().(askPriceItem)))
		} else if order.Side == Sell && ob.bidPrices.Len() > 0 {
			order.ToGoodTillCancel(int64(ob.bidPrices.Max().(bidPriceItem)))
		} else {
			return nil
		}
	}

	if order.Type == FillAndKill && !ob.canMatch(order.Side, order.Price) {
		return nil
	}

	if order.Type == FillOrKill && !ob.canFullyFill(order.Side, order.Price, order.Remaining) {
		return nil
	}

	ob.insertLocked(order)

	trades := ob.matchOrders()

	ob.cancelFillAndKillTail(Buy)
	ob.cancelFillAndKillTail(Sell)

	return trades
}

// insertLocked appends order to the tail of its side's queue at its
// price, records its id-index entry, and grows the level aggregate.
func (ob *Orderbook) insertLocked(order *Order) {
	levels, prices := ob.sideState(order.Side)

	level, ok := levels[order.Price]
	if !ok {
		level = newPriceLevel()
		levels[order.Price] = level
		if order.Side == Buy {
			prices.ReplaceOrInsert(bidPriceItem(order.Price))
		} else {
			prices.ReplaceOrInsert(askPriceItem(order.Price))
		}
	}

	elem := level.orders.PushBack(order)
	ob.orders[order.ID] = &orderEntry{order: order, elem: elem, side: order.Side}
	ob.levelFor(order.Price).apply(levelAdd, order.Remaining)
}

func (ob *Orderbook) sideState(side Side) (map[int64]*priceLevel, *btree.BTree) {
	if side == Buy {
		return ob.bidLevels, ob.bidPrices
	}
	return ob.askLevels, ob.askPrices
}

func (ob *Orderbook) levelFor(price int64) *levelData {
	d, ok := ob.levels[price]
	if !ok {
		d = &levelData{}
		ob.levels[price] = d
	}
	return d
}

// canMatch reports whether an order on side at price would cross the
// best resting price on the opposite side.
func (ob *Orderbook) canMatch(side Side, price int64) bool {
	if side == Buy {
		if ob.askPrices.Len() == 0 {
			return false
		}
		return price >= int64(ob.askPrices.Min().(askPriceItem))
	}
	if ob.bidPrices.Len() == 0 {
		return false
	}
	return price <= int64(ob.bidPrices.Min().(bidPriceItem))
}

// canFullyFill reports whether quantity can be completely matched against
// resting liquidity at price or better, without actually matching
// anything. It is a pure read of the level aggregate table and never
// mutates the book; fill-or-kill orders call it before touching any
// resting order.
func (ob *Orderbook) canFullyFill(side Side, price, quantity int64) bool {
	if !ob.canMatch(side, price) {
		return false
	}

	var threshold int64
	if side == Buy {
		threshold = int64(ob.askPrices.Min().(askPriceItem))
	} else {
		threshold = int64(ob.bidPrices.Min().(bidPriceItem))
	}

	for levelPrice, data := range ob.levels {
		if side == Buy && threshold > levelPrice {
			continue
		}
		if side == Sell && threshold < levelPrice {
			continue
		}
		if side == Buy && levelPrice > price {
			continue
		}
		if side == Sell && levelPrice < price {
			continue
		}

		if quantity <= data.quantity {
			return true
		}
		quantity -= data.quantity
	}

	return false
}

// matchOrders repeatedly crosses the best bid against the best ask,
// executing trades at price-time priority until neither side can match
// the other, i.e. until the book reaches quiescence.
func (ob *Orderbook) matchOrders() Trades {
	var trades Trades

	for {
		if ob.bidPrices.Len() == 0 || ob.askPrices.Len() == 0 {
			break
		}

		bidPrice := int64(ob.bidPrices.Min().(bidPriceItem))
		askPrice := int64(ob.askPrices.Min().(askPriceItem))
		if bidPrice < askPrice {
			break
		}

		bidLevel := ob.bidLevels[bidPrice]
		askLevel := ob.askLevels[askPrice]

		for !bidLevel.empty() && !askLevel.empty() {
			bidElem := bidLevel.orders.Front()
			askElem := askLevel.orders.Front()
			bid := bidElem.Value.(*Order)
			ask := askElem.Value.(*Order)

			qty := min64(bid.Remaining, ask.Remaining)
			bid.Fill(qty)
			ask.Fill(qty)

			trades = append(trades, Trade{
				Bid: TradeInfo{OrderID: bid.ID, Price: bid.Price, Quantity: qty},
				Ask: TradeInfo{OrderID: ask.ID, Price: ask.Price, Quantity: qty},
			})

			if bid.IsFilled() {
				bidLevel.orders.Remove(bidElem)
				delete(ob.orders, bid.ID)
			}
			if ask.IsFilled() {
				askLevel.orders.Remove(askElem)
				delete(ob.orders, ask.ID)
			}

			ob.onOrderMatched(bid.Price, qty, bid.IsFilled())
			ob.onOrderMatched(ask.Price, qty, ask.IsFilled())
		}

		if bidLevel.empty() {
			delete(ob.bidLevels, bidPrice)
			ob.bidPrices.Delete(bidPriceItem(bidPrice))
		}
		if askLevel.empty() {
			delete(ob.askLevels, askPrice)
			ob.askPrices.Delete(askPriceItem(askPrice))
		}
	}

	return trades
}

// cancelFillAndKillTail implements the tail cleanup described in spec
// section 4.3: after matching to quiescence, a FillAndKill order that
// partially filled and still heads its side is canceled.
func (ob *Orderbook) cancelFillAndKillTail(side Side) {
	levels, prices := ob.sideState(side)
	if prices.Len() == 0 {
		return
	}

	var best int64
	if side == Buy {
		best = int64(prices.Min().(bidPriceItem))
	} else {
		best = int64(prices.Min().(askPriceItem))
	}

	level := levels[best]
	head := level.front()
	if head != nil && head.Type == FillAndKill {
		ob.cancelOrderLocked(head.ID)
	}
}

// onOrderMatched applies the aggregate-maintenance action a fill implies:
// Remove when the fill empties the order, Match when it leaves a residual.
func (ob *Orderbook) onOrderMatched(price, quantity int64, fullyFilled bool) {
	action := levelMatch
	if fullyFilled {
		action = levelRemove
	}
	ob.updateLevel(price, quantity, action)
}

func (ob *Orderbook) updateLevel(price, quantity int64, action levelAction) {
	data := ob.levelFor(price)
	data.apply(action, quantity)
	// A level whose Add, Match and Remove actions no longer sum to zero is
	// a programming fault, not a state the book can recover from.
	if data.count < 0 || data.quantity < 0 || (data.count == 0 && data.quantity != 0) {
		panic(fmt.Sprintf("level %d: aggregate out of balance (count %d, quantity %d)", price, data.count, data.quantity))
	}
	if data.count == 0 {
		delete(ob.levels, price)
	}
}

// CancelOrder removes order id from the book. Idempotent: canceling an
// absent id is a no-op.
func (ob *Orderbook) CancelOrder(id string) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.cancelOrderLocked(id)
}

// CancelOrders cancels a batch of ids under a single critical section;
// used by the expiry worker so the good-for-day sweep does not interleave
// with other writers order by order.
func (ob *Orderbook) CancelOrders(ids []string) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	for _, id := range ids {
		ob.cancelOrderLocked(id)
	}
}

func (ob *Orderbook) cancelOrderLocked(id string) {
	entry, ok := ob.orders[id]
	if !ok {
		return
	}
	delete(ob.orders, id)

	levels, prices := ob.sideState(entry.side)
	level := levels[entry.order.Price]
	level.orders.Remove(entry.elem)
	if level.empty() {
		delete(levels, entry.order.Price)
		if entry.side == Buy {
			prices.Delete(bidPriceItem(entry.order.Price))
		} else {
			prices.Delete(askPriceItem(entry.order.Price))
		}
	}

	ob.updateLevel(entry.order.Price, entry.order.Remaining, levelRemove)
}

// ModifyOrder replaces the resident order identified by request.ID with a
// freshly admitted order of the same original type, new side/price/
// quantity. Equivalent to CancelOrder followed by AddOrder; not atomic
// across the two steps, since the cancellation must release its
// aggregate bookkeeping before the new order can be admitted.
func (ob *Orderbook) ModifyOrder(request OrderModify) Trades {
	ob.mu.Lock()
	entry, ok := ob.orders[request.ID]
	if !ok {
		ob.mu.Unlock()
		return nil
	}
	orderType := entry.order.Type
	ob.cancelOrderLocked(request.ID)
	trades := ob.addOrderLocked(request.toOrder(orderType))
	ob.mu.Unlock()
	return trades
}

// Size returns the count of resident orders.
func (ob *Orderbook) Size() int {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return len(ob.orders)
}

// GetLevelInfos returns a snapshot of per-level aggregate quantity on each
// side, bids best-first (highest price first), asks best-first (lowest
// price first). Taken entirely under the lock.
func (ob *Orderbook) GetLevelInfos() OrderbookLevelInfos {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	bids := make([]LevelInfo, 0, len(ob.bidLevels))
	ob.bidPrices.Ascend(func(item btree.Item) bool {
		price := int64(item.(bidPriceItem))
		bids = append(bids, LevelInfo{Price: price, Quantity: levelQuantity(ob.bidLevels[price])})
		return true
	})

	asks := make([]LevelInfo, 0, len(ob.askLevels))
	ob.askPrices.Ascend(func(item btree.Item) bool {
		price := int64(item.(askPriceItem))
		asks = append(asks, LevelInfo{Price: price, Quantity: levelQuantity(ob.askLevels[price])})
		return true
	})

	return OrderbookLevelInfos{Bids: bids, Asks: asks}
}

// levelQuantity sums Remaining over a level's resident orders directly
// from the queue, independent of the aggregate table, so GetLevelInfos
// stays correct even if the caller is auditing the aggregate invariant.
func levelQuantity(level *priceLevel) int64 {
	var total int64
	for e := level.orders.Front(); e != nil; e = e.Next() {
		total += e.Value.(*Order).Remaining
	}
	return total
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

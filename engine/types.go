package engine

import "fmt"

// Side is the direction of an order: Buy (bid) or Sell (ask).
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

// OrderType is the order-lifetime discipline an order was admitted under.
//
// Only GoodTillCancel and GoodForDay orders can ever become resident.
// FillAndKill and FillOrKill either match immediately or never enter the
// book. Market is rewritten to GoodTillCancel at a synthetic price on
// admission (AddOrder) and never survives as Market past that call.
type OrderType int

const (
	GoodTillCancel OrderType = iota
	GoodForDay
	FillAndKill
	FillOrKill
	Market
)

func (t OrderType) String() string {
	switch t {
	case GoodTillCancel:
		return "GoodTillCancel"
	case GoodForDay:
		return "GoodForDay"
	case FillAndKill:
		return "FillAndKill"
	case FillOrKill:
		return "FillOrKill"
	case Market:
		return "Market"
	default:
		return fmt.Sprintf("OrderType(%d)", int(t))
	}
}

// Order is a resident or in-flight limit order.
//
// ID and Side are fixed at construction. Type and Price change only once,
// when a Market order is rewritten to GoodTillCancel on admission (see
// ToGoodTillCancel); Remaining changes on every fill. The invariant 0 <= Remaining <= Quantity holds for the lifetime of
// the value; Remaining == 0 iff the order is fully filled.
type Order struct {
	ID        string
	Side      Side
	Type      OrderType
	Price     int64
	Quantity  int64
	Remaining int64
}

// NewOrder constructs an order with Remaining initialized to Quantity.
func NewOrder(id string, side Side, orderType OrderType, price, quantity int64) *Order {
	return &Order{
		ID:        id,
		Side:      side,
		Type:      orderType,
		Price:     price,
		Quantity:  quantity,
		Remaining: quantity,
	}
}

// ToGoodTillCancel rewrites a Market order in place to GoodTillCancel at
// the given synthetic price. Called exactly once, during admission.
func (o *Order) ToGoodTillCancel(price int64) {
	o.Type = GoodTillCancel
	o.Price = price
}

// Fill reduces Remaining by qty. qty must not exceed Remaining.
func (o *Order) Fill(qty int64) {
	if qty > o.Remaining {
		panic(fmt.Sprintf("order %s: fill %d exceeds remaining %d", o.ID, qty, o.Remaining))
	}
	o.Remaining -= qty
}

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool {
	return o.Remaining == 0
}

// OrderModify carries a request to replace the resident order identified
// by ID with one of the same original type but new side/price/quantity.
// Time priority is not preserved: the replacement lands at the tail of its
// destination queue (see Orderbook.ModifyOrder).
type OrderModify struct {
	ID       string
	Side     Side
	Price    int64
	Quantity int64
}

// toOrder builds the replacement Order, carrying forward orderType from
// the order being replaced.
func (m OrderModify) toOrder(orderType OrderType) *Order {
	return NewOrder(m.ID, m.Side, orderType, m.Price, m.Quantity)
}

// TradeInfo is one side of a Trade: the resident or taking order's own id,
// its own price (not a midpoint), and the quantity that changed hands.
type TradeInfo struct {
	OrderID  string `json:"orderId"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

// Trade is a single match: one fill on the bid side, one on the ask side,
// for the same quantity.
type Trade struct {
	Bid TradeInfo `json:"bid"`
	Ask TradeInfo `json:"ask"`
}

// Trades is a list of trades, returned append-only from AddOrder.
type Trades []Trade

// LevelInfo is the aggregate (price, total resident quantity) for one
// price level on one side of the book.
type LevelInfo struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
}

// OrderbookLevelInfos is the read-only snapshot returned by
// Orderbook.GetLevelInfos: bids best-first (highest price first), asks
// best-first (lowest price first).
type OrderbookLevelInfos struct {
	Bids []LevelInfo `json:"bids"`
	Asks []LevelInfo `json:"asks"`
}

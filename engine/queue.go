package engine

import (
	"container/list"

	"github.com/google/btree"
)

// btreeDegree matches 0ghost0-dev-PJSe's choice of a low-degree B-tree for
// price indices; the book only ever holds a handful of distinct price
// levels relative to the number of resident orders, so a small tree with
// narrow nodes keeps Min/Max/Delete cheap.
const btreeDegree = 4

// askPriceItem orders ascending by price: Min() is the best ask (lowest
// price), Max() is the worst ask (highest price).
type askPriceItem int64

func (a askPriceItem) Less(than btree.Item) bool {
	return a < than.(askPriceItem)
}

// bidPriceItem orders descending by price: Min() is the best bid (highest
// price), Max() is the worst bid (lowest price).
type bidPriceItem int64

func (b bidPriceItem) Less(than btree.Item) bool {
	return b > than.(bidPriceItem)
}

// priceLevel is the time-ordered queue of resident orders at one price on
// one side. list.Element pointers handed out by PushBack remain valid
// across unrelated Remove calls on the same list, which is exactly the
// stable interior handle the id index needs.
type priceLevel struct {
	orders *list.List // of *Order, FIFO: Front is oldest
}

func newPriceLevel() *priceLevel {
	return &priceLevel{orders: list.New()}
}

func (pl *priceLevel) empty() bool {
	return pl.orders.Len() == 0
}

func (pl *priceLevel) front() *Order {
	if pl.orders.Len() == 0 {
		return nil
	}
	return pl.orders.Front().Value.(*Order)
}

// levelAction selects which of the three aggregate-maintenance
// operations updateLevel performs: adding a freshly resting order,
// removing a cancelled one, or shrinking one that partially filled.
type levelAction int

const (
	levelAdd levelAction = iota
	levelRemove
	levelMatch
)

// levelData is the per-price aggregate: resident-order count and summed
// remaining quantity. Count reaches zero exactly when the price is no
// longer resident on either side, at which point the entry is dropped from
// the owning Orderbook's levels map.
type levelData struct {
	count    int64
	quantity int64
}

func (d *levelData) apply(action levelAction, qty int64) {
	switch action {
	case levelAdd:
		d.count++
		d.quantity += qty
	case levelRemove:
		d.count--
		d.quantity -= qty
	case levelMatch:
		d.quantity -= qty
	}
}

// orderEntry is the id index's value: the order itself, its position
// handle inside the resident queue, and which side it rests on (needed to
// know which of bids/asks/bidPrices/askPrices to mutate on cancel).
type orderEntry struct {
	order *Order
	elem  *list.Element
	side  Side
}

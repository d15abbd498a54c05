package book

import (
	"container/heap"
	"fmt"
	"sort"
)

// orderRef locates a resting order for O(1) cancellation.
type orderRef struct {
	side  Side
	price int64
}

// LevelSnapshot is an aggregated view of one price level, used for depth
// queries and state reporting.
type LevelSnapshot struct {
	Price  int64 `json:"price"`
	Qty    int64 `json:"qty"`
	Orders int   `json:"orders"`
}

// OrderBook holds the resting liquidity of one trading pair: ask levels keyed
// ascending by price, bid levels keyed descending, and an order-id index for
// cancellation. The book is a pure data structure; serialization of
// submit/cancel on the same book is owned by the registry handle.
type OrderBook struct {
	pair string

	// Heap-based best price tracking (O(1) peek).
	bidHeap *maxPriceHeap
	askHeap *minPriceHeap

	// Price level queues (FIFO matching at each price).
	bids map[int64]*PriceLevel
	asks map[int64]*PriceLevel

	index map[uint64]orderRef

	lastPrice int64 // most recent fill price, 0 until the first trade
	nextSeq   uint64
}

func NewOrderBook(pair string) *OrderBook {
	bidHeap := &maxPriceHeap{}
	askHeap := &minPriceHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)

	return &OrderBook{
		pair:    pair,
		bidHeap: bidHeap,
		askHeap: askHeap,
		bids:    make(map[int64]*PriceLevel),
		asks:    make(map[int64]*PriceLevel),
		index:   make(map[uint64]orderRef),
	}
}

func (ob *OrderBook) Pair() string { return ob.pair }

// Size returns the number of resting orders across both sides.
func (ob *OrderBook) Size() int { return len(ob.index) }

// Contains reports whether an order id is resting in the book.
func (ob *OrderBook) Contains(id uint64) bool {
	_, ok := ob.index[id]
	return ok
}

// Get returns the resting order with the given id.
func (ob *OrderBook) Get(id uint64) (*Order, bool) {
	ref, ok := ob.index[id]
	if !ok {
		return nil, false
	}
	level, ok := ob.levels(ref.side)[ref.price]
	if !ok {
		return nil, false
	}
	for _, o := range level.Orders() {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}

// BestBid returns the highest-priced bid level.
func (ob *OrderBook) BestBid() (*PriceLevel, bool) {
	if ob.bidHeap.Len() == 0 {
		return nil, false
	}
	return ob.bids[ob.bidHeap.Peek()], true
}

// BestAsk returns the lowest-priced ask level.
func (ob *OrderBook) BestAsk() (*PriceLevel, bool) {
	if ob.askHeap.Len() == 0 {
		return nil, false
	}
	return ob.asks[ob.askHeap.Peek()], true
}

// InsertResting places an order into the level for its price, creating the
// level if absent, and records it in the cancellation index. The insertion
// sequence number is assigned here.
func (ob *OrderBook) InsertResting(o *Order) error {
	if o.Price <= 0 {
		return fmt.Errorf("insert order %d: %w", o.ID, ErrInvalidPrice)
	}
	if o.Remaining <= 0 {
		return fmt.Errorf("insert order %d: %w", o.ID, ErrInvalidQuantity)
	}
	if _, exists := ob.index[o.ID]; exists {
		return fmt.Errorf("insert order %d: %w", o.ID, ErrDuplicateOrderID)
	}

	ob.nextSeq++
	o.Seq = ob.nextSeq

	side := ob.levels(o.Side)
	level, ok := side[o.Price]
	if !ok {
		level = NewPriceLevel(o.Price)
		side[o.Price] = level
		if o.Side == Bid {
			heap.Push(ob.bidHeap, o.Price)
		} else {
			heap.Push(ob.askHeap, o.Price)
		}
	}
	level.Push(o)
	ob.index[o.ID] = orderRef{side: o.Side, price: o.Price}
	return nil
}

// Cancel removes a resting order, deleting its level if now empty, and
// returns the removed order.
func (ob *OrderBook) Cancel(id uint64) (*Order, error) {
	ref, ok := ob.index[id]
	if !ok {
		return nil, fmt.Errorf("cancel order %d: %w", id, ErrOrderNotFound)
	}

	level, ok := ob.levels(ref.side)[ref.price]
	if !ok {
		return nil, fmt.Errorf("cancel order %d: %w", id, ErrOrderNotFound)
	}
	o := level.Remove(id)
	if o == nil {
		return nil, fmt.Errorf("cancel order %d: %w", id, ErrOrderNotFound)
	}
	delete(ob.index, id)
	if level.IsEmpty() {
		ob.dropLevel(ref.side, ref.price)
	}
	return o, nil
}

// RemoveBestIfFilled pops the front order of the best level on the given side
// if it has been fully consumed, deleting the level when it empties. Invoked
// by the matching engine after exhausting a maker.
func (ob *OrderBook) RemoveBestIfFilled(side Side) (*Order, bool) {
	var level *PriceLevel
	var ok bool
	if side == Bid {
		level, ok = ob.BestBid()
	} else {
		level, ok = ob.BestAsk()
	}
	if !ok {
		return nil, false
	}
	front, ok := level.PeekFront()
	if !ok || front.Remaining != 0 {
		return nil, false
	}
	level.PopFront()
	delete(ob.index, front.ID)
	if level.IsEmpty() {
		ob.dropLevel(side, level.Price)
	}
	return front, true
}

// Levels returns the side's price levels ordered best-first. The slice is a
// copy; the levels themselves are shared.
func (ob *OrderBook) Levels(side Side) []*PriceLevel {
	m := ob.levels(side)
	out := make([]*PriceLevel, 0, len(m))
	for _, level := range m {
		out = append(out, level)
	}
	sort.Slice(out, func(i, j int) bool {
		if side == Bid {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}

// Depth returns aggregated level snapshots for one side, best-first.
func (ob *OrderBook) Depth(side Side) []LevelSnapshot {
	levels := ob.Levels(side)
	out := make([]LevelSnapshot, 0, len(levels))
	for _, level := range levels {
		out = append(out, LevelSnapshot{
			Price:  level.Price,
			Qty:    level.TotalQty(),
			Orders: level.Len(),
		})
	}
	return out
}

// LastPrice returns the price of the most recent fill, 0 before any trade.
func (ob *OrderBook) LastPrice() int64 { return ob.lastPrice }

// SetLastPrice records the most recent fill price.
func (ob *OrderBook) SetLastPrice(p int64) { ob.lastPrice = p }

// MidPrice returns the average of best bid and best ask, or 0 when the book
// is empty or one-sided.
func (ob *OrderBook) MidPrice() int64 {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return 0
	}
	// Avoids int64 overflow for extreme prices.
	return bid.Price + (ask.Price-bid.Price)/2
}

func (ob *OrderBook) levels(side Side) map[int64]*PriceLevel {
	if side == Bid {
		return ob.bids
	}
	return ob.asks
}

func (ob *OrderBook) dropLevel(side Side, price int64) {
	if side == Bid {
		delete(ob.bids, price)
		removePrice(ob.bidHeap, price)
	} else {
		delete(ob.asks, price)
		removePrice(ob.askHeap, price)
	}
}

// removePrice deletes one price entry from a heap (O(n) scan, but only on
// level deletion).
func removePrice(h heap.Interface, price int64) {
	switch hp := h.(type) {
	case *maxPriceHeap:
		for i, p := range *hp {
			if p == price {
				heap.Remove(h, i)
				return
			}
		}
	case *minPriceHeap:
		for i, p := range *hp {
			if p == price {
				heap.Remove(h, i)
				return
			}
		}
	}
}

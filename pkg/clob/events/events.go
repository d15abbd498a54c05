package events

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Trade is emitted once per fill: taker matched against one resting maker.
type Trade struct {
	TradeID string         `json:"trade_id"`
	Pair    string         `json:"pair"`
	Price   int64          `json:"price"`
	Qty     int64          `json:"qty"`
	MakerID uint64         `json:"maker_id"`
	TakerID uint64         `json:"taker_id"`
	Maker   common.Address `json:"maker"`
	Taker   common.Address `json:"taker"`
	Time    time.Time      `json:"time"`
}

// BookCreated is emitted when a new pair is registered.
type BookCreated struct {
	Pair  string         `json:"pair"`
	Base  common.Address `json:"base"`
	Quote common.Address `json:"quote"`
	Time  time.Time      `json:"time"`
}

// OrderAccepted is emitted when an order (or its unfilled remainder) rests in
// the book as a maker.
type OrderAccepted struct {
	Pair    string         `json:"pair"`
	OrderID uint64         `json:"order_id"`
	Owner   common.Address `json:"owner"`
	Side    string         `json:"side"`
	Price   int64          `json:"price"`
	Qty     int64          `json:"qty"`
	Time    time.Time      `json:"time"`
}

// OrderCancelled is emitted when a resting order is cancelled.
type OrderCancelled struct {
	Pair    string    `json:"pair"`
	OrderID uint64    `json:"order_id"`
	Time    time.Time `json:"time"`
}

// Listener receives engine events. Implementations must be fast and
// non-blocking; the bus dispatches from a single goroutine.
type Listener interface {
	OnTrade(Trade)
	OnOrderAccepted(OrderAccepted)
	OnOrderCancelled(OrderCancelled)
	OnBookCreated(BookCreated)
}

// NopListener is the default no-op implementation.
type NopListener struct{}

func (NopListener) OnTrade(Trade)                   {}
func (NopListener) OnOrderAccepted(OrderAccepted)   {}
func (NopListener) OnOrderCancelled(OrderCancelled) {}
func (NopListener) OnBookCreated(BookCreated)       {}

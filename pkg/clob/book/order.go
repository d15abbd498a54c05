package book

import "github.com/ethereum/go-ethereum/common"

// Side is the direction of an order: Bid buys base with quote, Ask sells base.
type Side int8

const (
	Bid Side = 1
	Ask Side = -1
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side { return -s }

// Order is a limit order. Price is in smallest quote units per base unit,
// quantities in smallest base units. Remaining starts equal to Qty and the
// order is removed from the book when it reaches zero.
type Order struct {
	ID        uint64
	Owner     common.Address
	Side      Side
	Price     int64
	Qty       int64
	Remaining int64
	Seq       uint64 // insertion sequence, assigned by the book
	Pair      string // pair symbol in declared orientation
}

// Filled reports how much of the order has executed.
func (o *Order) Filled() int64 { return o.Qty - o.Remaining }

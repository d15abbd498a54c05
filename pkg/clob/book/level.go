package book

// PriceLevel is a FIFO queue of resting orders sharing one price. Orders are
// consumed oldest-first; the book deletes a level the moment it empties.
type PriceLevel struct {
	Price  int64
	orders []*Order
}

func NewPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{Price: price}
}

// Push appends an order to the tail of the queue.
func (pl *PriceLevel) Push(o *Order) {
	pl.orders = append(pl.orders, o)
}

// PeekFront returns the oldest resting order without removing it.
func (pl *PriceLevel) PeekFront() (*Order, bool) {
	if len(pl.orders) == 0 {
		return nil, false
	}
	return pl.orders[0], true
}

// PopFront removes and returns the oldest resting order.
func (pl *PriceLevel) PopFront() (*Order, bool) {
	if len(pl.orders) == 0 {
		return nil, false
	}
	o := pl.orders[0]
	pl.orders[0] = nil
	pl.orders = pl.orders[1:]
	return o, true
}

// Remove deletes the order with the given id, preserving FIFO order of the
// rest. Returns the removed order, or nil if the id is not at this level.
func (pl *PriceLevel) Remove(id uint64) *Order {
	for i, o := range pl.orders {
		if o.ID == id {
			pl.orders = append(pl.orders[:i], pl.orders[i+1:]...)
			return o
		}
	}
	return nil
}

func (pl *PriceLevel) Len() int      { return len(pl.orders) }
func (pl *PriceLevel) IsEmpty() bool { return len(pl.orders) == 0 }

// TotalQty sums the remaining quantity across all orders at this price.
func (pl *PriceLevel) TotalQty() int64 {
	var total int64
	for _, o := range pl.orders {
		total += o.Remaining
	}
	return total
}

// Orders returns the resting orders oldest-first. The slice is shared with
// the level; callers must not mutate it.
func (pl *PriceLevel) Orders() []*Order { return pl.orders }

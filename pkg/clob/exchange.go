// Package clob wires the order-book matching core to its collaborators: the
// pair registry, the balance ledger, role-based access control, and the event
// bus. The Exchange is the caller-facing surface; all capability checks
// happen here so the matching engine stays free of authorization concerns.
package clob

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/standardex/clob/pkg/clob/access"
	"github.com/standardex/clob/pkg/clob/book"
	"github.com/standardex/clob/pkg/clob/engine"
	"github.com/standardex/clob/pkg/clob/events"
	"github.com/standardex/clob/pkg/clob/ledger"
	"github.com/standardex/clob/pkg/clob/registry"
)

// Exchange owns the book registry and dispatches orders to the matching
// engine. One instance exists per process, constructed at startup and passed
// explicitly to callers.
type Exchange struct {
	books  *registry.BookRegistry
	engine *engine.MatchingEngine
	ledger *ledger.Ledger
	roles  *access.Registry
	bus    *events.Bus
	log    *zap.Logger

	nextOrderID atomic.Uint64
}

func NewExchange(l *ledger.Ledger, roles *access.Registry, bus *events.Bus, escrow common.Address, log *zap.Logger) *Exchange {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exchange{
		books:  registry.NewBookRegistry(),
		engine: engine.New(l, bus, escrow, log),
		ledger: l,
		roles:  roles,
		bus:    bus,
		log:    log,
	}
}

func (x *Exchange) Ledger() *ledger.Ledger        { return x.ledger }
func (x *Exchange) Roles() *access.Registry       { return x.roles }
func (x *Exchange) Books() *registry.BookRegistry { return x.books }
func (x *Exchange) FeeConfig() engine.FeeConfig   { return x.engine.FeeConfig() }

// AddPair registers a new order book for base/quote. Requires the booker
// role. The declared orientation is fixed here; a second registration for the
// same unordered pair fails.
func (x *Exchange) AddPair(caller, base, quote common.Address) (*registry.Handle, error) {
	if err := x.roles.Require(caller, access.RoleBooker); err != nil {
		return nil, err
	}
	h, err := x.books.Register(base, quote)
	if err != nil {
		return nil, err
	}
	if x.bus != nil {
		x.bus.PublishBookCreated(events.BookCreated{
			Pair:  h.Pair.Symbol(),
			Base:  h.Pair.Base,
			Quote: h.Pair.Quote,
			Time:  time.Now(),
		})
	}
	x.log.Info("pair registered",
		zap.String("pair", h.Pair.Symbol()),
		zap.String("by", caller.Hex()),
	)
	return h, nil
}

// SetFeeConfig replaces the taker fee configuration. Admin only.
func (x *Exchange) SetFeeConfig(caller common.Address, cfg engine.FeeConfig) error {
	if err := x.roles.Require(caller, access.RoleAdmin); err != nil {
		return err
	}
	if err := x.engine.SetFeeConfig(cfg); err != nil {
		return err
	}
	x.log.Info("fee config updated",
		zap.String("recipient", cfg.Recipient.Hex()),
		zap.Int64("rate_bps", cfg.RateBps),
		zap.String("fee_token", cfg.FeeToken.Hex()),
	)
	return nil
}

// LimitBuy submits a bid: buy base, paying at most price quote units per base
// unit.
func (x *Exchange) LimitBuy(caller, base, quote common.Address, price, qty int64) (*engine.FillReport, error) {
	return x.submitLimit(caller, base, quote, book.Bid, price, qty)
}

// LimitSell submits an ask: sell base for at least price quote units per base
// unit.
func (x *Exchange) LimitSell(caller, base, quote common.Address, price, qty int64) (*engine.FillReport, error) {
	return x.submitLimit(caller, base, quote, book.Ask, price, qty)
}

func (x *Exchange) submitLimit(caller, base, quote common.Address, side book.Side, price, qty int64) (*engine.FillReport, error) {
	h, err := x.resolve(base, quote)
	if err != nil {
		return nil, err
	}
	o := &book.Order{
		ID:    x.nextOrderID.Add(1),
		Owner: caller,
		Side:  side,
		Price: price,
		Qty:   qty,
	}
	return x.engine.Submit(h, o)
}

// Cancel removes the caller's resting order. Admins may cancel any order.
func (x *Exchange) Cancel(caller, base, quote common.Address, orderID uint64) error {
	h, err := x.resolve(base, quote)
	if err != nil {
		return err
	}
	admin := x.roles.HasRole(caller, access.RoleAdmin)
	return x.engine.Cancel(h, orderID, caller, admin)
}

// MktPrice returns the pair's last-traded price, falling back to the mid
// price before the first trade. Returns 0 when the book is empty.
func (x *Exchange) MktPrice(base, quote common.Address) (int64, error) {
	h, err := x.resolve(base, quote)
	if err != nil {
		return 0, err
	}
	h.Lock()
	defer h.Unlock()
	if p := h.Book.LastPrice(); p != 0 {
		return p, nil
	}
	return h.Book.MidPrice(), nil
}

// Depth returns aggregated bid and ask levels, best-first.
func (x *Exchange) Depth(base, quote common.Address) (bids, asks []book.LevelSnapshot, err error) {
	h, err := x.resolve(base, quote)
	if err != nil {
		return nil, nil, err
	}
	h.Lock()
	defer h.Unlock()
	return h.Book.Depth(book.Bid), h.Book.Depth(book.Ask), nil
}

// Order returns a snapshot of a resting order.
func (x *Exchange) Order(base, quote common.Address, orderID uint64) (book.Order, error) {
	h, err := x.resolve(base, quote)
	if err != nil {
		return book.Order{}, err
	}
	h.Lock()
	defer h.Unlock()
	o, ok := h.Book.Get(orderID)
	if !ok {
		return book.Order{}, fmt.Errorf("order %d: %w", orderID, book.ErrOrderNotFound)
	}
	return *o, nil
}

// Pairs lists all registered pairs in declared orientation.
func (x *Exchange) Pairs() []registry.Pair {
	handles := x.books.List()
	out := make([]registry.Pair, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.Pair)
	}
	return out
}

// resolve finds the book for base/quote and checks the caller used the
// declared orientation: trading against the flipped orientation would invert
// the price axis.
func (x *Exchange) resolve(base, quote common.Address) (*registry.Handle, error) {
	h, err := x.books.Get(base, quote)
	if err != nil {
		return nil, err
	}
	if h.Pair.Base != base {
		return nil, fmt.Errorf("pair is registered as %s, not %s/%s: %w",
			h.Pair.Symbol(), base.Hex(), quote.Hex(), registry.ErrPairNotFound)
	}
	return h, nil
}

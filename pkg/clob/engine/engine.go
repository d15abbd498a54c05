package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/standardex/clob/pkg/clob/access"
	"github.com/standardex/clob/pkg/clob/book"
	"github.com/standardex/clob/pkg/clob/events"
	"github.com/standardex/clob/pkg/clob/ledger"
	"github.com/standardex/clob/pkg/clob/registry"
)

// Fill is one execution against a resting maker.
type Fill struct {
	TradeID string         `json:"trade_id"`
	Price   int64          `json:"price"`
	Qty     int64          `json:"qty"`
	MakerID uint64         `json:"maker_id"`
	Maker   common.Address `json:"maker"`
}

// FillReport summarizes one submit call.
type FillReport struct {
	OrderID   uint64 `json:"order_id"`
	Filled    int64  `json:"filled"`
	Remaining int64  `json:"remaining"`
	AvgPrice  int64  `json:"avg_price"` // filled-notional / filled, rounded down; 0 if nothing filled
	Fee       int64  `json:"fee"`
	Fills     []Fill `json:"fills"`
	Rested    bool   `json:"rested"`
}

// plannedFill is one step of a read-only matching pass, applied to the book
// only after the ledger has settled the whole trade.
type plannedFill struct {
	maker *book.Order
	price int64
	qty   int64
}

// MatchingEngine walks price levels to fill incoming orders under price-time
// priority, computes taker fees, and settles token movements through the
// ledger. It is stateless per call apart from the fee config; all book state
// lives in the registry handles it borrows.
//
// Submit runs in three phases: plan (read-only walk of the opposite side),
// settle (one atomic ledger batch covering fills, escrow and fee), apply
// (book mutations and events). A settle failure therefore leaves the book
// exactly as it was.
type MatchingEngine struct {
	mu  sync.RWMutex
	fee FeeConfig

	ledger *ledger.Ledger
	bus    *events.Bus
	escrow common.Address
	log    *zap.Logger
}

func New(l *ledger.Ledger, bus *events.Bus, escrow common.Address, log *zap.Logger) *MatchingEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &MatchingEngine{
		ledger: l,
		bus:    bus,
		escrow: escrow,
		log:    log,
	}
}

// Escrow returns the account holding funds backing resting orders.
func (e *MatchingEngine) Escrow() common.Address { return e.escrow }

// SetFeeConfig replaces the fee configuration. Role-gating happens at the
// exchange layer.
func (e *MatchingEngine) SetFeeConfig(cfg FeeConfig) error {
	if cfg.RateBps < 0 || cfg.RateBps > bpsDenom {
		return fmt.Errorf("fee rate out of range: %d bps", cfg.RateBps)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fee = cfg
	return nil
}

// FeeConfig returns the current fee configuration.
func (e *MatchingEngine) FeeConfig() FeeConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fee
}

// Submit matches the order against the book, settles the resulting token
// movements atomically, and rests any unfilled remainder. On any error the
// book and ledger are unchanged.
func (e *MatchingEngine) Submit(h *registry.Handle, o *book.Order) (*FillReport, error) {
	if o.Qty <= 0 {
		return nil, fmt.Errorf("submit order %d: %w", o.ID, book.ErrInvalidQuantity)
	}
	if o.Price <= 0 {
		return nil, fmt.Errorf("submit order %d: %w", o.ID, book.ErrInvalidPrice)
	}
	o.Remaining = o.Qty
	o.Pair = h.Pair.Symbol()

	h.Lock()
	defer h.Unlock()

	ob := h.Book
	if ob.Contains(o.ID) {
		return nil, fmt.Errorf("submit order %d: %w", o.ID, book.ErrDuplicateOrderID)
	}

	fee := e.FeeConfig()
	plan := planMatch(ob, o)

	transfers, feeTotal, err := e.buildTransfers(h.Pair, o, plan, fee)
	if err != nil {
		return nil, fmt.Errorf("submit order %d: %w", o.ID, err)
	}
	if err := e.ledger.Apply(transfers); err != nil {
		return nil, fmt.Errorf("submit order %d: %w", o.ID, err)
	}

	// Settlement succeeded; commit the match to the book.
	report := &FillReport{OrderID: o.ID, Fee: feeTotal}
	var filledNotional int64
	now := time.Now()
	opposite := o.Side.Opposite()
	for _, pf := range plan {
		pf.maker.Remaining -= pf.qty
		o.Remaining -= pf.qty
		ob.SetLastPrice(pf.price)
		if pf.maker.Remaining == 0 {
			ob.RemoveBestIfFilled(opposite)
		}

		tradeID := uuid.NewString()
		report.Fills = append(report.Fills, Fill{
			TradeID: tradeID,
			Price:   pf.price,
			Qty:     pf.qty,
			MakerID: pf.maker.ID,
			Maker:   pf.maker.Owner,
		})
		report.Filled += pf.qty
		n, _ := notional(pf.qty, pf.price) // checked in buildTransfers
		filledNotional += n

		if e.bus != nil {
			e.bus.PublishTrade(events.Trade{
				TradeID: tradeID,
				Pair:    o.Pair,
				Price:   pf.price,
				Qty:     pf.qty,
				MakerID: pf.maker.ID,
				TakerID: o.ID,
				Maker:   pf.maker.Owner,
				Taker:   o.Owner,
				Time:    now,
			})
		}
	}
	if report.Filled > 0 {
		report.AvgPrice = filledNotional / report.Filled
	}

	if o.Remaining > 0 {
		if err := ob.InsertResting(o); err != nil {
			// Unreachable: price, qty and id were validated above.
			e.log.Error("insert remainder failed", zap.Uint64("order", o.ID), zap.Error(err))
			return nil, err
		}
		report.Rested = true
		if e.bus != nil {
			e.bus.PublishOrderAccepted(events.OrderAccepted{
				Pair:    o.Pair,
				OrderID: o.ID,
				Owner:   o.Owner,
				Side:    o.Side.String(),
				Price:   o.Price,
				Qty:     o.Remaining,
				Time:    now,
			})
		}
	}
	report.Remaining = o.Remaining

	e.log.Debug("order submitted",
		zap.String("pair", o.Pair),
		zap.Uint64("order", o.ID),
		zap.String("side", o.Side.String()),
		zap.Int64("filled", report.Filled),
		zap.Int64("remaining", report.Remaining),
		zap.Int64("fee", feeTotal),
	)
	return report, nil
}

// Cancel removes a resting order and refunds its escrowed funds. admin
// permits cancelling orders owned by others; the exchange sets it after a
// role check.
func (e *MatchingEngine) Cancel(h *registry.Handle, orderID uint64, caller common.Address, admin bool) error {
	h.Lock()
	defer h.Unlock()

	o, ok := h.Book.Get(orderID)
	if !ok {
		return fmt.Errorf("cancel order %d: %w", orderID, book.ErrOrderNotFound)
	}
	if o.Owner != caller && !admin {
		return fmt.Errorf("cancel order %d by %s: %w", orderID, caller.Hex(), access.ErrUnauthorized)
	}

	refund, err := e.escrowRefund(h.Pair, o)
	if err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	if err := e.ledger.Apply([]ledger.Transfer{refund}); err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}

	if _, err := h.Book.Cancel(orderID); err != nil {
		return err
	}
	if e.bus != nil {
		e.bus.PublishOrderCancelled(events.OrderCancelled{
			Pair:    o.Pair,
			OrderID: orderID,
			Time:    time.Now(),
		})
	}
	e.log.Debug("order cancelled", zap.String("pair", o.Pair), zap.Uint64("order", orderID))
	return nil
}

// planMatch walks the opposite side best-first and returns the fills the
// order would take, without touching the book. The limit price is inclusive:
// an order priced exactly at the best opposite price crosses.
func planMatch(ob *book.OrderBook, o *book.Order) []plannedFill {
	var plan []plannedFill
	remaining := o.Remaining
	for _, level := range ob.Levels(o.Side.Opposite()) {
		if remaining == 0 {
			break
		}
		if o.Side == book.Bid && level.Price > o.Price {
			break
		}
		if o.Side == book.Ask && level.Price < o.Price {
			break
		}
		for _, maker := range level.Orders() {
			if remaining == 0 {
				break
			}
			qty := min(remaining, maker.Remaining)
			plan = append(plan, plannedFill{maker: maker, price: level.Price, qty: qty})
			remaining -= qty
		}
	}
	return plan
}

// buildTransfers translates a match plan into ledger movements under the
// escrow model: resting orders are backed by funds held in the escrow
// account, fills pay out counterparties, the unfilled remainder of the taker
// moves into escrow, and the taker pays the fee in the fee token.
func (e *MatchingEngine) buildTransfers(pair registry.Pair, o *book.Order, plan []plannedFill, fee FeeConfig) ([]ledger.Transfer, int64, error) {
	var transfers []ledger.Transfer
	var feeTotal int64

	for _, pf := range plan {
		quoteAmt, err := notional(pf.qty, pf.price)
		if err != nil {
			return nil, 0, err
		}
		if o.Side == book.Bid {
			// Taker buys base: quote to the maker, escrowed base out to the taker.
			transfers = append(transfers,
				ledger.Transfer{From: o.Owner, To: pf.maker.Owner, Token: pair.Quote, Amount: quoteAmt},
				ledger.Transfer{From: e.escrow, To: o.Owner, Token: pair.Base, Amount: pf.qty},
			)
		} else {
			// Taker sells base: escrowed quote out to the taker, base to the maker.
			transfers = append(transfers,
				ledger.Transfer{From: e.escrow, To: o.Owner, Token: pair.Quote, Amount: quoteAmt},
				ledger.Transfer{From: o.Owner, To: pf.maker.Owner, Token: pair.Base, Amount: pf.qty},
			)
		}

		if fee.enabled() {
			f, err := takerFee(pf.qty, pf.price, fee.RateBps)
			if err != nil {
				return nil, 0, err
			}
			feeTotal += f
		}
	}

	// Escrow the unfilled remainder that will rest in the book.
	rest := o.Remaining
	for _, pf := range plan {
		rest -= pf.qty
	}
	if rest > 0 {
		if o.Side == book.Bid {
			quoteAmt, err := notional(rest, o.Price)
			if err != nil {
				return nil, 0, err
			}
			transfers = append(transfers, ledger.Transfer{From: o.Owner, To: e.escrow, Token: pair.Quote, Amount: quoteAmt})
		} else {
			transfers = append(transfers, ledger.Transfer{From: o.Owner, To: e.escrow, Token: pair.Base, Amount: rest})
		}
	}

	if feeTotal > 0 {
		transfers = append(transfers, ledger.Transfer{From: o.Owner, To: fee.Recipient, Token: fee.FeeToken, Amount: feeTotal})
	}
	return transfers, feeTotal, nil
}

// escrowRefund returns the transfer releasing a cancelled order's backing
// funds back to its owner.
func (e *MatchingEngine) escrowRefund(pair registry.Pair, o *book.Order) (ledger.Transfer, error) {
	if o.Side == book.Bid {
		quoteAmt, err := notional(o.Remaining, o.Price)
		if err != nil {
			return ledger.Transfer{}, err
		}
		return ledger.Transfer{From: e.escrow, To: o.Owner, Token: pair.Quote, Amount: quoteAmt}, nil
	}
	return ledger.Transfer{From: e.escrow, To: o.Owner, Token: pair.Base, Amount: o.Remaining}, nil
}

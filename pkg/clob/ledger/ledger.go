package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// Transfer moves Amount of Token from one account to another.
type Transfer struct {
	From   common.Address
	To     common.Address
	Token  common.Address
	Amount int64
}

// Ledger tracks token balances per account. A batch of transfers settles
// atomically: either every leg applies or none does, which is what lets a
// failed trade settlement abort a submit with the book untouched.
//
// Balances are cached in memory and written through to the optional pebble
// store for durability across restarts. Writes go to the store first; the
// cache is only updated once the write succeeded, so cache and store never
// diverge.
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]int64 // owner -> token -> amount
	store    balanceStore
	log      *zap.Logger
}

// balanceStore is the durable backing of the ledger. *Store is the pebble
// implementation.
type balanceStore interface {
	SaveBalance(owner, token common.Address, amount int64) error
	SaveBalances(entries []BalanceEntry) error
	LoadAll(fn func(owner, token common.Address, amount int64)) (int, error)
	Close() error
}

// New creates a ledger. store may be nil for a purely in-memory ledger
// (tests); otherwise existing balances are loaded from it.
func New(store *Store, log *zap.Logger) (*Ledger, error) {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{
		balances: make(map[common.Address]map[common.Address]int64),
		log:      log,
	}
	if store != nil {
		l.store = store
		n, err := store.LoadAll(func(owner, token common.Address, amount int64) {
			l.set(owner, token, amount)
		})
		if err != nil {
			return nil, fmt.Errorf("load balances: %w", err)
		}
		log.Info("ledger loaded", zap.Int("balances", n))
	}
	return l, nil
}

// Close closes the underlying store, if any.
func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

// Balance returns the owner's balance of token.
func (l *Ledger) Balance(owner, token common.Address) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[owner][token]
}

// Balances returns all token balances of one owner.
func (l *Ledger) Balances(owner common.Address) map[common.Address]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[common.Address]int64, len(l.balances[owner]))
	for token, amount := range l.balances[owner] {
		out[token] = amount
	}
	return out
}

// Deposit credits an account. Used by the deposit bridge and by tests.
func (l *Ledger) Deposit(owner, token common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.balances[owner][token] + amount
	if err := l.persist(owner, token, next); err != nil {
		return err
	}
	l.set(owner, token, next)
	return nil
}

// Apply settles a batch of transfers atomically. Every debit is validated
// against the running balances before anything is committed; an insufficient
// balance anywhere fails the whole batch.
func (l *Ledger) Apply(transfers []Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Stage the net effect of the batch on the touched balances only.
	type key struct {
		owner common.Address
		token common.Address
	}
	staged := make(map[key]int64)
	get := func(k key) int64 {
		if v, ok := staged[k]; ok {
			return v
		}
		return l.balances[k.owner][k.token]
	}

	for _, t := range transfers {
		if t.Amount < 0 {
			return fmt.Errorf("transfer amount must not be negative: %d", t.Amount)
		}
		if t.Amount == 0 {
			continue
		}
		from := key{t.From, t.Token}
		have := get(from)
		if have < t.Amount {
			return fmt.Errorf("transfer %d %s from %s: have %d: %w",
				t.Amount, t.Token.Hex(), t.From.Hex(), have, ErrInsufficientBalance)
		}
		staged[from] = have - t.Amount
		to := key{t.To, t.Token}
		staged[to] = get(to) + t.Amount
	}

	// Commit: write the whole batch durably, then update the cache.
	if l.store != nil {
		entries := make([]BalanceEntry, 0, len(staged))
		for k, v := range staged {
			entries = append(entries, BalanceEntry{Owner: k.owner, Token: k.token, Amount: v})
		}
		if err := l.store.SaveBalances(entries); err != nil {
			return fmt.Errorf("persist transfers: %w", err)
		}
	}
	for k, v := range staged {
		l.set(k.owner, k.token, v)
	}
	return nil
}

func (l *Ledger) set(owner, token common.Address, amount int64) {
	tokens, ok := l.balances[owner]
	if !ok {
		tokens = make(map[common.Address]int64)
		l.balances[owner] = tokens
	}
	tokens[token] = amount
}

func (l *Ledger) persist(owner, token common.Address, amount int64) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.SaveBalance(owner, token, amount); err != nil {
		return fmt.Errorf("persist balance: %w", err)
	}
	return nil
}

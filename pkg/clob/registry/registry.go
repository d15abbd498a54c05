package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/standardex/clob/pkg/clob/book"
)

var (
	ErrPairNotFound          = errors.New("pair not found")
	ErrPairAlreadyRegistered = errors.New("pair already registered")
)

// Handle pairs an order book with the mutex that serializes all mutating
// operations on it. Submit and cancel against the same book must hold the
// lock for their full duration; books of different pairs are independent.
type Handle struct {
	Pair Pair
	Book *book.OrderBook

	mu sync.Mutex
}

func (h *Handle) Lock()   { h.mu.Lock() }
func (h *Handle) Unlock() { h.mu.Unlock() }

// BookRegistry maps canonical pair keys to their order books. At most one
// book exists per unordered pair.
type BookRegistry struct {
	mu    sync.RWMutex
	books map[string]*Handle
}

func NewBookRegistry() *BookRegistry {
	return &BookRegistry{
		books: make(map[string]*Handle),
	}
}

// Register creates an empty book for the pair. A second registration for the
// same unordered pair fails; it never creates a duplicate book.
func (r *BookRegistry) Register(a, b common.Address) (*Handle, error) {
	pair, err := NewPair(a, b)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := pair.Key()
	if _, exists := r.books[key]; exists {
		return nil, fmt.Errorf("register %s: %w", pair.Symbol(), ErrPairAlreadyRegistered)
	}
	h := &Handle{Pair: pair, Book: book.NewOrderBook(pair.Symbol())}
	r.books[key] = h
	return h, nil
}

// Get retrieves the book for a pair without creating it.
func (r *BookRegistry) Get(a, b common.Address) (*Handle, error) {
	pair, err := NewPair(a, b)
	if err != nil {
		return nil, err
	}
	return r.GetByKey(pair.Key())
}

// GetByKey retrieves a book by its canonical pair key.
func (r *BookRegistry) GetByKey(key string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.books[key]
	if !exists {
		return nil, fmt.Errorf("get %s: %w", key, ErrPairNotFound)
	}
	return h, nil
}

// GetOrCreate returns the existing book for the pair, creating and
// registering an empty one on first use. The boolean reports creation.
func (r *BookRegistry) GetOrCreate(a, b common.Address) (*Handle, bool, error) {
	pair, err := NewPair(a, b)
	if err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := pair.Key()
	if h, exists := r.books[key]; exists {
		return h, false, nil
	}
	h := &Handle{Pair: pair, Book: book.NewOrderBook(pair.Symbol())}
	r.books[key] = h
	return h, true, nil
}

// List returns handles for all registered pairs.
func (r *BookRegistry) List() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Handle, 0, len(r.books))
	for _, h := range r.books {
		out = append(out, h)
	}
	return out
}

// Count returns the number of registered pairs.
func (r *BookRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.books)
}

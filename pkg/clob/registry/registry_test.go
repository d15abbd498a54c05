package registry

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tokenC = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func TestPair_KeyCanonical(t *testing.T) {
	p1, err := NewPair(tokenA, tokenB)
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	p2, err := NewPair(tokenB, tokenA)
	if err != nil {
		t.Fatalf("NewPair flipped: %v", err)
	}

	if p1.Key() != p2.Key() {
		t.Fatalf("keys differ for the same unordered pair: %q vs %q", p1.Key(), p2.Key())
	}
	// Orientation is preserved even though the key is canonical.
	if p1.Base != tokenA || p1.Quote != tokenB {
		t.Fatalf("p1 orientation = %s/%s, want A/B", p1.Base.Hex(), p1.Quote.Hex())
	}
	if p2.Base != tokenB || p2.Quote != tokenA {
		t.Fatalf("p2 orientation = %s/%s, want B/A", p2.Base.Hex(), p2.Quote.Hex())
	}
	if p1.Symbol() == p2.Symbol() {
		t.Fatal("symbols should reflect declared orientation")
	}
}

func TestPair_RejectsIdenticalTokens(t *testing.T) {
	if _, err := NewPair(tokenA, tokenA); err == nil {
		t.Fatal("pair of a token against itself must be rejected")
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewBookRegistry()

	h, err := r.Register(tokenA, tokenB)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if h.Book == nil {
		t.Fatal("registered handle has no book")
	}
	if r.Count() != 1 {
		t.Fatalf("count = %d, want 1", r.Count())
	}

	got, err := r.Get(tokenA, tokenB)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != h {
		t.Fatal("Get returned a different handle")
	}

	// Flipped argument order resolves to the same book.
	flipped, err := r.Get(tokenB, tokenA)
	if err != nil {
		t.Fatalf("Get flipped: %v", err)
	}
	if flipped != h {
		t.Fatal("flipped lookup returned a different handle")
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewBookRegistry()

	if _, err := r.Register(tokenA, tokenB); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Register(tokenA, tokenB); !errors.Is(err, ErrPairAlreadyRegistered) {
		t.Fatalf("err = %v, want ErrPairAlreadyRegistered", err)
	}
	// The flipped orientation is the same unordered pair.
	if _, err := r.Register(tokenB, tokenA); !errors.Is(err, ErrPairAlreadyRegistered) {
		t.Fatalf("flipped err = %v, want ErrPairAlreadyRegistered", err)
	}
	if r.Count() != 1 {
		t.Fatalf("count = %d, want 1 after duplicate attempts", r.Count())
	}
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewBookRegistry()
	if _, err := r.Get(tokenA, tokenC); !errors.Is(err, ErrPairNotFound) {
		t.Fatalf("err = %v, want ErrPairNotFound", err)
	}
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r := NewBookRegistry()

	h1, created, err := r.GetOrCreate(tokenA, tokenB)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if !created {
		t.Fatal("first call should create")
	}

	h2, created, err := r.GetOrCreate(tokenB, tokenA)
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if created {
		t.Fatal("second call must not create a duplicate book")
	}
	if h1 != h2 {
		t.Fatal("both calls should yield the same handle")
	}
}

func TestRegistry_List(t *testing.T) {
	r := NewBookRegistry()
	if _, err := r.Register(tokenA, tokenB); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register(tokenB, tokenC); err != nil {
		t.Fatal(err)
	}

	if got := len(r.List()); got != 2 {
		t.Fatalf("List returned %d handles, want 2", got)
	}
}

package registry

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pair identifies a trading pair. Base and Quote keep the orientation
// declared at registration (prices are quote-per-base in that orientation);
// Key canonicalizes the unordered pair so (A,B) and (B,A) resolve to the
// same book.
type Pair struct {
	Base  common.Address
	Quote common.Address
}

// NewPair validates a base/quote combination.
func NewPair(base, quote common.Address) (Pair, error) {
	if base == quote {
		return Pair{}, fmt.Errorf("pair %s/%s: base and quote must differ", base.Hex(), quote.Hex())
	}
	return Pair{Base: base, Quote: quote}, nil
}

// Key returns the canonical string key: the two addresses in byte order,
// independent of orientation.
func (p Pair) Key() string {
	if bytes.Compare(p.Base.Bytes(), p.Quote.Bytes()) < 0 {
		return p.Base.Hex() + "/" + p.Quote.Hex()
	}
	return p.Quote.Hex() + "/" + p.Base.Hex()
}

// Symbol returns the pair in its declared orientation, base first.
func (p Pair) Symbol() string {
	return p.Base.Hex() + "/" + p.Quote.Hex()
}

func (p Pair) String() string { return p.Symbol() }

package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FeeConfig routes taker fees: rate in basis points, charged in FeeToken,
// credited to Recipient. Set once at initialization and mutable only through
// an admin-gated call; the zero value disables fees.
type FeeConfig struct {
	Recipient common.Address
	RateBps   int64
	FeeToken  common.Address
}

func (f FeeConfig) enabled() bool {
	return f.RateBps > 0 && f.Recipient != (common.Address{})
}

const bpsDenom = 10_000

// notional returns qty*price in smallest quote units, failing on int64
// overflow. Intermediates go through big.Int since qty and price are both
// full-range int64.
func notional(qty, price int64) (int64, error) {
	n := new(big.Int).Mul(big.NewInt(qty), big.NewInt(price))
	if !n.IsInt64() {
		return 0, fmt.Errorf("notional overflows int64: qty=%d price=%d", qty, price)
	}
	return n.Int64(), nil
}

// takerFee returns floor(qty*price*rateBps/10000), the fee charged to the
// taker for one fill.
func takerFee(qty, price, rateBps int64) (int64, error) {
	if rateBps == 0 {
		return 0, nil
	}
	f := new(big.Int).Mul(big.NewInt(qty), big.NewInt(price))
	f.Mul(f, big.NewInt(rateBps))
	f.Quo(f, big.NewInt(bpsDenom))
	if !f.IsInt64() {
		return 0, fmt.Errorf("fee overflows int64: qty=%d price=%d rate=%dbps", qty, price, rateBps)
	}
	return f.Int64(), nil
}

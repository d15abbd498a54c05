package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Store is the pebble persistence layer for balances. All access goes through
// the Ledger's mutex.
type Store struct {
	db *pebble.DB
}

// BalanceEntry is one persisted (owner, token) balance.
type BalanceEntry struct {
	Owner  common.Address
	Token  common.Address
	Amount int64
}

// NewStore opens a pebble database at the given path.
func NewStore(path string) (*Store, error) {
	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MemTableSize: 32 << 20,
		MaxOpenFiles: 1000,
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// keys: bal:<20-byte-owner><20-byte-token> -> 8-byte big-endian amount
var balPrefix = []byte("bal:")

func balKey(owner, token common.Address) []byte {
	k := make([]byte, 0, len(balPrefix)+2*common.AddressLength)
	k = append(k, balPrefix...)
	k = append(k, owner.Bytes()...)
	k = append(k, token.Bytes()...)
	return k
}

// SaveBalance writes one balance with a synced write.
func (s *Store) SaveBalance(owner, token common.Address, amount int64) error {
	var val [8]byte
	binary.BigEndian.PutUint64(val[:], uint64(amount))
	return s.db.Set(balKey(owner, token), val[:], pebble.Sync)
}

// SaveBalances writes a set of balances in a single atomic batch.
func (s *Store) SaveBalances(entries []BalanceEntry) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	for _, e := range entries {
		var val [8]byte
		binary.BigEndian.PutUint64(val[:], uint64(e.Amount))
		if err := batch.Set(balKey(e.Owner, e.Token), val[:], nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// LoadAll iterates every persisted balance and returns the count.
func (s *Store) LoadAll(fn func(owner, token common.Address, amount int64)) (int, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: balPrefix,
		UpperBound: []byte("bal;"), // ';' is ':'+1
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(balPrefix)+2*common.AddressLength || len(iter.Value()) != 8 {
			continue
		}
		owner := common.BytesToAddress(key[len(balPrefix) : len(balPrefix)+common.AddressLength])
		token := common.BytesToAddress(key[len(balPrefix)+common.AddressLength:])
		amount := int64(binary.BigEndian.Uint64(iter.Value()))
		fn(owner, token, amount)
		n++
	}
	return n, iter.Error()
}

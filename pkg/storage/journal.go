package storage

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/standardex/clob/pkg/clob/events"
)

// keys: t:<8-byte-seq> -> JSON trade
var tradePrefix = []byte("t:")

// TradeJournal is an append-only, pebble-backed log of fills, replayable by
// external indexers. It subscribes to the event bus as a listener; appends
// happen off the matching path.
type TradeJournal struct {
	events.NopListener

	mu      sync.Mutex
	db      *pebble.DB
	nextSeq uint64
	log     *zap.Logger
}

func NewTradeJournal(path string, log *zap.Logger) (*TradeJournal, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open trade journal at %s: %w", path, err)
	}

	j := &TradeJournal{db: db, log: log}
	if err := j.resume(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *TradeJournal) Close() error { return j.db.Close() }

// Append writes one trade with the next sequence number.
func (j *TradeJournal) Append(t events.Trade) error {
	val, err := encodeJSON(t)
	if err != nil {
		return fmt.Errorf("encode trade %s: %w", t.TradeID, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.db.Set(seqKey(tradePrefix, j.nextSeq), val, pebble.Sync); err != nil {
		return fmt.Errorf("append trade %s: %w", t.TradeID, err)
	}
	j.nextSeq++
	return nil
}

// Len returns the number of journaled trades.
func (j *TradeJournal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextSeq
}

// Replay iterates all journaled trades in sequence order.
func (j *TradeJournal) Replay(fn func(seq uint64, t events.Trade) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: tradePrefix,
		UpperBound: []byte("t;"), // ';' is ':'+1
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(tradePrefix)+8 {
			continue
		}
		seq := binary.BigEndian.Uint64(key[len(tradePrefix):])
		var t events.Trade
		if err := decodeJSON(iter.Value(), &t); err != nil {
			return fmt.Errorf("decode trade at seq %d: %w", seq, err)
		}
		if err := fn(seq, t); err != nil {
			return err
		}
	}
	return iter.Error()
}

// OnTrade implements events.Listener.
func (j *TradeJournal) OnTrade(t events.Trade) {
	if err := j.Append(t); err != nil {
		j.log.Error("journal append failed", zap.String("trade", t.TradeID), zap.Error(err))
	}
}

// resume positions nextSeq after the last journaled trade.
func (j *TradeJournal) resume() error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: tradePrefix,
		UpperBound: []byte("t;"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	if iter.Last() && len(iter.Key()) == len(tradePrefix)+8 {
		j.nextSeq = binary.BigEndian.Uint64(iter.Key()[len(tradePrefix):]) + 1
	}
	return iter.Error()
}

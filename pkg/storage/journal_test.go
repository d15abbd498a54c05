package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/standardex/clob/pkg/clob/events"
)

func sampleTrade(id string, price, qty int64) events.Trade {
	return events.Trade{
		TradeID: id,
		Pair:    "AAA/BBB",
		Price:   price,
		Qty:     qty,
		MakerID: 1,
		TakerID: 2,
		Maker:   common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		Taker:   common.HexToAddress("0x00000000000000000000000000000000000000b2"),
		Time:    time.Unix(1700000000, 0).UTC(),
	}
}

func TestJournal_AppendAndReplay(t *testing.T) {
	j, err := NewTradeJournal(filepath.Join(t.TempDir(), "trades"), nil)
	if err != nil {
		t.Fatalf("NewTradeJournal: %v", err)
	}
	defer j.Close()

	trades := []events.Trade{
		sampleTrade("t-1", 100, 5),
		sampleTrade("t-2", 101, 2),
		sampleTrade("t-3", 99, 7),
	}
	for _, tr := range trades {
		if err := j.Append(tr); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if j.Len() != 3 {
		t.Fatalf("len = %d, want 3", j.Len())
	}

	var got []events.Trade
	err = j.Replay(func(seq uint64, tr events.Trade) error {
		if seq != uint64(len(got)) {
			t.Fatalf("seq = %d, want %d", seq, len(got))
		}
		got = append(got, tr)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("replayed %d trades, want 3", len(got))
	}
	for i, tr := range got {
		if tr.TradeID != trades[i].TradeID || tr.Price != trades[i].Price || tr.Qty != trades[i].Qty {
			t.Fatalf("trade %d = %+v, want %+v", i, tr, trades[i])
		}
	}
}

func TestJournal_ResumeAfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades")

	j, err := NewTradeJournal(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Append(sampleTrade("t-1", 100, 5)); err != nil {
		t.Fatal(err)
	}
	if err := j.Append(sampleTrade("t-2", 101, 1)); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	j2, err := NewTradeJournal(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()

	if j2.Len() != 2 {
		t.Fatalf("len after reopen = %d, want 2", j2.Len())
	}
	// The next append continues the sequence, it does not overwrite.
	if err := j2.Append(sampleTrade("t-3", 102, 4)); err != nil {
		t.Fatal(err)
	}

	var ids []string
	if err := j2.Replay(func(seq uint64, tr events.Trade) error {
		ids = append(ids, tr.TradeID)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	want := []string{"t-1", "t-2", "t-3"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestJournal_OnTradeListener(t *testing.T) {
	j, err := NewTradeJournal(filepath.Join(t.TempDir(), "trades"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	var l events.Listener = j
	l.OnTrade(sampleTrade("t-1", 100, 5))

	if j.Len() != 1 {
		t.Fatalf("len = %d, want 1 after OnTrade", j.Len())
	}
}

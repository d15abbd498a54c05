package ledger

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	usd   = common.HexToAddress("0x0000000000000000000000000000000000000100")
	gold  = common.HexToAddress("0x0000000000000000000000000000000000000200")
	ann   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	ben   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	clara = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestDeposit(t *testing.T) {
	l := newLedger(t)

	if err := l.Deposit(ann, usd, 100); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := l.Deposit(ann, usd, 50); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if got := l.Balance(ann, usd); got != 150 {
		t.Fatalf("balance = %d, want 150", got)
	}
	if got := l.Balance(ann, gold); got != 0 {
		t.Fatalf("untouched token = %d, want 0", got)
	}

	if err := l.Deposit(ann, usd, 0); err == nil {
		t.Fatal("zero deposit must be rejected")
	}
	if err := l.Deposit(ann, usd, -5); err == nil {
		t.Fatal("negative deposit must be rejected")
	}
}

func TestApply_SingleTransfer(t *testing.T) {
	l := newLedger(t)
	if err := l.Deposit(ann, usd, 100); err != nil {
		t.Fatal(err)
	}

	err := l.Apply([]Transfer{{From: ann, To: ben, Token: usd, Amount: 40}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := l.Balance(ann, usd); got != 60 {
		t.Fatalf("ann = %d, want 60", got)
	}
	if got := l.Balance(ben, usd); got != 40 {
		t.Fatalf("ben = %d, want 40", got)
	}
}

func TestApply_InsufficientBalance(t *testing.T) {
	l := newLedger(t)
	if err := l.Deposit(ann, usd, 10); err != nil {
		t.Fatal(err)
	}

	err := l.Apply([]Transfer{{From: ann, To: ben, Token: usd, Amount: 11}})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if got := l.Balance(ann, usd); got != 10 {
		t.Fatalf("failed apply changed balance: %d, want 10", got)
	}
}

// A batch applies entirely or not at all; a bad leg in the middle must not
// leave the earlier legs committed.
func TestApply_BatchAtomicity(t *testing.T) {
	l := newLedger(t)
	if err := l.Deposit(ann, usd, 100); err != nil {
		t.Fatal(err)
	}

	err := l.Apply([]Transfer{
		{From: ann, To: ben, Token: usd, Amount: 80},
		{From: clara, To: ben, Token: gold, Amount: 1}, // clara has nothing
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if got := l.Balance(ann, usd); got != 100 {
		t.Fatalf("ann = %d, want 100 after rolled back batch", got)
	}
	if got := l.Balance(ben, usd); got != 0 {
		t.Fatalf("ben = %d, want 0 after rolled back batch", got)
	}
}

// Within one batch, credits from earlier legs fund later debits. This is how
// a trade's incoming quote can immediately pay a fee.
func TestApply_ChainedLegsWithinBatch(t *testing.T) {
	l := newLedger(t)
	if err := l.Deposit(ann, usd, 50); err != nil {
		t.Fatal(err)
	}

	err := l.Apply([]Transfer{
		{From: ann, To: ben, Token: usd, Amount: 50},
		{From: ben, To: clara, Token: usd, Amount: 30},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := l.Balance(ben, usd); got != 20 {
		t.Fatalf("ben = %d, want 20", got)
	}
	if got := l.Balance(clara, usd); got != 30 {
		t.Fatalf("clara = %d, want 30", got)
	}
}

func TestApply_RejectsNegativeAmount(t *testing.T) {
	l := newLedger(t)
	if err := l.Apply([]Transfer{{From: ann, To: ben, Token: usd, Amount: -1}}); err == nil {
		t.Fatal("negative transfer must be rejected")
	}
}

func TestApply_ZeroAmountIsNoop(t *testing.T) {
	l := newLedger(t)
	if err := l.Apply([]Transfer{{From: ann, To: ben, Token: usd, Amount: 0}}); err != nil {
		t.Fatalf("zero transfer should be skipped, got %v", err)
	}
}

func TestBalances_Copy(t *testing.T) {
	l := newLedger(t)
	if err := l.Deposit(ann, usd, 7); err != nil {
		t.Fatal(err)
	}
	if err := l.Deposit(ann, gold, 3); err != nil {
		t.Fatal(err)
	}

	all := l.Balances(ann)
	if len(all) != 2 || all[usd] != 7 || all[gold] != 3 {
		t.Fatalf("balances = %v, want usd 7 gold 3", all)
	}
	all[usd] = 9999
	if got := l.Balance(ann, usd); got != 7 {
		t.Fatal("Balances must return a copy, not the internal map")
	}
}

// failingStore rejects every write, simulating a dead disk.
type failingStore struct{}

func (failingStore) SaveBalance(common.Address, common.Address, int64) error {
	return errors.New("disk full")
}
func (failingStore) SaveBalances([]BalanceEntry) error { return errors.New("disk full") }
func (failingStore) LoadAll(func(owner, token common.Address, amount int64)) (int, error) {
	return 0, nil
}
func (failingStore) Close() error { return nil }

// A failed write must leave the cache untouched, for both deposits and
// transfer batches; the cache never runs ahead of the store.
func TestWriteFailureLeavesCacheUnchanged(t *testing.T) {
	l := newLedger(t)
	if err := l.Deposit(ann, usd, 100); err != nil {
		t.Fatal(err)
	}
	l.store = failingStore{}

	if err := l.Deposit(ann, usd, 50); err == nil {
		t.Fatal("deposit with failing store must error")
	}
	if got := l.Balance(ann, usd); got != 100 {
		t.Fatalf("ann = %d after failed deposit, want 100", got)
	}

	err := l.Apply([]Transfer{{From: ann, To: ben, Token: usd, Amount: 40}})
	if err == nil {
		t.Fatal("apply with failing store must error")
	}
	if got := l.Balance(ann, usd); got != 100 {
		t.Fatalf("ann = %d after failed apply, want 100", got)
	}
	if got := l.Balance(ben, usd); got != 0 {
		t.Fatalf("ben = %d after failed apply, want 0", got)
	}
}

func TestLedger_PersistAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "balances")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	l, err := New(store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Deposit(ann, usd, 500); err != nil {
		t.Fatal(err)
	}
	if err := l.Apply([]Transfer{{From: ann, To: ben, Token: usd, Amount: 200}}); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	l2, err := New(store2, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	defer l2.Close()

	if got := l2.Balance(ann, usd); got != 300 {
		t.Fatalf("ann after reload = %d, want 300", got)
	}
	if got := l2.Balance(ben, usd); got != 200 {
		t.Fatalf("ben after reload = %d, want 200", got)
	}
}

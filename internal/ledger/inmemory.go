package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/globalbank/multiledger/internal/wallet"
)

type memoryLedger struct {
	mu      sync.Mutex
	wallets *wallet.MemoryStore
	entries []Entry
	lastTS  time.Time
}

// NewInMemory creates a concurrency-safe in-memory ledger. Each operation runs
// under one lock, giving the same all-or-nothing visibility as the Postgres
// backend's transactions; unit tests use it as the reference implementation.
func NewInMemory() Ledger {
	return &memoryLedger{wallets: wallet.NewMemoryStore()}
}

// stamp issues strictly increasing timestamps so journal order always matches
// append order, even when the clock is coarser than the append rate.
func (l *memoryLedger) stamp() time.Time {
	now := time.Now().UTC()
	if !now.After(l.lastTS) {
		now = l.lastTS.Add(time.Nanosecond)
	}
	l.lastTS = now
	return now
}

func (l *memoryLedger) append(e Entry) {
	e.TxnID = uuid.NewString()
	e.Timestamp = l.stamp()
	if e.FxRate.IsZero() {
		e.FxRate = decimal.NewFromInt(1)
	}
	l.entries = append(l.entries, e)
}

func (l *memoryLedger) snapshot() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := make([]Entry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

func (l *memoryLedger) Deposit(_ context.Context, owner int64, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.wallets.Ensure(owner, currency)
	balance, err := l.wallets.Adjust(owner, currency, amount)
	if err != nil {
		return decimal.Zero, err
	}

	l.append(Entry{
		ToOwner:      &owner,
		FromCurrency: currency,
		ToCurrency:   currency,
		FromAmount:   decimal.Zero,
		ToAmount:     amount,
	})
	return balance, nil
}

func (l *memoryLedger) Withdraw(_ context.Context, owner int64, currency string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, err := l.wallets.Balance(owner, currency)
	if err != nil {
		return decimal.Zero, ErrWalletNotFound
	}
	if balance.LessThan(amount) {
		return decimal.Zero, ErrInsufficientFunds
	}

	balance, err = l.wallets.Adjust(owner, currency, amount.Neg())
	if err != nil {
		return decimal.Zero, err
	}

	l.append(Entry{
		FromOwner:    &owner,
		FromCurrency: currency,
		ToCurrency:   currency,
		FromAmount:   amount,
		ToAmount:     decimal.Zero,
	})
	return balance, nil
}

func (l *memoryLedger) Transfer(_ context.Context, fromOwner, toOwner int64, currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, err := l.wallets.Balance(fromOwner, currency)
	if err != nil {
		return ErrSenderWalletNotFound
	}
	if balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	// Receiver creation happens only after the sender passed validation, so a
	// failed transfer never leaves a spurious wallet behind.
	l.wallets.Ensure(toOwner, currency)

	if _, err := l.wallets.Adjust(fromOwner, currency, amount.Neg()); err != nil {
		return err
	}
	if _, err := l.wallets.Adjust(toOwner, currency, amount); err != nil {
		return err
	}

	l.append(Entry{
		FromOwner:    &fromOwner,
		ToOwner:      &toOwner,
		FromCurrency: currency,
		ToCurrency:   currency,
		FromAmount:   amount,
		ToAmount:     amount,
	})
	return nil
}

func (l *memoryLedger) Balances(_ context.Context, owner int64) ([]BalanceLine, error) {
	lines := OwnerBalances(l.snapshot(), owner)
	if lines == nil {
		return nil, ErrOwnerNotFound
	}
	return lines, nil
}

func (l *memoryLedger) ReconstructedBalance(_ context.Context, owner int64, currency string) (decimal.Decimal, error) {
	return CurrentBalance(l.snapshot(), owner, currency), nil
}

func (l *memoryLedger) StoredBalance(_ context.Context, owner int64, currency string) (decimal.Decimal, error) {
	balance, err := l.wallets.Balance(owner, currency)
	if err != nil {
		return decimal.Zero, ErrWalletNotFound
	}
	return balance, nil
}

func (l *memoryLedger) History(_ context.Context, owner int64) ([]Record, error) {
	return BuildHistory(l.snapshot(), owner), nil
}

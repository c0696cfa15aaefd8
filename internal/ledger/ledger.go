package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount rejects non-positive operation amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrWalletNotFound occurs when an operation targets a currency the owner
	// never touched and lazy creation does not apply (e.g. withdraw).
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrSenderWalletNotFound is the transfer-specific missing-wallet variant.
	ErrSenderWalletNotFound = errors.New("sender wallet not found")

	// ErrInsufficientFunds occurs when the wallet balance is below the
	// requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrOwnerNotFound occurs when an owner has no journal presence at all.
	ErrOwnerNotFound = errors.New("owner not found")
)

// Entry is one immutable journal row. Exactly one shape is valid per entry:
// deposit (FromOwner nil), withdrawal (ToOwner nil) or transfer (both set with
// matching currencies). Entries are never updated or deleted; their ordering
// key is (Timestamp, TxnID) so timestamp collisions break deterministically.
type Entry struct {
	TxnID        string
	FromOwner    *int64
	ToOwner      *int64
	FromCurrency string
	ToCurrency   string
	FromAmount   decimal.Decimal
	ToAmount     decimal.Decimal
	FxRate       decimal.Decimal
	Timestamp    time.Time
}

// Leg is one signed half of an entry: negative at the paying owner, positive
// at the receiving owner.
type Leg struct {
	TxnID     string
	Owner     int64
	Currency  string
	Amount    decimal.Decimal
	Timestamp time.Time
}

// Legs splits the entry into its present legs. A deposit yields only a credit
// leg, a withdrawal only a debit leg, a transfer both.
func (e Entry) Legs() []Leg {
	legs := make([]Leg, 0, 2)
	if e.FromOwner != nil {
		legs = append(legs, Leg{
			TxnID:     e.TxnID,
			Owner:     *e.FromOwner,
			Currency:  e.FromCurrency,
			Amount:    e.FromAmount.Neg(),
			Timestamp: e.Timestamp,
		})
	}
	if e.ToOwner != nil {
		legs = append(legs, Leg{
			TxnID:     e.TxnID,
			Owner:     *e.ToOwner,
			Currency:  e.ToCurrency,
			Amount:    e.ToAmount,
			Timestamp: e.Timestamp,
		})
	}
	return legs
}

// BalanceLine reports one per-currency balance for an owner.
type BalanceLine struct {
	Currency string
	Balance  decimal.Decimal
}

// Record is one reconstructed history row. NewBalance is the running balance
// for the record's (owner, currency) after the entry applied; PreviousBalance
// is the running balance before it.
type Record struct {
	TxnID           string
	Currency        string
	Debit           decimal.Decimal
	Credit          decimal.Decimal
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
	Timestamp       time.Time
}

// Ledger is the contract implemented by ledger backends. Every mutating
// operation runs as one atomic unit: precondition checks, balance mutation and
// journal append all commit together or not at all.
type Ledger interface {
	// Deposit credits the owner's wallet, creating it lazily, and returns the
	// new balance.
	Deposit(ctx context.Context, owner int64, currency string, amount decimal.Decimal) (decimal.Decimal, error)

	// Withdraw debits the owner's wallet and returns the new balance. The
	// wallet must exist and hold at least the requested amount.
	Withdraw(ctx context.Context, owner int64, currency string, amount decimal.Decimal) (decimal.Decimal, error)

	// Transfer moves amount between two owners in one currency. The receiver
	// wallet is created lazily, but only after the sender passed validation.
	Transfer(ctx context.Context, fromOwner, toOwner int64, currency string, amount decimal.Decimal) error

	// Balances derives the owner's per-currency balances from the journal.
	Balances(ctx context.Context, owner int64) ([]BalanceLine, error)

	// ReconstructedBalance derives one pair's balance purely from the journal.
	ReconstructedBalance(ctx context.Context, owner int64, currency string) (decimal.Decimal, error)

	// StoredBalance reads the wallet table directly; it must always agree with
	// ReconstructedBalance for committed state.
	StoredBalance(ctx context.Context, owner int64, currency string) (decimal.Decimal, error)

	// History lists the owner's journal legs with running balances, newest
	// first. Recomputed fresh per call, never cached.
	History(ctx context.Context, owner int64) ([]Record, error)
}

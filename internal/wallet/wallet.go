package wallet

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates no wallet row exists for the requested owner/currency pair.
var ErrNotFound = errors.New("wallet not found")

// Wallet is the current balance held by one owner in one currency. Wallets are
// created lazily on first credit and are never deleted; the (OwnerID, Currency)
// pair is unique.
type Wallet struct {
	OwnerID   int64
	Currency  string
	Balance   decimal.Decimal
	UpdatedAt time.Time
}

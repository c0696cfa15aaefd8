package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Pure reconstruction over journal entries. The in-memory backend serves its
// read queries with these functions; the Postgres backend runs the equivalent
// SQL but shares the same semantics, so tests can cross-check one against the
// other.

func ownerLegs(entries []Entry, owner int64) []Leg {
	var legs []Leg
	for _, e := range entries {
		for _, leg := range e.Legs() {
			if leg.Owner == owner {
				legs = append(legs, leg)
			}
		}
	}
	return legs
}

func sortLegs(legs []Leg) {
	sort.SliceStable(legs, func(i, j int) bool {
		if !legs[i].Timestamp.Equal(legs[j].Timestamp) {
			return legs[i].Timestamp.Before(legs[j].Timestamp)
		}
		return legs[i].TxnID < legs[j].TxnID
	})
}

// CurrentBalance sums the signed legs touching (owner, currency) across all
// entries.
func CurrentBalance(entries []Entry, owner int64, currency string) decimal.Decimal {
	total := decimal.Zero
	for _, leg := range ownerLegs(entries, owner) {
		if leg.Currency == currency {
			total = total.Add(leg.Amount)
		}
	}
	return total
}

// OwnerBalances groups the owner's legs per currency, ordered by currency.
// Returns nil when the owner never appears in the journal.
func OwnerBalances(entries []Entry, owner int64) []BalanceLine {
	totals := make(map[string]decimal.Decimal)
	for _, leg := range ownerLegs(entries, owner) {
		totals[leg.Currency] = totals[leg.Currency].Add(leg.Amount)
	}
	if len(totals) == 0 {
		return nil
	}
	lines := make([]BalanceLine, 0, len(totals))
	for currency, balance := range totals {
		lines = append(lines, BalanceLine{Currency: currency, Balance: balance})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Currency < lines[j].Currency })
	return lines
}

// BuildHistory folds the owner's legs in (timestamp, txn_id) order into
// running balances, one cumulative sum per currency, and returns the records
// newest first.
func BuildHistory(entries []Entry, owner int64) []Record {
	legs := ownerLegs(entries, owner)
	sortLegs(legs)

	running := make(map[string]decimal.Decimal)
	records := make([]Record, 0, len(legs))
	for _, leg := range legs {
		previous := running[leg.Currency]
		balance := previous.Add(leg.Amount)
		running[leg.Currency] = balance

		rec := Record{
			TxnID:           leg.TxnID,
			Currency:        leg.Currency,
			PreviousBalance: previous,
			NewBalance:      balance,
			Timestamp:       leg.Timestamp,
			Debit:           decimal.Zero,
			Credit:          decimal.Zero,
		}
		if leg.Amount.IsNegative() {
			rec.Debit = leg.Amount.Neg()
		} else {
			rec.Credit = leg.Amount
		}
		records = append(records, rec)
	}

	// Present newest first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records
}

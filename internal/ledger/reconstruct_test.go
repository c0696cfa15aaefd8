package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestEntryLegs(t *testing.T) {
	alice := int64(1)
	bob := int64(2)
	ts := time.Now().UTC()

	deposit := Entry{TxnID: "d", ToOwner: &alice, FromCurrency: "USD", ToCurrency: "USD",
		FromAmount: decimal.Zero, ToAmount: dec("100"), Timestamp: ts}
	legs := deposit.Legs()
	if len(legs) != 1 || legs[0].Owner != alice || !legs[0].Amount.Equal(dec("100")) {
		t.Fatalf("deposit legs: %+v", legs)
	}

	withdrawal := Entry{TxnID: "w", FromOwner: &alice, FromCurrency: "USD", ToCurrency: "USD",
		FromAmount: dec("30"), ToAmount: decimal.Zero, Timestamp: ts}
	legs = withdrawal.Legs()
	if len(legs) != 1 || !legs[0].Amount.Equal(dec("-30")) {
		t.Fatalf("withdrawal legs: %+v", legs)
	}

	transfer := Entry{TxnID: "t", FromOwner: &alice, ToOwner: &bob, FromCurrency: "USD", ToCurrency: "USD",
		FromAmount: dec("70"), ToAmount: dec("70"), Timestamp: ts}
	legs = transfer.Legs()
	if len(legs) != 2 {
		t.Fatalf("transfer legs: %+v", legs)
	}
	if !legs[0].Amount.Equal(dec("-70")) || legs[0].Owner != alice {
		t.Fatalf("transfer debit leg: %+v", legs[0])
	}
	if !legs[1].Amount.Equal(dec("70")) || legs[1].Owner != bob {
		t.Fatalf("transfer credit leg: %+v", legs[1])
	}
}

func TestBuildHistoryBreaksTimestampTiesByTxnID(t *testing.T) {
	alice := int64(1)
	ts := time.Now().UTC()

	// Two entries sharing one timestamp order by txn id.
	entries := []Entry{
		{TxnID: "b", ToOwner: &alice, FromCurrency: "USD", ToCurrency: "USD", ToAmount: dec("10"), Timestamp: ts},
		{TxnID: "a", ToOwner: &alice, FromCurrency: "USD", ToCurrency: "USD", ToAmount: dec("5"), Timestamp: ts},
	}

	records := BuildHistory(entries, alice)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	// Newest first, so "b" (the tie-break loser) comes out on top.
	if records[0].TxnID != "b" || !records[0].NewBalance.Equal(dec("15")) {
		t.Fatalf("unexpected first record: %+v", records[0])
	}
	if records[1].TxnID != "a" || !records[1].NewBalance.Equal(dec("5")) {
		t.Fatalf("unexpected second record: %+v", records[1])
	}
}

func TestCurrentBalanceFiltersByCurrency(t *testing.T) {
	alice := int64(1)
	bob := int64(2)
	ts := time.Now().UTC()

	entries := []Entry{
		{TxnID: "1", ToOwner: &alice, FromCurrency: "USD", ToCurrency: "USD", ToAmount: dec("100"), Timestamp: ts},
		{TxnID: "2", ToOwner: &alice, FromCurrency: "EUR", ToCurrency: "EUR", ToAmount: dec("40"), Timestamp: ts},
		{TxnID: "3", FromOwner: &alice, ToOwner: &bob, FromCurrency: "USD", ToCurrency: "USD",
			FromAmount: dec("25"), ToAmount: dec("25"), Timestamp: ts},
	}

	if got := CurrentBalance(entries, alice, "USD"); !got.Equal(dec("75")) {
		t.Fatalf("alice USD: %s", got)
	}
	if got := CurrentBalance(entries, alice, "EUR"); !got.Equal(dec("40")) {
		t.Fatalf("alice EUR: %s", got)
	}
	if got := CurrentBalance(entries, bob, "USD"); !got.Equal(dec("25")) {
		t.Fatalf("bob USD: %s", got)
	}
	if got := CurrentBalance(entries, bob, "EUR"); !got.IsZero() {
		t.Fatalf("bob EUR: %s", got)
	}
}

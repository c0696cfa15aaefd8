package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustDeposit(t *testing.T, l Ledger, owner int64, currency, amount string) {
	t.Helper()
	if _, err := l.Deposit(context.Background(), owner, currency, dec(amount)); err != nil {
		t.Fatalf("deposit %s %s to %d: %v", amount, currency, owner, err)
	}
}

// assertConsistent checks the central invariant: the wallet table and the
// journal reconstruction must agree for the given pair.
func assertConsistent(t *testing.T, l Ledger, owner int64, currency string) {
	t.Helper()
	ctx := context.Background()
	stored, err := l.StoredBalance(ctx, owner, currency)
	if err != nil {
		t.Fatalf("stored balance (%d, %s): %v", owner, currency, err)
	}
	derived, err := l.ReconstructedBalance(ctx, owner, currency)
	if err != nil {
		t.Fatalf("reconstructed balance (%d, %s): %v", owner, currency, err)
	}
	if !stored.Equal(derived) {
		t.Fatalf("store/journal divergence for (%d, %s): stored=%s derived=%s", owner, currency, stored, derived)
	}
}

func TestDepositWithdrawTransferScenario(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	balance, err := l.Deposit(ctx, 1, "USD", dec("100"))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !balance.Equal(dec("100")) {
		t.Fatalf("expected balance 100, got %s", balance)
	}

	balance, err = l.Withdraw(ctx, 1, "USD", dec("30"))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !balance.Equal(dec("70")) {
		t.Fatalf("expected balance 70, got %s", balance)
	}

	if err := l.Transfer(ctx, 1, 2, "USD", dec("70")); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	senderBalance, err := l.StoredBalance(ctx, 1, "USD")
	if err != nil {
		t.Fatalf("sender balance: %v", err)
	}
	if !senderBalance.IsZero() {
		t.Fatalf("expected sender balance 0, got %s", senderBalance)
	}
	receiverBalance, err := l.StoredBalance(ctx, 2, "USD")
	if err != nil {
		t.Fatalf("receiver balance: %v", err)
	}
	if !receiverBalance.Equal(dec("70")) {
		t.Fatalf("expected receiver balance 70, got %s", receiverBalance)
	}

	assertConsistent(t, l, 1, "USD")
	assertConsistent(t, l, 2, "USD")

	history, err := l.History(ctx, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 records, got %d", len(history))
	}

	// Descending time: transfer out, withdrawal, deposit.
	wantPairs := [][2]string{{"70", "0"}, {"100", "70"}, {"0", "100"}}
	for i, want := range wantPairs {
		rec := history[i]
		if !rec.PreviousBalance.Equal(dec(want[0])) || !rec.NewBalance.Equal(dec(want[1])) {
			t.Fatalf("record %d: expected (%s, %s), got (%s, %s)",
				i, want[0], want[1], rec.PreviousBalance, rec.NewBalance)
		}
	}
	if !history[0].Debit.Equal(dec("70")) || !history[0].Credit.IsZero() {
		t.Fatalf("transfer record: expected debit 70, got debit=%s credit=%s", history[0].Debit, history[0].Credit)
	}
	if !history[2].Credit.Equal(dec("100")) || !history[2].Debit.IsZero() {
		t.Fatalf("deposit record: expected credit 100, got debit=%s credit=%s", history[2].Debit, history[2].Credit)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	mustDeposit(t, l, 1, "USD", "10")

	if _, err := l.Withdraw(ctx, 1, "USD", dec("50")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	balance, err := l.StoredBalance(ctx, 1, "USD")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(dec("10")) {
		t.Fatalf("balance changed on failed withdrawal: %s", balance)
	}

	// The failed attempt must leave no trace in the journal either.
	history, err := l.History(ctx, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 record, got %d", len(history))
	}
}

func TestWithdrawUnknownWallet(t *testing.T) {
	l := NewInMemory()
	if _, err := l.Withdraw(context.Background(), 42, "USD", dec("1")); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected wallet not found, got %v", err)
	}
}

func TestTransferUnknownSender(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	if err := l.Transfer(ctx, 1, 2, "USD", dec("5")); !errors.Is(err, ErrSenderWalletNotFound) {
		t.Fatalf("expected sender wallet not found, got %v", err)
	}
	// No spurious receiver wallet may appear for a failed transfer.
	if _, err := l.StoredBalance(ctx, 2, "USD"); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected no receiver wallet, got %v", err)
	}
}

func TestTransferInsufficientFundsCreatesNoReceiverWallet(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	mustDeposit(t, l, 1, "USD", "10")

	if err := l.Transfer(ctx, 1, 2, "USD", dec("50")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, err := l.StoredBalance(ctx, 2, "USD"); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("expected no receiver wallet, got %v", err)
	}

	balance, err := l.StoredBalance(ctx, 1, "USD")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(dec("10")) {
		t.Fatalf("sender balance changed on failed transfer: %s", balance)
	}
}

func TestRejectsNonPositiveAmounts(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	mustDeposit(t, l, 1, "USD", "10")

	for _, amount := range []string{"0", "-5"} {
		if _, err := l.Deposit(ctx, 1, "USD", dec(amount)); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("deposit %s: expected invalid amount, got %v", amount, err)
		}
		if _, err := l.Withdraw(ctx, 1, "USD", dec(amount)); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("withdraw %s: expected invalid amount, got %v", amount, err)
		}
		if err := l.Transfer(ctx, 1, 2, "USD", dec(amount)); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("transfer %s: expected invalid amount, got %v", amount, err)
		}
	}
}

func TestConcurrentWithdrawalsDrainExactly(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	const workers = 10
	amount := dec("5")
	mustDeposit(t, l, 1, "USD", "50")

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Withdraw(ctx, 1, "USD", amount)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("withdrawal failed: %v", err)
		}
	}

	balance, err := l.StoredBalance(ctx, 1, "USD")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("expected balance 0 after draining, got %s", balance)
	}
	assertConsistent(t, l, 1, "USD")
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	const workers = 10
	amount := dec("20")
	mustDeposit(t, l, 1, "USD", "50")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Withdraw(ctx, 1, "USD", amount)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 2 {
		t.Fatalf("expected exactly 2 withdrawals of 20 from 50, got %d", succeeded)
	}
	balance, err := l.StoredBalance(ctx, 1, "USD")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(dec("10")) {
		t.Fatalf("expected balance 10, got %s", balance)
	}
	assertConsistent(t, l, 1, "USD")
}

func TestConcurrentDisjointTransfers(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	mustDeposit(t, l, 1, "USD", "100")
	mustDeposit(t, l, 3, "USD", "100")

	const rounds = 20
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := l.Transfer(ctx, 1, 2, "USD", dec("1")); err != nil {
				t.Errorf("transfer 1->2: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := l.Transfer(ctx, 3, 4, "USD", dec("1")); err != nil {
				t.Errorf("transfer 3->4: %v", err)
			}
		}()
	}
	wg.Wait()

	for owner, want := range map[int64]string{1: "80", 2: "20", 3: "80", 4: "20"} {
		balance, err := l.StoredBalance(ctx, owner, "USD")
		if err != nil {
			t.Fatalf("balance %d: %v", owner, err)
		}
		if !balance.Equal(dec(want)) {
			t.Fatalf("owner %d: expected %s, got %s", owner, want, balance)
		}
		assertConsistent(t, l, owner, "USD")
	}
}

func TestConservationAcrossOperations(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	// Deposits minus withdrawals per currency; transfers are zero-sum.
	mustDeposit(t, l, 1, "USD", "100")
	mustDeposit(t, l, 2, "USD", "40")
	mustDeposit(t, l, 1, "EUR", "25")
	if _, err := l.Withdraw(ctx, 2, "USD", dec("15")); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if err := l.Transfer(ctx, 1, 3, "USD", dec("60")); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := l.Transfer(ctx, 3, 2, "USD", dec("10")); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	owners := []int64{1, 2, 3}
	totals := map[string]decimal.Decimal{"USD": decimal.Zero, "EUR": decimal.Zero}
	for _, owner := range owners {
		lines, err := l.Balances(ctx, owner)
		if err != nil {
			t.Fatalf("balances %d: %v", owner, err)
		}
		for _, line := range lines {
			totals[line.Currency] = totals[line.Currency].Add(line.Balance)
			assertConsistent(t, l, owner, line.Currency)
		}
	}

	// USD: 100 + 40 deposited, 15 withdrawn. EUR: 25 deposited.
	if !totals["USD"].Equal(dec("125")) {
		t.Fatalf("USD not conserved: %s", totals["USD"])
	}
	if !totals["EUR"].Equal(dec("25")) {
		t.Fatalf("EUR not conserved: %s", totals["EUR"])
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	mustDeposit(t, l, 1, "USD", "100")
	mustDeposit(t, l, 1, "EUR", "50")
	if _, err := l.Withdraw(ctx, 1, "USD", dec("30")); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if err := l.Transfer(ctx, 1, 2, "USD", dec("20")); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := l.Transfer(ctx, 1, 2, "EUR", dec("5")); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	history, err := l.History(ctx, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("expected 5 records, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.After(history[i-1].Timestamp) {
			t.Fatalf("history not in descending time order at %d", i)
		}
	}

	// Replaying oldest to newest must reproduce the stored balances.
	replayed := make(map[string]decimal.Decimal)
	for i := len(history) - 1; i >= 0; i-- {
		rec := history[i]
		replayed[rec.Currency] = replayed[rec.Currency].Add(rec.Credit).Sub(rec.Debit)
		if !replayed[rec.Currency].Equal(rec.NewBalance) {
			t.Fatalf("running balance mismatch at record %d: replayed=%s record=%s",
				i, replayed[rec.Currency], rec.NewBalance)
		}
	}
	for currency, replayedBalance := range replayed {
		stored, err := l.StoredBalance(ctx, 1, currency)
		if err != nil {
			t.Fatalf("stored balance %s: %v", currency, err)
		}
		if !stored.Equal(replayedBalance) {
			t.Fatalf("%s: replayed %s, stored %s", currency, replayedBalance, stored)
		}
	}
}

func TestBalancesUnknownOwner(t *testing.T) {
	l := NewInMemory()
	if _, err := l.Balances(context.Background(), 404); !errors.Is(err, ErrOwnerNotFound) {
		t.Fatalf("expected owner not found, got %v", err)
	}
}

func TestBalancesGroupedPerCurrency(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	mustDeposit(t, l, 1, "USD", "100")
	mustDeposit(t, l, 1, "EUR", "50")
	mustDeposit(t, l, 1, "USD", "25")

	lines, err := l.Balances(ctx, 1)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 currencies, got %d", len(lines))
	}
	if lines[0].Currency != "EUR" || !lines[0].Balance.Equal(dec("50")) {
		t.Fatalf("unexpected first line: %+v", lines[0])
	}
	if lines[1].Currency != "USD" || !lines[1].Balance.Equal(dec("125")) {
		t.Fatalf("unexpected second line: %+v", lines[1])
	}
}

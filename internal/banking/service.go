package banking

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/globalbank/multiledger/internal/ledger"
	"github.com/globalbank/multiledger/internal/notification"
)

// Service exposes the public ledger operations to the transport layer. Amount
// validation is the caller's responsibility but is re-checked here before the
// ledger re-checks it again inside the transaction.
type Service struct {
	ledger   ledger.Ledger
	notifier notification.Notifier
}

// NewService builds a banking service over a ledger backend.
func NewService(ledgerBackend ledger.Ledger, notifier notification.Notifier) *Service {
	return &Service{ledger: ledgerBackend, notifier: notifier}
}

// MovementInput captures a deposit or withdrawal request.
type MovementInput struct {
	OwnerID  int64
	Currency string
	Amount   decimal.Decimal
}

// TransferInput captures a single-currency transfer between two owners.
type TransferInput struct {
	FromOwner int64
	ToOwner   int64
	Currency  string
	Amount    decimal.Decimal
}

// MovementResult reports the wallet state after a deposit or withdrawal.
type MovementResult struct {
	Currency   string
	NewBalance decimal.Decimal
}

func validate(currency string, amount decimal.Decimal) (string, error) {
	currency = strings.TrimSpace(currency)
	if currency == "" || !amount.IsPositive() {
		return "", ledger.ErrInvalidAmount
	}
	return currency, nil
}

// Balances lists the owner's per-currency balances, derived from the journal.
func (s *Service) Balances(ctx context.Context, owner int64) ([]ledger.BalanceLine, error) {
	return s.ledger.Balances(ctx, owner)
}

// Deposit credits the owner's wallet and returns the new balance.
func (s *Service) Deposit(ctx context.Context, in MovementInput) (MovementResult, error) {
	currency, err := validate(in.Currency, in.Amount)
	if err != nil {
		return MovementResult{}, err
	}

	balance, err := s.ledger.Deposit(ctx, in.OwnerID, currency, in.Amount)
	if err != nil {
		return MovementResult{}, err
	}

	s.notify(ctx, notification.KindDeposit, in.OwnerID,
		fmt.Sprintf("Deposited %s %s", in.Amount, currency))

	return MovementResult{Currency: currency, NewBalance: balance}, nil
}

// Withdraw debits the owner's wallet and returns the new balance.
func (s *Service) Withdraw(ctx context.Context, in MovementInput) (MovementResult, error) {
	currency, err := validate(in.Currency, in.Amount)
	if err != nil {
		return MovementResult{}, err
	}

	balance, err := s.ledger.Withdraw(ctx, in.OwnerID, currency, in.Amount)
	if err != nil {
		return MovementResult{}, err
	}

	s.notify(ctx, notification.KindWithdrawal, in.OwnerID,
		fmt.Sprintf("Withdrew %s %s", in.Amount, currency))

	return MovementResult{Currency: currency, NewBalance: balance}, nil
}

// Transfer moves funds between two owners in one currency.
func (s *Service) Transfer(ctx context.Context, in TransferInput) error {
	currency, err := validate(in.Currency, in.Amount)
	if err != nil {
		return err
	}

	if err := s.ledger.Transfer(ctx, in.FromOwner, in.ToOwner, currency, in.Amount); err != nil {
		return err
	}

	s.notify(ctx, notification.KindTransferReceived, in.ToOwner,
		fmt.Sprintf("You received %s %s from owner %d", in.Amount, currency, in.FromOwner))

	return nil
}

// History lists the owner's journal records with running balances, newest first.
func (s *Service) History(ctx context.Context, owner int64) ([]ledger.Record, error) {
	return s.ledger.History(ctx, owner)
}

func (s *Service) notify(ctx context.Context, kind string, owner int64, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        kind,
		Destination: strconv.FormatInt(owner, 10),
		Body:        body,
	})
}

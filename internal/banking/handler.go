package banking

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/globalbank/multiledger/internal/ledger"
)

// Handler exposes the ledger operations over HTTP.
type Handler struct {
	service *Service
}

// NewHandler builds a banking HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type movementRequest struct {
	OwnerID  int64           `json:"owner_id"`
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

type transferRequest struct {
	FromOwner int64           `json:"from_owner"`
	ToOwner   int64           `json:"to_owner"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
}

type balanceResponse struct {
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

type recordResponse struct {
	TxnID           string          `json:"txn_id"`
	Currency        string          `json:"currency"`
	Debit           decimal.Decimal `json:"debit"`
	Credit          decimal.Decimal `json:"credit"`
	PreviousBalance decimal.Decimal `json:"prev_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	Time            string          `json:"time"`
}

// Balances lists the owner's wallets with their journal-derived balances.
func (h *Handler) Balances(c *fiber.Ctx) error {
	owner, err := ownerParam(c)
	if err != nil {
		return err
	}

	lines, err := h.service.Balances(c.UserContext(), owner)
	if err != nil {
		if errors.Is(err, ledger.ErrOwnerNotFound) {
			return fiber.NewError(http.StatusNotFound, "owner not found")
		}
		return fiber.NewError(http.StatusInternalServerError, "balance query failed")
	}

	wallets := make([]balanceResponse, 0, len(lines))
	for _, line := range lines {
		wallets = append(wallets, balanceResponse{Currency: line.Currency, Balance: line.Balance})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"owner_id": owner,
		"wallets":  wallets,
	})
}

// Deposit credits an owner's wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req movementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Deposit(c.UserContext(), MovementInput{
		OwnerID:  req.OwnerID,
		Currency: req.Currency,
		Amount:   req.Amount,
	})
	if err != nil {
		return mapLedgerError(err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":      "SUCCESS",
		"currency":    res.Currency,
		"new_balance": res.NewBalance,
	})
}

// Withdraw debits an owner's wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req movementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res, err := h.service.Withdraw(c.UserContext(), MovementInput{
		OwnerID:  req.OwnerID,
		Currency: req.Currency,
		Amount:   req.Amount,
	})
	if err != nil {
		return mapLedgerError(err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":      "SUCCESS",
		"currency":    res.Currency,
		"new_balance": res.NewBalance,
	})
}

// Transfer moves funds between two owners.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	err := h.service.Transfer(c.UserContext(), TransferInput{
		FromOwner: req.FromOwner,
		ToOwner:   req.ToOwner,
		Currency:  req.Currency,
		Amount:    req.Amount,
	})
	if err != nil {
		return mapLedgerError(err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"status":   "SUCCESS",
		"currency": req.Currency,
		"message":  "Transfer completed",
	})
}

// History returns the owner's journal records, newest first.
func (h *Handler) History(c *fiber.Ctx) error {
	owner, err := ownerParam(c)
	if err != nil {
		return err
	}

	records, err := h.service.History(c.UserContext(), owner)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "history query failed")
	}

	txns := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		txns = append(txns, recordResponse{
			TxnID:           rec.TxnID,
			Currency:        rec.Currency,
			Debit:           rec.Debit,
			Credit:          rec.Credit,
			PreviousBalance: rec.PreviousBalance,
			NewBalance:      rec.NewBalance,
			Time:            rec.Timestamp.UTC().Format(time.RFC3339Nano),
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": txns})
}

func ownerParam(c *fiber.Ctx) (int64, error) {
	owner, err := strconv.ParseInt(c.Params("ownerId"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(http.StatusBadRequest, "owner id must be an integer")
	}
	return owner, nil
}

// mapLedgerError translates the ledger error taxonomy into HTTP statuses.
// Business-rule failures are client-correctable 400s; anything unrecognized is
// an opaque storage failure.
func mapLedgerError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, ledger.ErrWalletNotFound):
		return fiber.NewError(http.StatusBadRequest, "wallet not found")
	case errors.Is(err, ledger.ErrSenderWalletNotFound):
		return fiber.NewError(http.StatusBadRequest, "sender wallet not found")
	default:
		return fiber.NewError(http.StatusInternalServerError, "ledger operation failed")
	}
}

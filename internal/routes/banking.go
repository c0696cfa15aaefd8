package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/globalbank/multiledger/internal/banking"
)

// RegisterBankingRoutes wires the ledger endpoints.
func RegisterBankingRoutes(r fiber.Router, h *banking.Handler) {
	r.Get("/balance/:ownerId", h.Balances)
	r.Post("/deposit", h.Deposit)
	r.Post("/withdraw", h.Withdraw)
	r.Post("/transfer", h.Transfer)
	r.Get("/transactions/:ownerId", h.History)
}

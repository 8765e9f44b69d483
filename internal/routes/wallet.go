package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mbongo-pay/mbongo_pay/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets/fund", h.Fund)
	r.Get("/wallets/:userId/balance", h.Balance)
}

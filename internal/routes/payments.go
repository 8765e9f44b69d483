package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mbongo-pay/mbongo_pay/internal/payments"
)

// RegisterPaymentRoutes wires transfer and transaction-history endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/payments/transfer", h.Transfer)
	r.Get("/transactions/:userId", h.History)
}

package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mbongo-pay/mbongo_pay/internal/user"
)

// RegisterUserRoutes wires user directory endpoints.
func RegisterUserRoutes(r fiber.Router, h *user.Handler) {
	r.Post("/users", h.Create)
}

package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mbongo-pay/mbongo_pay/internal/ledger"
)

// Handler exposes wallet HTTP endpoints over the ledger engine.
type Handler struct {
	engine *ledger.Engine
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{engine: engine}
}

type fundRequest struct {
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

type walletResponse struct {
	UserID    string          `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Fund credits a user's wallet from an external source.
func (h *Handler) Fund(c *fiber.Ctx) error {
	var req fundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if _, err := uuid.Parse(req.UserID); err != nil {
		return fiber.NewError(http.StatusBadRequest, "user_id must be a valid uuid")
	}
	if req.Amount.Sign() <= 0 {
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	}

	res, err := h.engine.Fund(c.UserContext(), req.UserID, req.Amount)
	if err != nil {
		return translateError(err)
	}

	return c.Status(http.StatusOK).JSON(walletResponse{
		UserID:    res.Wallet.UserID,
		Balance:   res.Wallet.Balance,
		UpdatedAt: res.Wallet.UpdatedAt,
	})
}

// Balance returns the current wallet snapshot for a user.
func (h *Handler) Balance(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if _, err := uuid.Parse(userID); err != nil {
		return fiber.NewError(http.StatusBadRequest, "userId must be a valid uuid")
	}

	w, err := h.engine.Balance(c.UserContext(), userID)
	if err != nil {
		return translateError(err)
	}

	return c.Status(http.StatusOK).JSON(walletResponse{
		UserID:    w.UserID,
		Balance:   w.Balance,
		UpdatedAt: w.UpdatedAt,
	})
}

// translateError maps ledger sentinels to HTTP failures. The engine itself
// never formats caller-visible messages.
func translateError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	case errors.Is(err, ledger.ErrUserNotFound):
		return fiber.NewError(http.StatusNotFound, "user not found")
	case errors.Is(err, ledger.ErrSelfTransfer):
		return fiber.NewError(http.StatusBadRequest, "cannot transfer to self")
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return fiber.NewError(http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, ledger.ErrLockTimeout):
		return fiber.NewError(http.StatusConflict, "wallet busy, retry")
	case errors.Is(err, ledger.ErrStorageUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, "storage unavailable")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

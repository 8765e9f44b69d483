package payments

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mbongo-pay/mbongo_pay/internal/ledger"
)

// Handler exposes transfer and transaction-history endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payments handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	FromUserID string          `json:"from_user_id"`
	ToUserID   string          `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type transactionResponse struct {
	ID         string          `json:"id"`
	FromUserID *string         `json:"from_user_id"`
	ToUserID   string          `json:"to_user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Type       string          `json:"type"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Transfer processes a wallet-to-wallet transfer.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if _, err := uuid.Parse(req.FromUserID); err != nil {
		return fiber.NewError(http.StatusBadRequest, "from_user_id must be a valid uuid")
	}
	if _, err := uuid.Parse(req.ToUserID); err != nil {
		return fiber.NewError(http.StatusBadRequest, "to_user_id must be a valid uuid")
	}
	if req.Amount.Sign() <= 0 {
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	}

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Amount:     req.Amount,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrSelfTransfer), errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrUserNotFound):
			return fiber.NewError(http.StatusNotFound, "user not found")
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

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": res.Entry.ID,
		"from_balance":   res.From.Balance,
		"to_balance":     res.To.Balance,
		"completed_at":   res.Entry.CreatedAt,
	})
}

// History lists the settled transactions involving a user.
func (h *Handler) History(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if _, err := uuid.Parse(userID); err != nil {
		return fiber.NewError(http.StatusBadRequest, "userId must be a valid uuid")
	}

	entries, err := h.service.History(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, ledger.ErrUserNotFound) {
			return fiber.NewError(http.StatusNotFound, "user not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]transactionResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, transactionResponse{
			ID:         entry.ID,
			FromUserID: entry.FromUserID,
			ToUserID:   entry.ToUserID,
			Amount:     entry.Amount,
			Type:       string(entry.Type),
			CreatedAt:  entry.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(out)
}

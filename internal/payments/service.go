package payments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mbongo-pay/mbongo_pay/internal/ledger"
	"github.com/mbongo-pay/mbongo_pay/internal/notification"
)

// Service runs wallet-to-wallet transfers through the ledger engine and
// notifies recipients of settled ones.
type Service struct {
	engine   *ledger.Engine
	notifier notification.Notifier
}

// NewService constructs a payments service.
func NewService(engine *ledger.Engine, notifier notification.Notifier) *Service {
	return &Service{engine: engine, notifier: notifier}
}

// TransferInput captures the data needed to move funds between users.
type TransferInput struct {
	FromUserID string
	ToUserID   string
	Amount     decimal.Decimal
}

// Transfer settles the ledger operation and fires a best-effort notification
// to the recipient.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (ledger.TransferOutcome, error) {
	res, err := s.engine.Transfer(ctx, input.FromUserID, input.ToUserID, input.Amount)
	if err != nil {
		return ledger.TransferOutcome{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransfer,
			Destination: input.ToUserID,
			Body:        fmt.Sprintf("You received %s from user %s", input.Amount, input.FromUserID),
		})
	}

	return res, nil
}

// History lists the user's settled transactions, oldest first.
func (s *Service) History(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	return s.engine.Transactions(ctx, userID)
}

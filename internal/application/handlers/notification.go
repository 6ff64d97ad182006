package handlers

import (
	"context"
	"fmt"

	"boutique-backend/internal/domain/event"

	"go.uber.org/zap"
)

// Mailer sends transactional email
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer is the development mailer; it only logs what it would send
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a mailer that logs instead of sending
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send implements Mailer
func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.Info("outgoing email",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}

// OrderConfirmationNotifier sends a confirmation when an order is paid.
// It subscribes to order.paid on the event bus.
type OrderConfirmationNotifier struct {
	mailer Mailer
	logger *zap.Logger
}

// NewOrderConfirmationNotifier creates the notifier
func NewOrderConfirmationNotifier(mailer Mailer, logger *zap.Logger) *OrderConfirmationNotifier {
	return &OrderConfirmationNotifier{mailer: mailer, logger: logger}
}

// Handle implements bus.EventHandler
func (n *OrderConfirmationNotifier) Handle(ctx context.Context, evt event.Event) error {
	if evt.EventType != event.TypeOrderPaid {
		return nil
	}

	var paid event.OrderPaid
	if err := evt.DecodeData(&paid); err != nil {
		return fmt.Errorf("failed to decode order paid event: %w", err)
	}

	subject := fmt.Sprintf("Your order %s is confirmed", paid.OrderID)
	body := fmt.Sprintf("Payment of %d %s received. Thank you for your purchase.",
		paid.SessionAmount, paid.Currency)

	// Recipient resolution goes through the user id on the envelope; the
	// identity provider owns the email address lookup
	if err := n.mailer.Send(ctx, evt.UserID, subject, body); err != nil {
		n.logger.Error("failed to send order confirmation",
			zap.String("order_id", paid.OrderID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

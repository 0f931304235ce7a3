package notification

import (
	"context"
	"log/slog"
)

const (
	// KindTransferCompleted indicates a settled transfer.
	KindTransferCompleted = "transfer_completed"
	// KindTransferFailed indicates a transfer that terminally failed.
	KindTransferFailed = "transfer_failed"
	// KindReviewRequested indicates a transfer parked for manual review.
	KindReviewRequested = "review_requested"
)

// Message describes a notification payload.
type Message struct {
	Kind      string
	Reference string
	Body      string
}

// Notifier delivers notifications to downstream systems. Delivery itself is
// an external collaborator; failures never affect settlement.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "reference", message.Reference, "body", message.Body)
	return nil
}

package poll

import (
	"appointment-notifier/pkg/notifier"
	"context"
	"log/slog"
)

// SubscriberSource provides the current subscriber list.
type SubscriberSource interface {
	Subscribers(ctx context.Context) ([]notifier.SubscriberID, error)
}

// Sender delivers a message to one subscriber.
type Sender interface {
	SendMessage(ctx context.Context, chatID notifier.SubscriberID, text string) ([]byte, error)
}

// Notifier fans a message out to every subscriber, one at a time.
// Delivery failures are logged and never reported to the caller.
type Notifier struct {
	source SubscriberSource
	sender Sender
	logger *slog.Logger
}

// NewNotifier creates a new notifier.
func NewNotifier(source SubscriberSource, sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		source: source,
		sender: sender,
		logger: logger,
	}
}

// Notify sends message to each subscriber in stored order.
func (n *Notifier) Notify(ctx context.Context, message string) {
	ids, err := n.source.Subscribers(ctx)
	if err != nil {
		n.logger.Error("Failed to load subscribers, nobody notified", "error", err)
		return
	}
	if len(ids) == 0 {
		n.logger.Info("No subscribers to notify")
		return
	}

	var sent, failed int
	for _, id := range ids {
		select {
		case <-ctx.Done():
			n.logger.Warn("Context cancelled, stopping notifications",
				"sent", sent,
				"failed", failed,
				"remaining", len(ids)-sent-failed,
				"error", ctx.Err())
			return
		default:
		}

		if _, err := n.sender.SendMessage(ctx, id, message); err != nil {
			failed++
			n.logger.Warn("Notification send failed", "chat_id", string(id), "error", err)
			continue
		}
		sent++
	}

	n.logger.Info("Subscribers notified", "sent", sent, "failed", failed)
}

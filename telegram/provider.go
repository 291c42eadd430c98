// Package telegram sends bot messages through the Telegram Bot API.
package telegram

import (
	"appointment-notifier/pkg/notifier"
	"context"
)

// Provider defines the interface for message sending implementations.
type Provider interface {
	// SendMessage sends text to a chat and returns the raw API response body.
	SendMessage(ctx context.Context, chatID notifier.SubscriberID, text string) ([]byte, error)
}

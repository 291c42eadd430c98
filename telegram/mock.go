package telegram

import (
	"appointment-notifier/pkg/notifier"
	"context"
	"encoding/json"
	"log/slog"
)

// MockProvider is a mock provider for local development.
type MockProvider struct {
	logger *slog.Logger
}

// NewMockProvider creates a new mock provider.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{
		logger: logger,
	}
}

// SendMessage logs the message instead of sending it and answers like the Bot API would.
func (m *MockProvider) SendMessage(_ context.Context, chatID notifier.SubscriberID, text string) ([]byte, error) {
	m.logger.Info("MOCK TELEGRAM MESSAGE",
		"chat_id", string(chatID),
		"text_length", len(text))
	return json.Marshal(map[string]any{
		"ok": true,
		"result": map[string]any{
			"chat": map[string]string{"id": string(chatID)},
			"text": text,
		},
	})
}

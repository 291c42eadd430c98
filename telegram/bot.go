package telegram

import (
	"appointment-notifier/pkg/notifier"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultAPIBase is the public Bot API endpoint.
const DefaultAPIBase = "https://api.telegram.org"

// APIError is returned when the Bot API rejects a request.
type APIError struct {
	Description string
	StatusCode  int
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("telegram: HTTP %d: %s", e.StatusCode, e.Description)
}

// Bot sends messages as a Telegram bot.
type Bot struct {
	client *resty.Client
	logger *slog.Logger
	token  string
}

// NewBot creates a Bot API client. apiBase is normally DefaultAPIBase.
func NewBot(token, apiBase string, logger *slog.Logger) *Bot {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	client := resty.New().
		SetBaseURL(apiBase).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json")
	return &Bot{
		client: client,
		logger: logger,
		token:  token,
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	Description string `json:"description"`
	OK          bool   `json:"ok"`
}

// SendMessage calls sendMessage. On an API error the response body is still returned.
func (b *Bot) SendMessage(ctx context.Context, chatID notifier.SubscriberID, text string) ([]byte, error) {
	b.logger.Info("Telegram API request starting",
		"method", "POST",
		"endpoint", "sendMessage",
		"chat_id", string(chatID))

	startTime := time.Now()
	resp, err := b.client.R().
		SetContext(ctx).
		SetPathParam("token", b.token).
		SetBody(sendMessageRequest{ChatID: string(chatID), Text: text}).
		Post("/bot{token}/sendMessage")
	duration := time.Since(startTime)
	if err != nil {
		b.logger.Warn("Telegram API request failed",
			"chat_id", string(chatID),
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return nil, fmt.Errorf("send message: %w", err)
	}

	body := resp.Body()
	if resp.IsError() {
		var parsed apiResponse
		if jsonErr := json.Unmarshal(body, &parsed); jsonErr != nil {
			b.logger.Debug("Telegram error body is not JSON", "error", jsonErr)
		}
		b.logger.Warn("Telegram API returned non-2xx status",
			"chat_id", string(chatID),
			"status_code", resp.StatusCode(),
			"description", parsed.Description)
		return body, &APIError{StatusCode: resp.StatusCode(), Description: parsed.Description}
	}

	b.logger.Info("Telegram API request completed",
		"endpoint", "sendMessage",
		"chat_id", string(chatID),
		"duration_ms", duration.Milliseconds(),
		"status", "success")
	return body, nil
}

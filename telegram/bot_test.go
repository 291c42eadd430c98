package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBotSendMessage(t *testing.T) {
	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/bot123:abc/sendMessage" {
			t.Errorf("path = %s, want /bot123:abc/sendMessage", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7}}`)
	}))
	defer srv.Close()

	bot := NewBot("123:abc", srv.URL, testLogger())
	body, err := bot.SendMessage(context.Background(), "42", "hello")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if string(body) != `{"ok":true,"result":{"message_id":7}}` {
		t.Errorf("SendMessage() body = %s", body)
	}
	if got.ChatID != "42" || got.Text != "hello" {
		t.Errorf("request = %+v, want chat_id 42 text hello", got)
	}
}

func TestBotSendMessageAPIError(t *testing.T) {
	const errBody = `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, errBody)
	}))
	defer srv.Close()

	bot := NewBot("t", srv.URL, testLogger())
	body, err := bot.SendMessage(context.Background(), "42", "hello")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("SendMessage() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
	}
	if apiErr.Description != "Forbidden: bot was blocked by the user" {
		t.Errorf("Description = %q", apiErr.Description)
	}
	if string(body) != errBody {
		t.Errorf("body = %s, want API body passed through", body)
	}
}

func TestMockProvider(t *testing.T) {
	body, err := NewMockProvider(testLogger()).SendMessage(context.Background(), "42", "hi")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	var resp struct {
		Result struct {
			Text string `json:"text"`
		} `json:"result"`
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.OK || resp.Result.Text != "hi" {
		t.Errorf("mock response = %s", body)
	}
}

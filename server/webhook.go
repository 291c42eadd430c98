package server

import (
	"appointment-notifier/pkg/notifier"
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	maxUpdateBytes = 1 << 20

	welcomeMessage = "Welcome to the Doctor Appointment Notification Bot. Use /register to subscribe or /unregister to unsubscribe from notifications."
)

// update is the subset of a Telegram Update the bot reads.
type update struct {
	Message *struct {
		Chat *struct {
			ID chatID `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// chatID accepts both the numeric ids Telegram sends and string ids.
type chatID string

func (c *chatID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = chatID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("chat id: %w", err)
	}
	*c = chatID(n.String())
	return nil
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.logger.Info("Webhook method not allowed", "method", r.Method)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.webhookSecret != "" {
		got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) != 1 {
			s.logger.Warn("Webhook secret mismatch", "ip", clientIP(r))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var u update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&u); err != nil {
		s.logger.Info("Invalid webhook body", "error", err)
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if u.Message == nil || u.Message.Text == "" || u.Message.Chat == nil || u.Message.Chat.ID == "" {
		s.logger.Info("Invalid request: missing message, text, or chat information")
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	id := notifier.SubscriberID(u.Message.Chat.ID)
	text := strings.ToLower(u.Message.Text)
	s.logger.Info("Received command", "chat_id", string(id), "text", text)

	reply, err := s.reply(r, id, text)
	if err != nil {
		s.logger.Error("Failed to process command", "chat_id", string(id), "text", text, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	body, err := s.messenger.SendMessage(r.Context(), id, reply)
	if err != nil {
		s.logger.Warn("Failed to send reply", "chat_id", string(id), "error", err)
		if body == nil {
			http.Error(w, "Failed to send reply", http.StatusBadGateway)
			return
		}
	}

	// The provider's answer is passed through unchanged.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *Server) reply(r *http.Request, id notifier.SubscriberID, text string) (string, error) {
	switch text {
	case "/register":
		res, err := s.registry.Register(r.Context(), id)
		if err != nil {
			return "", fmt.Errorf("register: %w", err)
		}
		s.logger.Info("Register user response", "chat_id", string(id), "result", res.String())
		return res.Reply(), nil
	case "/unregister":
		res, err := s.registry.Unregister(r.Context(), id)
		if err != nil {
			return "", fmt.Errorf("unregister: %w", err)
		}
		s.logger.Info("Unregister user response", "chat_id", string(id), "result", res.String())
		return res.Reply(), nil
	default:
		return welcomeMessage, nil
	}
}

// Package server handles HTTP endpoints and request routing.
package server

import (
	"appointment-notifier/pkg/notifier"
	"appointment-notifier/registry"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Poller interface for triggering checks.
type Poller interface {
	Check(ctx context.Context) error
}

// Registry interface for subscriber management.
type Registry interface {
	Register(ctx context.Context, id notifier.SubscriberID) (registry.Result, error)
	Unregister(ctx context.Context, id notifier.SubscriberID) (registry.Result, error)
}

// Messenger interface for replying to chats.
type Messenger interface {
	SendMessage(ctx context.Context, chatID notifier.SubscriberID, text string) ([]byte, error)
}

// Server handles HTTP requests.
type Server struct {
	poller        Poller
	registry      Registry
	messenger     Messenger
	logger        *slog.Logger
	pollLimiter   *rateLimiter
	webhookSecret string
}

// Config holds server configuration.
type Config struct {
	Poller    Poller
	Registry  Registry
	Messenger Messenger
	Logger    *slog.Logger
	// WebhookSecret, when set, must match the X-Telegram-Bot-Api-Secret-Token header.
	WebhookSecret string
	// PollLimit caps manual triggers per client IP per hour. Zero means 30.
	PollLimit int
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	limit := cfg.PollLimit
	if limit == 0 {
		limit = 30
	}
	return &Server{
		poller:        cfg.Poller,
		registry:      cfg.Registry,
		messenger:     cfg.Messenger,
		logger:        cfg.Logger,
		pollLimiter:   newRateLimiter(limit, time.Hour),
		webhookSecret: cfg.WebhookSecret,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/pollz", s.handlePoll)
	mux.HandleFunc("/webhook", s.handleWebhook)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port string) error {
	// Configure server with timeouts to prevent resource exhaustion
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute, // A manual check may sit through fetch retries
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "port", port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"healthy"}`); err != nil {
		s.logger.Warn("Failed to write health response", "error", err)
	}
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ip := clientIP(r)
	if !s.pollLimiter.allow(ip) {
		s.logger.Warn("Rate limit exceeded", "ip", ip)
		http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
		return
	}

	s.logger.Info("Poll endpoint triggered", "method", r.Method, "ip", ip)

	if err := s.poller.Check(r.Context()); err != nil {
		s.logger.Error("Poll check failed", "error", err)
		http.Error(w, "Check failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"completed"}`); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

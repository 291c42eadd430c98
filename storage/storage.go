// Package storage persists the watcher's last observed date and the subscriber list.
package storage

import (
	"appointment-notifier/pkg/notifier"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// ErrNotFound is returned by a Backend when a key has never been written.
var ErrNotFound = errors.New("storage: object doesn't exist")

var keyRegex = regexp.MustCompile(`^[a-z0-9_]+$`)

// Backend is a durable key-value store with read-after-write visibility for a single writer.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Store reads and writes the persisted watcher and registry state.
type Store struct {
	backend Backend
	logger  *slog.Logger
}

// New creates a new storage handler.
func New(backend Backend, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		logger:  logger,
	}
}

// LastAppointmentDate returns the last notified date, or an empty date if none was stored.
func (s *Store) LastAppointmentDate(ctx context.Context) (notifier.AppointmentDate, error) {
	data, err := s.backend.Get(ctx, notifier.KeyLastAppointmentDate)
	if IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load last appointment date: %w", err)
	}
	return notifier.AppointmentDate(data), nil
}

// SetLastAppointmentDate records date as the last notified date.
func (s *Store) SetLastAppointmentDate(ctx context.Context, date notifier.AppointmentDate) error {
	if err := s.backend.Put(ctx, notifier.KeyLastAppointmentDate, []byte(date)); err != nil {
		return fmt.Errorf("save last appointment date: %w", err)
	}
	s.logger.Info("Last appointment date saved", "date", date.String())
	return nil
}

// Subscribers returns the registered subscriber ids. A missing key yields an empty list.
func (s *Store) Subscribers(ctx context.Context) ([]notifier.SubscriberID, error) {
	data, err := s.backend.Get(ctx, notifier.KeyActiveChatIDs)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var ids []notifier.SubscriberID
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("unmarshal subscribers: %w", err)
	}
	return ids, nil
}

// SaveSubscribers replaces the stored subscriber list.
func (s *Store) SaveSubscribers(ctx context.Context, ids []notifier.SubscriberID) error {
	if ids == nil {
		ids = []notifier.SubscriberID{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal subscribers: %w", err)
	}
	if err := s.backend.Put(ctx, notifier.KeyActiveChatIDs, data); err != nil {
		return fmt.Errorf("save subscribers: %w", err)
	}
	s.logger.Info("Subscribers saved", "count", len(ids))
	return nil
}

// IsNotFound checks if an error indicates a key was never written.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func validKey(key string) error {
	if !keyRegex.MatchString(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

// withRetry runs a remote backend operation with the shared retry settings.
// ErrNotFound is never retried.
func withRetry(ctx context.Context, logger *slog.Logger, op, key string, fn func() error) error {
	var missing bool
	err := retry.Do(
		func() error {
			err := fn()
			if IsNotFound(err) {
				missing = true
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			logger.Info("Retrying storage operation after error", "operation", op, "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if missing {
		return ErrNotFound
	}
	return err
}

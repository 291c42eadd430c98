// Package registry manages the set of chats subscribed to appointment notifications.
package registry

import (
	"appointment-notifier/pkg/notifier"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Result describes the outcome of a registration change.
type Result int

const (
	Registered Result = iota
	AlreadyRegistered
	Unregistered
	NotRegistered
)

// Reply returns the message sent back to the user.
func (r Result) Reply() string {
	switch r {
	case Registered:
		return "You are now registered for updates."
	case AlreadyRegistered:
		return "You are already registered for updates!"
	case Unregistered:
		return "You are now unregistered from updates."
	default:
		return "You are not registered for updates."
	}
}

func (r Result) String() string {
	switch r {
	case Registered:
		return "registered"
	case AlreadyRegistered:
		return "already_registered"
	case Unregistered:
		return "unregistered"
	default:
		return "not_registered"
	}
}

// Store interface for subscriber persistence.
type Store interface {
	Subscribers(ctx context.Context) ([]notifier.SubscriberID, error)
	SaveSubscribers(ctx context.Context, ids []notifier.SubscriberID) error
}

// Registry adds and removes subscribers. Both operations are idempotent.
// Updates within one process are serialized; other writers of the same store are not.
type Registry struct {
	store  Store
	logger *slog.Logger
	mu     sync.Mutex
}

// New creates a new registry.
func New(store Store, logger *slog.Logger) *Registry {
	return &Registry{store: store, logger: logger}
}

// Register adds id to the subscriber set.
func (r *Registry) Register(ctx context.Context, id notifier.SubscriberID) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.store.Subscribers(ctx)
	if err != nil {
		return 0, fmt.Errorf("load subscribers: %w", err)
	}
	if slices.Contains(ids, id) {
		r.logger.Info("Chat attempted to register again", "chat_id", string(id))
		return AlreadyRegistered, nil
	}

	if err := r.store.SaveSubscribers(ctx, append(ids, id)); err != nil {
		return 0, err
	}
	r.logger.Info("Chat registered for updates", "chat_id", string(id), "subscribers", len(ids)+1)
	return Registered, nil
}

// Unregister removes id from the subscriber set.
func (r *Registry) Unregister(ctx context.Context, id notifier.SubscriberID) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.store.Subscribers(ctx)
	if err != nil {
		return 0, fmt.Errorf("load subscribers: %w", err)
	}
	idx := slices.Index(ids, id)
	if idx < 0 {
		r.logger.Info("Chat attempted to unregister but was not registered", "chat_id", string(id))
		return NotRegistered, nil
	}

	ids = slices.Delete(ids, idx, idx+1)
	if err := r.store.SaveSubscribers(ctx, ids); err != nil {
		return 0, err
	}
	r.logger.Info("Chat unregistered from updates", "chat_id", string(id), "subscribers", len(ids))
	return Unregistered, nil
}

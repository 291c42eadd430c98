// Package poll runs the appointment watcher: fetch, compare, notify, persist.
package poll

import (
	"appointment-notifier/pkg/notifier"
	"context"
	"fmt"
	"log/slog"
	"time"
)

const messageFormat = "New available appointment date: %s\nSchedule an appointment using the link: %s"

// PersistOrder decides which side of a crash a notification lands on.
type PersistOrder int

const (
	// NotifyThenPersist may notify twice if the process dies before the date is saved.
	NotifyThenPersist PersistOrder = iota
	// PersistThenNotify may skip a notification if the process dies after the date is saved.
	PersistThenNotify
)

func (o PersistOrder) String() string {
	if o == PersistThenNotify {
		return "persist_then_notify"
	}
	return "notify_then_persist"
}

// Fetcher returns the date currently listed on the appointment page.
type Fetcher interface {
	FetchCurrentDate(ctx context.Context, pageURL string) (notifier.AppointmentDate, error)
}

// Store interface for watcher state persistence.
type Store interface {
	SubscriberSource
	LastAppointmentDate(ctx context.Context) (notifier.AppointmentDate, error)
	SetLastAppointmentDate(ctx context.Context, date notifier.AppointmentDate) error
}

// Config holds monitor configuration.
type Config struct {
	Fetcher Fetcher
	Store   Store
	Sender  Sender
	Logger  *slog.Logger
	// Now defaults to time.Now in Location.
	Now        func() time.Time
	Location   *time.Location
	PageURL    string
	WindowDays int // Zero means WatchWindowDays
	Order      PersistOrder
}

// Monitor checks the appointment page once per Check call. It keeps no state between calls.
type Monitor struct {
	fetcher    Fetcher
	store      Store
	notifier   *Notifier
	logger     *slog.Logger
	now        func() time.Time
	pageURL    string
	windowDays int
	order      PersistOrder
}

// New creates a new poll monitor.
func New(cfg *Config) *Monitor {
	windowDays := cfg.WindowDays
	if windowDays == 0 {
		windowDays = WatchWindowDays
	}
	now := cfg.Now
	if now == nil {
		loc := cfg.Location
		if loc == nil {
			loc = time.Local
		}
		now = func() time.Time { return time.Now().In(loc) }
	}
	return &Monitor{
		fetcher:    cfg.Fetcher,
		store:      cfg.Store,
		notifier:   NewNotifier(cfg.Store, cfg.Sender, cfg.Logger),
		logger:     cfg.Logger,
		now:        now,
		pageURL:    cfg.PageURL,
		windowDays: windowDays,
		order:      cfg.Order,
	}
}

// Check runs one watcher invocation. A fetch failure is returned without touching state.
func (m *Monitor) Check(ctx context.Context) error {
	m.logger.Info("Running appointment page check", "url", m.pageURL, "window_days", m.windowDays)

	newDate, err := m.fetcher.FetchCurrentDate(ctx, m.pageURL)
	if err != nil {
		return fmt.Errorf("fetch appointment date: %w", err)
	}

	lastDate, err := m.store.LastAppointmentDate(ctx)
	if err != nil {
		return fmt.Errorf("load last appointment date: %w", err)
	}

	now := m.now()
	if !ShouldNotify(newDate, lastDate, m.windowDays, now) {
		m.logger.Info("No notification warranted",
			"new_date", newDate.String(),
			"last_date", lastDate.String(),
			"reason", skipReason(newDate, lastDate))
		return nil
	}

	m.logger.Info("New appointment date found",
		"new_date", newDate.String(),
		"last_date", lastDate.String(),
		"order", m.order.String())

	message := fmt.Sprintf(messageFormat, newDate, m.pageURL)
	if m.order == PersistThenNotify {
		if err := m.store.SetLastAppointmentDate(ctx, newDate); err != nil {
			return fmt.Errorf("save appointment date: %w", err)
		}
		m.notifier.Notify(ctx, message)
		return nil
	}

	m.notifier.Notify(ctx, message)
	if err := m.store.SetLastAppointmentDate(ctx, newDate); err != nil {
		return fmt.Errorf("save appointment date: %w", err)
	}
	return nil
}

func skipReason(newDate, lastDate notifier.AppointmentDate) string {
	switch {
	case newDate.IsZero():
		return "no_date_listed"
	case newDate == lastDate:
		return "unchanged"
	default:
		return "outside_window"
	}
}

// Run calls Check immediately and then every interval until ctx is done.
// Checks never overlap; a failed check is logged and the next tick proceeds.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("Scheduled checks started", "interval", interval.String())
	for ctx.Err() == nil {
		if err := m.Check(ctx); err != nil {
			m.logger.Error("Scheduled check failed", "error", err)
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
	m.logger.Info("Scheduled checks stopped", "error", ctx.Err())
}

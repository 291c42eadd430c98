// Package scraper fetches the appointment page and extracts the published date.
package scraper

import (
	"appointment-notifier/pkg/notifier"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxPageBytes = 8 << 20

// Scraper fetches and parses the appointment page.
type Scraper struct {
	client *http.Client
	logger *slog.Logger
	policy RetryPolicy
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Scraper) {
		s.policy = p
	}
}

// New creates a new scraper.
func New(client *http.Client, logger *slog.Logger, opts ...Option) *Scraper {
	s := &Scraper{
		client: client,
		logger: logger,
		policy: DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchCurrentDate returns the date currently listed at pageURL, or an empty date when the
// page lists none. It fails with *FetchError only after the retry policy is exhausted.
func (s *Scraper) FetchCurrentDate(ctx context.Context, pageURL string) (notifier.AppointmentDate, error) {
	var date notifier.AppointmentDate

	attempts, err := s.policy.Do(ctx, s.logger, func() error {
		page, err := s.fetchPage(ctx, pageURL)
		if err != nil {
			return err
		}

		d, err := ExtractDate(page)
		if isNoDate(err) {
			s.logger.Info("Page lists no appointment date", "url", pageURL)
			date = ""
			return nil
		}
		if err != nil {
			s.logger.Warn("Failed to extract appointment date", "url", pageURL, "error", err)
			return err
		}

		date = d
		return nil
	})
	if err != nil {
		return "", &FetchError{URL: pageURL, Attempts: attempts, Err: err}
	}

	s.logger.Info("Appointment page checked", "url", pageURL, "date", date.String(), "attempts", attempts)
	return date, nil
}

func (s *Scraper) fetchPage(ctx context.Context, pageURL string) (string, error) {
	s.logger.Info("HTTP request starting",
		"method", "GET",
		"url", pageURL,
		"purpose", "fetch_appointment_page")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	// The origin rejects clients that do not look like a browser.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	startTime := time.Now()
	resp, err := s.client.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Warn("HTTP request failed",
			"url", pageURL,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return "", err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	s.logger.Info("HTTP request completed",
		"url", pageURL,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"content_length", resp.ContentLength)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("HTTP request returned non-2xx status", "status_code", resp.StatusCode, "body_length", len(body))
		return "", &HTTPStatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	return string(body), nil
}

package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func statePage(state string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>Clinic</title>
<script>var unrelated = {a: 1};</script>
<script>
  window.__INITIAL_STATE__ = %s;
  window.__OTHER__ = {};
</script>
</head><body><div id="app"></div></body></html>`, state)
}

func TestExtractDate(t *testing.T) {
	tests := []struct {
		name      string
		page      string
		want      string
		wantNoDat bool
		wantParse bool
	}{
		{
			name: "four digit year",
			page: statePage(`{"info":{"infoResults":{"AppointmentDateTime":"Tuesday 10/27/2026 09:30"}}}`),
			want: "10/27/2026",
		},
		{
			name: "two digit year",
			page: statePage(`{"info":{"infoResults":{"AppointmentDateTime":"Next: 11/03/26, 14:00"}}}`),
			want: "11/03/26",
		},
		{
			name: "multi-line state",
			page: statePage("{\n  \"info\": {\n    \"infoResults\": {\n      \"AppointmentDateTime\": \"01/05/2027\"\n    }\n  }\n}"),
			want: "01/05/2027",
		},
		{
			name: "javascript literal quirks",
			page: statePage(`{info: {infoResults: {AppointmentDateTime: '02/14/2027 08:00',},},}`),
			want: "02/14/2027",
		},
		{
			name: "state outside a script element",
			page: `window.__INITIAL_STATE__ = {"info":{"infoResults":{"AppointmentDateTime":"12/01/2026"}}};`,
			want: "12/01/2026",
		},
		{
			name:      "missing date field",
			page:      statePage(`{"info":{"infoResults":{}}}`),
			wantNoDat: true,
		},
		{
			name:      "missing info results",
			page:      statePage(`{"info":{}}`),
			wantNoDat: true,
		},
		{
			name:      "null date field",
			page:      statePage(`{"info":{"infoResults":{"AppointmentDateTime":null}}}`),
			wantNoDat: true,
		},
		{
			name:      "empty date field",
			page:      statePage(`{"info":{"infoResults":{"AppointmentDateTime":""}}}`),
			wantNoDat: true,
		},
		{
			name:      "no marker",
			page:      `<html><script>window.__APP__ = {"x":1};</script></html>`,
			wantParse: true,
		},
		{
			name:      "plain text without marker",
			page:      "service unavailable",
			wantParse: true,
		},
		{
			name:      "undecodable state",
			page:      statePage(`{"info": [}`),
			wantParse: true,
		},
		{
			name:      "free text without a date",
			page:      statePage(`{"info":{"infoResults":{"AppointmentDateTime":"Call us to schedule"}}}`),
			wantParse: true,
		},
		{
			name:      "three digit year",
			page:      statePage(`{"info":{"infoResults":{"AppointmentDateTime":"10/27/202"}}}`),
			wantParse: true,
		},
		{
			name: "impossible calendar date returned as written",
			page: statePage(`{"info":{"infoResults":{"AppointmentDateTime":"13/45/2026"}}}`),
			want: "13/45/2026",
		},
		{
			name: "day out of range returned as written",
			page: statePage(`{"info":{"infoResults":{"AppointmentDateTime":"02/30/2026"}}}`),
			want: "02/30/2026",
		},
		{
			name: "date followed by a time without separator",
			page: statePage(`{"info":{"infoResults":{"AppointmentDateTime":"10/27/2026T09:30"}}}`),
			want: "10/27/2026",
		},
		{
			name: "date glued to a word",
			page: statePage(`{"info":{"infoResults":{"AppointmentDateTime":"ref10/27/2026"}}}`),
			want: "10/27/2026",
		},
		{
			name:      "date inside a longer number",
			page:      statePage(`{"info":{"infoResults":{"AppointmentDateTime":"110/27/20261"}}}`),
			wantParse: true,
		},
		{
			name:      "non-string date field",
			page:      statePage(`{"info":{"infoResults":{"AppointmentDateTime":20261027}}}`),
			wantParse: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractDate(tt.page)
			switch {
			case tt.wantNoDat:
				if !errors.Is(err, ErrNoDate) {
					t.Fatalf("ExtractDate() error = %v, want ErrNoDate", err)
				}
			case tt.wantParse:
				if !IsParseError(err) {
					t.Fatalf("ExtractDate() error = %v, want *ParseError", err)
				}
			default:
				if err != nil {
					t.Fatalf("ExtractDate() unexpected error: %v", err)
				}
				if got.String() != tt.want {
					t.Errorf("ExtractDate() = %q, want %q", got, tt.want)
				}
			}
		})
	}
}

func TestExtractDateMarkerNotFoundReason(t *testing.T) {
	_, err := ExtractDate("<html></html>")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("ExtractDate() error = %v, want *ParseError", err)
	}
	if perr.Reason != "marker not found" {
		t.Errorf("Reason = %q, want %q", perr.Reason, "marker not found")
	}
}

// originServer serves responses in order and repeats the last one.
func originServer(t *testing.T, hits *atomic.Int32, responses ...func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" || r.Header.Get("Accept-Language") == "" {
			t.Errorf("request missing browser headers: %v", r.Header)
		}
		n := int(hits.Add(1)) - 1
		if n >= len(responses) {
			n = len(responses) - 1
		}
		responses[n](w)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func status(code int) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		http.Error(w, http.StatusText(code), code)
	}
}

func page(body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, body)
	}
}

func fastPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.Delay = time.Millisecond
	return p
}

func TestFetchCurrentDate(t *testing.T) {
	withDate := statePage(`{"info":{"infoResults":{"AppointmentDateTime":"10/27/2026"}}}`)
	noDate := statePage(`{"info":{"infoResults":{}}}`)

	tests := []struct {
		name      string
		responses []func(w http.ResponseWriter)
		want      string
		wantHits  int32
		wantErr   bool
	}{
		{
			name:      "first attempt succeeds",
			responses: []func(w http.ResponseWriter){page(withDate)},
			want:      "10/27/2026",
			wantHits:  1,
		},
		{
			name:      "no date is terminal",
			responses: []func(w http.ResponseWriter){page(noDate)},
			want:      "",
			wantHits:  1,
		},
		{
			name:      "recovers after server errors",
			responses: []func(w http.ResponseWriter){status(http.StatusBadGateway), status(http.StatusServiceUnavailable), page(withDate)},
			want:      "10/27/2026",
			wantHits:  3,
		},
		{
			name:      "recovers after parse error",
			responses: []func(w http.ResponseWriter){page("<html>maintenance</html>"), page(withDate)},
			want:      "10/27/2026",
			wantHits:  2,
		},
		{
			name:      "gives up after three attempts",
			responses: []func(w http.ResponseWriter){status(http.StatusInternalServerError)},
			wantHits:  3,
			wantErr:   true,
		},
		{
			name:      "persistent template change is retried",
			responses: []func(w http.ResponseWriter){page("<html></html>")},
			wantHits:  3,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := originServer(t, &hits, tt.responses...)
			s := New(srv.Client(), testLogger(), WithRetryPolicy(fastPolicy()))

			got, err := s.FetchCurrentDate(context.Background(), srv.URL)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FetchCurrentDate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !IsFetchError(err) {
				t.Errorf("FetchCurrentDate() error = %v, want *FetchError", err)
			}
			if got.String() != tt.want {
				t.Errorf("FetchCurrentDate() = %q, want %q", got, tt.want)
			}
			if hits.Load() != tt.wantHits {
				t.Errorf("origin hits = %d, want %d", hits.Load(), tt.wantHits)
			}
		})
	}
}

func TestFetchCurrentDateExhaustedError(t *testing.T) {
	var hits atomic.Int32
	srv := originServer(t, &hits, status(http.StatusTooManyRequests))
	s := New(srv.Client(), testLogger(), WithRetryPolicy(fastPolicy()))

	_, err := s.FetchCurrentDate(context.Background(), srv.URL)

	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("error = %v, want *FetchError", err)
	}
	if ferr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", ferr.Attempts)
	}
	var serr *HTTPStatusError
	if !errors.As(err, &serr) || serr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("last cause = %v, want HTTP 429", err)
	}
}

func TestFetchCurrentDateTransportOnlyPolicy(t *testing.T) {
	var hits atomic.Int32
	srv := originServer(t, &hits, page("<html></html>"))
	p := fastPolicy()
	p.Retryable = RetryTransportOnly
	s := New(srv.Client(), testLogger(), WithRetryPolicy(p))

	_, err := s.FetchCurrentDate(context.Background(), srv.URL)
	if !IsParseError(err) {
		t.Fatalf("error = %v, want wrapped *ParseError", err)
	}
	if hits.Load() != 1 {
		t.Errorf("origin hits = %d, want 1", hits.Load())
	}
}

func TestFetchCurrentDateCanceled(t *testing.T) {
	var hits atomic.Int32
	srv := originServer(t, &hits, status(http.StatusInternalServerError))
	s := New(srv.Client(), testLogger(), WithRetryPolicy(fastPolicy()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.FetchCurrentDate(ctx, srv.URL); err == nil {
		t.Fatal("FetchCurrentDate() with canceled context should fail")
	}
	if hits.Load() > 1 {
		t.Errorf("origin hits = %d, want at most 1", hits.Load())
	}
}

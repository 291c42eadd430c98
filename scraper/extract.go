package scraper

import (
	"appointment-notifier/pkg/notifier"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"
)

var (
	// The state object ends at the first closing brace followed by a semicolon.
	stateRegex = regexp.MustCompile(`(?s)window\.__INITIAL_STATE__\s*=\s*(\{.*?\})\s*;`)
	// Neighboring digits would make the match part of a longer number.
	dateRegex = regexp.MustCompile(`(?:^|\D)(\d{2}/\d{2}/(?:\d{4}|\d{2}))(?:\D|$)`)
)

// Path to the free-text appointment field inside the embedded state.
var datePath = []string{"info", "infoResults", "AppointmentDateTime"}

// ExtractDate pulls the appointment date out of the page's embedded state.
// It returns ErrNoDate when the state is well formed but lists no date.
func ExtractDate(page string) (notifier.AppointmentDate, error) {
	blob, err := findStateBlob(page)
	if err != nil {
		return "", err
	}

	var state any
	if err := json5.Unmarshal([]byte(blob), &state); err != nil {
		return "", &ParseError{Reason: "decode state", Err: err}
	}

	raw, ok := lookup(state, datePath)
	if !ok || raw == nil {
		return "", ErrNoDate
	}
	text, ok := raw.(string)
	if !ok {
		return "", &ParseError{Reason: fmt.Sprintf("date field has type %T", raw)}
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoDate
	}

	return parseDate(text)
}

// parseDate returns the first MM/DD/YY[YY] substring as written. Calendar
// validity is left to the window check.
func parseDate(text string) (notifier.AppointmentDate, error) {
	m := dateRegex.FindStringSubmatch(text)
	if m == nil {
		return "", &ParseError{Reason: "date format unrecognized"}
	}
	return notifier.AppointmentDate(m[1]), nil
}

func findStateBlob(page string) (string, error) {
	var blob string
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(page)); err == nil {
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m := stateRegex.FindStringSubmatch(s.Text()); m != nil {
				blob = m[1]
				return false
			}
			return true
		})
	}
	if blob != "" {
		return blob, nil
	}

	// Not every origin wraps the state in a script element.
	if m := stateRegex.FindStringSubmatch(page); m != nil {
		return m[1], nil
	}
	return "", &ParseError{Reason: "marker not found"}
}

func lookup(v any, path []string) (any, bool) {
	for _, key := range path {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		if v, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return v, true
}

// isNoDate reports whether err is the terminal "nothing listed" state.
func isNoDate(err error) bool {
	return errors.Is(err, ErrNoDate)
}

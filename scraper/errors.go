package scraper

import (
	"errors"
	"fmt"
)

// ErrNoDate indicates the page was parsed but currently lists no appointment date.
var ErrNoDate = errors.New("no appointment date listed")

// ParseError indicates the page did not match the expected embedded-state structure.
type ParseError struct {
	Err    error
	Reason string
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse page: %s: %v", e.Reason, e.Err)
	}
	return "parse page: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError checks if an error is a page structure mismatch.
func IsParseError(err error) bool {
	var perr *ParseError
	return errors.As(err, &perr)
}

// HTTPStatusError indicates the origin answered with a non-2xx status.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// FetchError is returned once every fetch attempt has failed.
type FetchError struct {
	Err      error
	URL      string
	Attempts uint
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: all attempts exhausted after %d: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError checks if an error is an exhausted fetch.
func IsFetchError(err error) bool {
	var ferr *FetchError
	return errors.As(err, &ferr)
}

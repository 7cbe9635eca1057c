package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// InvalidQueryError marks a query the platform rejected outright. It is fatal:
// the run aborts before any output file is produced.
type InvalidQueryError struct {
	Query string
	Err   error
}

func (e *InvalidQueryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid query %q", e.Query)
	}
	return fmt.Sprintf("invalid query %q: %v", e.Query, e.Err)
}

func (e *InvalidQueryError) Unwrap() error {
	return e.Err
}

// FetchError reports a page fetch that failed after exhausting the retry
// budget. Pagination stops, but records collected before it are preserved.
type FetchError struct {
	Page     int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %d: %v (after %d attempts)", e.Page, e.Err, e.Attempts)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrBadStatus indicates a non-200 response from the platform.
type ErrBadStatus struct {
	StatusCode int
	Err        error
}

func (e ErrBadStatus) Error() string {
	return fmt.Errorf("status %d: %w", e.StatusCode, e.Err).Error()
}

func (e ErrBadStatus) Unwrap() error {
	return e.Err
}

// ErrBadPayload indicates a 200 response whose body is not valid JSON.
type ErrBadPayload struct {
	Err error
}

func (e ErrBadPayload) Error() string {
	return fmt.Errorf("bad payload: %w", e.Err).Error()
}

func (e ErrBadPayload) Unwrap() error {
	return e.Err
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 && statusCode != http.StatusOK {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		return ErrBadStatus{StatusCode: statusCode, Err: wrapped}
	}

	return err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var status ErrBadStatus
	if errors.As(err, &status) {
		switch status.StatusCode {
		case http.StatusTooManyRequests:
			return "rate_limited"
		case http.StatusForbidden:
			return "forbidden"
		case http.StatusNotFound:
			return "not_found"
		default:
			return "bad_status"
		}
	}
	var payload ErrBadPayload
	if errors.As(err, &payload) {
		return "bad_payload"
	}
	return "other"
}

// fatalStatus reports whether a status code means the platform rejected the
// query itself. Those are never retried.
func fatalStatus(statusCode int) bool {
	return statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity
}

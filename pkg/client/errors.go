package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts for a page are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during a fetch.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrMalformedResponse is returned when a page body lacks hydra:member or hydra:totalItems.
	ErrMalformedResponse = errors.New("malformed page response")
)

// APIError describes one failed attempt against the catalogue API.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalogue %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("catalogue %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// FetchError is the fatal error for a page request that failed on every attempt.
// It aborts the whole run.
type FetchError struct {
	Partition string
	Page      int
	URL       string
	Attempts  int
	Err       error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch faction %s page %d (%s) failed after %d attempts: %v",
		e.Partition, e.Page, e.URL, e.Attempts, e.Err)
}

// Unwrap exposes both ErrRetryExhausted and the last attempt's error.
func (e *FetchError) Unwrap() []error {
	return []error{ErrRetryExhausted, e.Err}
}

// classifyStatus maps a non-success HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassUnexpected
	}
}

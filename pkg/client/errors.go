package client

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Fetcher.
var (
	// ErrNotFound marks a DOI or filter the provider cannot resolve:
	// HTTP 404, or 200 with zero results. Callers treat it as a valid
	// empty result, never as a failure.
	ErrNotFound = errors.New("record not found")

	// ErrRetryExhausted is returned when every attempt failed with a
	// transient error. Callers degrade it to "not found".
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrMalformed marks a 200 response whose body did not decode into
	// the expected shape. The record is treated as partially populated.
	ErrMalformed = errors.New("malformed provider response")
)

// ErrorClass classifies a failed attempt for metrics and retry decisions.
type ErrorClass string

const (
	// ClassTransient covers connection errors, timeouts and 5xx
	// responses. Retried up to the configured bound.
	ClassTransient ErrorClass = "transient"

	// ClassNotFound covers 404 and empty result sets. Not retried.
	ClassNotFound ErrorClass = "not_found"

	// ClassMalformed covers undecodable 200 bodies. Not retried.
	ClassMalformed ErrorClass = "malformed"
)

// ProviderError carries the status code and classification of a failed
// provider attempt.
type ProviderError struct {
	Provider   string
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s error (status %d): %s: %v",
			e.Provider, e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s error (status %d): %s",
		e.Provider, e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status to an error class. Network failures
// (no response at all) are classified transient by the caller directly.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 404:
		return ClassNotFound
	default:
		// Anything else that is not a 200 (429, 5xx, unexpected 4xx)
		// penalizes the shared backoff and is retried.
		return ClassTransient
	}
}

// shouldRetry reports whether a failed attempt with this class is worth
// another try.
func shouldRetry(class ErrorClass) bool {
	return class == ClassTransient
}

package chat

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is a stable, provider-agnostic failure classification.
type ErrorKind string

const (
	// ErrKindMissingCredential means no usable API key for the selected provider.
	ErrKindMissingCredential ErrorKind = "missing_credential"
	// ErrKindNetworkFailure covers transport errors and upstream 5xx responses.
	ErrKindNetworkFailure ErrorKind = "network_failure"
	// ErrKindRateLimited maps upstream 429 responses.
	ErrKindRateLimited ErrorKind = "rate_limited"
	// ErrKindProviderRejected covers malformed requests and content-policy refusals.
	ErrKindProviderRejected ErrorKind = "provider_rejected"
)

// ProviderError is the single error type surfaced by provider adapters.
// Failures are shown inline to the user and are never fatal to the process;
// no retry or backoff is layered on top.
type ProviderError struct {
	Provider   ProviderID
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider: %s (http %d)", e.Provider, msg, e.StatusCode)
	}
	return fmt.Sprintf("%s provider: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// AsProviderError unwraps err into a *ProviderError if one is in the chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// NewMissingCredential builds the error returned when the selected provider
// has no API key configured. Keys are read once at startup, so this fails
// immediately without a network round trip.
func NewMissingCredential(provider ProviderID, envVar string) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     ErrKindMissingCredential,
		Message:  fmt.Sprintf("no API key configured (set %s)", envVar),
	}
}

// KindForStatus classifies an upstream HTTP status into an ErrorKind.
// 401/403 indicate a rejected credential, 429 rate limiting, other 4xx a
// rejected request (malformed or content policy), and 5xx an upstream fault
// grouped with network failures.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrKindMissingCredential
	case status == http.StatusTooManyRequests:
		return ErrKindRateLimited
	case status >= 400 && status < 500:
		return ErrKindProviderRejected
	default:
		return ErrKindNetworkFailure
	}
}

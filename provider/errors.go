package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a provider failure for the API layer.
type ErrorKind string

const (
	KindTimeout       ErrorKind = "timeout"
	KindInvalidAPIKey ErrorKind = "invalid_api_key"
	KindRateLimited   ErrorKind = "rate_limited"
	KindUpload        ErrorKind = "upload_failure"
	KindUpstream      ErrorKind = "upstream"
)

// ProviderError is the single error shape every upstream failure maps to.
// It is returned to callers as a structured value; there is no automatic
// retry, the failed turn is surfaced with history intact.
type ProviderError struct {
	Provider   Client
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// AsProviderError unwraps err into a *ProviderError when possible.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// classifyStatus maps an HTTP status to an error kind.
func classifyStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindInvalidAPIKey
	case http.StatusTooManyRequests:
		return KindRateLimited
	}
	return KindUpstream
}

// statusError builds a ProviderError from an upstream HTTP response.
func statusError(p Client, status int, body string) *ProviderError {
	msg := strings.TrimSpace(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &ProviderError{Provider: p, Kind: classifyStatus(status), StatusCode: status, Message: msg}
}

// transportError builds a ProviderError from a transport-level failure,
// classifying timeouts and cancellations distinctly.
func transportError(p Client, err error) *ProviderError {
	kind := KindUpstream
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(strings.ToLower(err.Error()), "timeout") {
		kind = KindTimeout
	}
	return &ProviderError{Provider: p, Kind: kind, Message: err.Error()}
}

// uploadError wraps a document upload failure.
func uploadError(p Client, err error) *ProviderError {
	if pe, ok := AsProviderError(err); ok {
		return pe
	}
	return &ProviderError{Provider: p, Kind: KindUpload, Message: err.Error()}
}

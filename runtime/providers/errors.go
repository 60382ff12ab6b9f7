package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Error categories surfaced to callers. Match them with errors.Is.
var (
	ErrStall          = errors.New("stream stalled")
	ErrTotalTimeout   = errors.New("request timed out")
	ErrEmptyResponse  = errors.New("received empty response, please try again")
	ErrSafetyBlocked  = errors.New("request blocked by safety filters, please rephrase your message")
	ErrQuota          = errors.New("quota exceeded, please try again later")
	ErrAuthentication = errors.New("authentication failed, check your API key configuration")
	ErrNetwork        = errors.New("network error, check your network connection and try again")
	ErrServer         = errors.New("provider server error, please try again later")
	ErrNotInitialized = errors.New("provider not initialized")
)

// TransportError reports a failed HTTP exchange or channel open. Nothing was
// streamed when it is returned.
type TransportError struct {
	Provider   ProviderID
	StatusCode int
	Body       string
	Err        error
}

// NewHTTPError builds a TransportError for a non-2xx response, mapping
// well-known statuses onto the error categories.
func NewHTTPError(provider ProviderID, statusCode int, body string) *TransportError {
	var kind error
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		kind = ErrAuthentication
	case statusCode == http.StatusTooManyRequests:
		kind = ErrQuota
	case statusCode >= http.StatusInternalServerError:
		kind = ErrServer
	}
	return &TransportError{Provider: provider, StatusCode: statusCode, Body: body, Err: kind}
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s API error (%d): %v", e.Provider, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
	}
	return fmt.Sprintf("%s transport error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StallError reports that no data arrived within the per-chunk timeout.
type StallError struct {
	Timeout time.Duration
}

func (e *StallError) Error() string {
	return fmt.Sprintf("stream stalled: no data received for %s", e.Timeout)
}

// Is matches ErrStall.
func (e *StallError) Is(target error) bool {
	return target == ErrStall
}

// TotalTimeoutError reports that the whole request exceeded its time budget.
type TotalTimeoutError struct {
	Timeout time.Duration
}

func (e *TotalTimeoutError) Error() string {
	return fmt.Sprintf("request exceeded %s, please try again", e.Timeout)
}

// Is matches ErrTotalTimeout.
func (e *TotalTimeoutError) Is(target error) bool {
	return target == ErrTotalTimeout
}

// ProviderError is a classified provider failure. Its message is the
// category text; the raw cause stays reachable through errors.Is and errors.As.
type ProviderError struct {
	Provider ProviderID
	Kind     error
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Provider == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// EmptyResponse reports a stream that ended cleanly without any text.
func EmptyResponse(provider ProviderID) error {
	return &ProviderError{Provider: provider, Kind: ErrEmptyResponse}
}

// SafetyBlocked reports a request refused by content policy.
func SafetyBlocked(provider ProviderID, reason string) error {
	var cause error
	if reason != "" {
		cause = fmt.Errorf("block reason: %s", reason)
	}
	return &ProviderError{Provider: provider, Kind: ErrSafetyBlocked, Cause: cause}
}

var classifyPatterns = []struct {
	kind     error
	patterns []string
}{
	{ErrAuthentication, []string{"api key", "api_key", "unauthenticated", "permission_denied", "authentication"}},
	{ErrQuota, []string{"quota", "resource_exhausted", "rate limit", "too many requests"}},
	{ErrSafetyBlocked, []string{"safety", "blocked"}},
	{ErrNetwork, []string{
		"connection refused", "connection reset", "no such host", "network is unreachable",
		"failed to fetch", "networkerror", "broken pipe", "unexpected eof",
	}},
}

// Classify maps a raw transport or vendor error onto the error categories.
// Already classified errors, cancellations and unmatched errors are returned unchanged.
func Classify(provider ProviderID, err error) error {
	if err == nil || isClassified(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, c := range classifyPatterns {
		for _, p := range c.patterns {
			if strings.Contains(msg, p) {
				return &ProviderError{Provider: provider, Kind: c.kind, Cause: err}
			}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ProviderError{Provider: provider, Kind: ErrNetwork, Cause: err}
	}
	return err
}

func isClassified(err error) bool {
	var (
		pe *ProviderError
		te *TransportError
	)
	return errors.As(err, &pe) || errors.As(err, &te) ||
		errors.Is(err, ErrStall) || errors.Is(err, ErrTotalTimeout)
}

// IsConfigError reports whether err stems from configuration rather than the
// request itself. Such failures are not retried on another provider.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthentication) || errors.Is(err, ErrNotInitialized) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not initialized") ||
		strings.Contains(msg, "api key") ||
		strings.Contains(msg, "configuration")
}

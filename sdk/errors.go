package sdk

import (
	"errors"
	"fmt"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
)

// Sentinel errors for common failure cases.
var (
	// ErrClientClosed is returned when a method is called after Close.
	ErrClientClosed = errors.New("client is closed")

	// ErrNoProvider is returned by New when neither provider has credentials.
	ErrNoProvider = errors.New("no API keys configured")

	// ErrProviderUnavailable is returned by SetProvider for a provider without credentials.
	ErrProviderUnavailable = errors.New("provider has no API key")
)

// FallbackError reports that both the active provider and its fallback failed
// the same message.
type FallbackError struct {
	// Primary is the provider that was tried first.
	Primary providers.ProviderID

	// Fallback is the provider that was tried second.
	Fallback providers.ProviderID

	PrimaryErr  error
	FallbackErr error
}

// Error implements the error interface. Both failures are shown, primary first.
func (e *FallbackError) Error() string {
	return fmt.Sprintf("%s error: %s. Fallback to %s also failed: %s",
		e.Primary, errText(e.PrimaryErr), e.Fallback, errText(e.FallbackErr))
}

// Unwrap exposes both failures to errors.Is and errors.As.
func (e *FallbackError) Unwrap() []error {
	return []error{e.PrimaryErr, e.FallbackErr}
}

// AsFallbackError checks if an error is a FallbackError and returns it.
//
//	err := client.SendMessageStream(ctx, "hi", cb)
//	if fErr, ok := sdk.AsFallbackError(err); ok {
//	    fmt.Printf("%s and %s both failed\n", fErr.Primary, fErr.Fallback)
//	}
func AsFallbackError(err error) (*FallbackError, bool) {
	var fErr *FallbackError
	if errors.As(err, &fErr) {
		return fErr, true
	}
	return nil, false
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"api key", errors.New("API key not valid. Please pass a valid API key."), ErrAuthentication},
		{"quota", errors.New("Error 429, Message: Resource has been exhausted, Status: RESOURCE_EXHAUSTED"), ErrQuota},
		{"safety", errors.New("response was BLOCKED due to SAFETY"), ErrSafetyBlocked},
		{"dial", errors.New("dial tcp 127.0.0.1:80: connect: connection refused"), ErrNetwork},
		{"dns", errors.New("lookup api.example: no such host"), ErrNetwork},
		{"net error", &net.OpError{Op: "read", Err: errors.New("weird")}, ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(ProviderGemini, tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
			assert.NotContains(t, got.Error(), tt.err.Error())
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	assert.NoError(t, Classify(ProviderClaude, nil))

	plain := errors.New("something odd")
	assert.Same(t, plain, Classify(ProviderClaude, plain))

	assert.Equal(t, context.Canceled, Classify(ProviderClaude, context.Canceled))

	stall := &StallError{Timeout: time.Second}
	assert.Same(t, stall, Classify(ProviderClaude, stall))

	transport := NewHTTPError(ProviderClaude, 400, "bad request")
	assert.Same(t, transport, Classify(ProviderClaude, transport))
}

func TestNewHTTPError(t *testing.T) {
	assert.ErrorIs(t, NewHTTPError(ProviderClaude, 401, ""), ErrAuthentication)
	assert.ErrorIs(t, NewHTTPError(ProviderClaude, 429, ""), ErrQuota)
	assert.ErrorIs(t, NewHTTPError(ProviderClaude, 502, ""), ErrServer)

	err := NewHTTPError(ProviderClaude, 400, "missing model\n")
	assert.Equal(t, "claude API error (400): missing model", err.Error())
	assert.NoError(t, err.Unwrap())

	var te *TransportError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", err), &te)
	assert.Equal(t, 400, te.StatusCode)
}

func TestTimeoutErrors(t *testing.T) {
	stall := &StallError{Timeout: 30 * time.Second}
	total := &TotalTimeoutError{Timeout: 90 * time.Second}

	assert.ErrorIs(t, stall, ErrStall)
	assert.NotErrorIs(t, stall, ErrTotalTimeout)
	assert.ErrorIs(t, total, ErrTotalTimeout)
	assert.NotErrorIs(t, total, ErrStall)
	assert.NotEqual(t, stall.Error(), total.Error())
	assert.Contains(t, stall.Error(), "30s")
	assert.Contains(t, total.Error(), "1m30s")
}

func TestIsConfigError(t *testing.T) {
	assert.True(t, IsConfigError(ErrNotInitialized))
	assert.True(t, IsConfigError(NewHTTPError(ProviderClaude, 401, "")))
	assert.True(t, IsConfigError(errors.New("missing API key")))
	assert.False(t, IsConfigError(ErrQuota))
	assert.False(t, IsConfigError(&StallError{Timeout: time.Second}))
	assert.False(t, IsConfigError(nil))
}

func TestProviderHelpers(t *testing.T) {
	id, err := ParseProviderID(" Gemini ")
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, id)
	assert.Equal(t, ProviderClaude, id.Other())

	_, err = ParseProviderID("openai")
	assert.Error(t, err)

	p, ok := ProviderForModel("claude-sonnet-4-5")
	assert.True(t, ok)
	assert.Equal(t, ProviderClaude, p)
	_, ok = ProviderForModel("gpt-4o")
	assert.False(t, ok)

	assert.ErrorIs(t, EmptyResponse(ProviderClaude), ErrEmptyResponse)
	assert.ErrorIs(t, SafetyBlocked(ProviderGemini, "SAFETY"), ErrSafetyBlocked)

	var cb Callbacks
	assert.NotPanics(t, func() {
		cb.Token("x")
		cb.Complete("x")
		cb.Fail(errors.New("x"))
		cb.Activity()
	})
}

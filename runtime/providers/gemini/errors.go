package gemini

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
)

// classifyError maps genai API errors onto the provider error categories by
// status code, then falls back to message patterns.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := asAPIError(err); ok {
		if kind := kindForAPIError(apiErr); kind != nil {
			return &providers.ProviderError{Provider: providers.ProviderGemini, Kind: kind, Cause: err}
		}
	}
	return providers.Classify(providers.ProviderGemini, err)
}

func asAPIError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}

func kindForAPIError(apiErr genai.APIError) error {
	switch {
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
		return providers.ErrAuthentication
	case apiErr.Code == http.StatusTooManyRequests || strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED"):
		return providers.ErrQuota
	case apiErr.Code >= http.StatusInternalServerError:
		return providers.ErrServer
	default:
		return nil
	}
}

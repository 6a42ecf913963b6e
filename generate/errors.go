package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/Paranoid-AF/ghostline/completion"
)

// ErrNotConfigured is reported when no generation API key is set.
var ErrNotConfigured = errors.New("generate: generation API key not configured")

// Error codes carried in completion.ErrorDetails.Code.
const (
	CodeNotConfigured = "not_configured"
	CodeAPIError      = "api_error"
	CodeNetworkError  = "network_error"
)

// APIError is a non-2xx response, or an error object sent inside the
// stream, from the generation provider.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.StatusCode == 0 {
		return "generation API error: " + msg
	}
	return fmt.Sprintf("generation API error (status %d): %s", e.StatusCode, msg)
}

// Retryable reports whether repeating the request may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type apiErrorBody struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// parseAPIError builds an APIError from a provider error body. Bodies that
// are not JSON become the message verbatim.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		apiErr.Message = parsed.Error.Message
		apiErr.Type = parsed.Error.Type
		if parsed.Error.Code != nil {
			apiErr.Code = fmt.Sprint(parsed.Error.Code)
		}
		return apiErr
	}
	apiErr.Message = truncate(strings.TrimSpace(string(body)), 256)
	return apiErr
}

// isRetryable reports whether err is worth another attempt: rate limits,
// server errors and transport failures, never cancellation.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// errorDetails maps a driver error onto what the listener reports.
func errorDetails(err error) completion.ErrorDetails {
	if errors.Is(err, ErrNotConfigured) {
		return completion.ErrorDetails{
			Code:    CodeNotConfigured,
			Message: "generation API key not configured; set GHOSTLINE_GENERATION_API_KEY or edit the config file",
		}
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return completion.ErrorDetails{
			Code:       CodeAPIError,
			Type:       apiErr.Type,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
		}
	}
	return completion.ErrorDetails{Code: CodeNetworkError, Message: err.Error()}
}

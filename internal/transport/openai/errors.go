package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/storyrag/internal/domain"
)

// parseAPIError turns a go-openai failure into a *domain.ProviderError.
// Rate limits, 5xx and network failures are transient; a cancelled caller is not.
func parseAPIError(ctx context.Context, provider string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s request aborted: %w", provider, ctx.Err())
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := extractDetail(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		if msg == "" && reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &domain.ProviderError{
			Provider:   provider,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
			Transient:  transientStatus(reqErr.HTTPStatusCode),
		}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{
			Provider:   provider,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Transient:  transientStatus(apiErr.HTTPStatusCode),
		}
	}

	// No HTTP response: connection refused, reset, client timeout.
	return &domain.ProviderError{Provider: provider, Message: err.Error(), Transient: true}
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

package llm

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
)

// classify maps a provider SDK error onto the shared taxonomy.
// Throttling, server errors and network failures are transient.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Transient("chat", provider, err)
	}

	if status := statusCode(err); status != 0 {
		if retryableStatus(status) {
			return apperrors.Transient("chat", provider, err)
		}
		return apperrors.Provider("chat", provider, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.Transient("chat", provider, err)
	}
	return apperrors.Provider("chat", provider, err)
}

func statusCode(err error) int {
	var anthErr *anthropic.Error
	if errors.As(err, &anthErr) {
		return anthErr.StatusCode
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status == 529 || // overloaded
		status >= http.StatusInternalServerError
}

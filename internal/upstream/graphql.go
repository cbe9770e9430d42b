package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// executor issues a single GraphQL POST against the configured endpoint,
// retrying rate-limited (429) responses and classifying the rest into the
// §7 taxonomy. It has no notion of pacing — that is the dispatchQueue's job,
// one layer up — so an executor can be tested with a plain httptest server.
type executor struct {
	httpClient *http.Client
	endpoint   string
	token      string
	maxRetries int
	baseDelay  time.Duration
	logger     zerolog.Logger
}

func newExecutor(endpoint, token string, maxRetries int, baseDelay time.Duration, logger zerolog.Logger) *executor {
	return &executor{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		endpoint:   endpoint,
		token:      token,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// attempt performs one HTTP round trip and returns the raw response body,
// classifying transport and status-code failures per §7.
func (e *executor) attempt(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newError(KindFatalConfig, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, newError(KindNetwork, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindNetwork, "read response body", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, newError(KindFatalConfig, "upstream rejected credentials", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, newError(KindRateLimited, "upstream returned 429", nil)
	case resp.StatusCode >= 400:
		return nil, newError(KindUnavailable, fmt.Sprintf("upstream returned %d", resp.StatusCode), nil)
	}

	return respBody, nil
}

// fetchInto is the typed entry point used by client.go: it runs the query,
// decodes the envelope's data field into dst, and classifies GraphQL-level
// errors alongside transport ones.
func (e *executor) fetchInto(ctx context.Context, query string, variables map[string]any, dst any) error {
	envelope := &gqlResponse{}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * e.baseDelay
			e.logger.Warn().Int("attempt", attempt).Dur("delay", delay).Msg("retrying upstream request after rate limit")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return newError(KindNetwork, "context canceled while backing off", ctx.Err())
			}
		}

		body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
		if err != nil {
			return newError(KindFatalConfig, "encode graphql request", err)
		}

		raw, err := e.attempt(ctx, body)
		if err != nil {
			var uerr *Error
			if errors.As(err, &uerr) && uerr.Kind == KindRateLimited {
				lastErr = err
				continue
			}
			return err
		}

		if err := json.Unmarshal(raw, envelope); err != nil {
			return newError(KindUnavailable, "decode graphql envelope", err)
		}
		if len(envelope.Errors) > 0 {
			msg := envelope.Errors[0].Message
			return newError(classifyGraphQLError(msg), msg, nil)
		}
		if len(envelope.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(envelope.Data, dst); err != nil {
			return newError(KindUnavailable, "decode graphql data", err)
		}
		return nil
	}
	return lastErr
}

// classifyGraphQLError gives a best-effort Kind to a GraphQL-level error
// message; upstream does not carry a structured error code, so anything
// that isn't recognizably a not-found response is treated as unavailable.
func classifyGraphQLError(msg string) Kind {
	lower := strings.ToLower(msg)
	for _, needle := range []string{"not found", "does not exist", "no tournament"} {
		if strings.Contains(lower, needle) {
			return KindNotFound
		}
	}
	return KindUnavailable
}

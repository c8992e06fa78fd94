package options

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/formsmith/formsmith/model"
)

// Tester probes remote options endpoints on behalf of form authors, so a
// bad URL is caught while building the question instead of at render time.
type Tester struct {
	client *http.Client
	logger *zap.Logger
}

// NewTester creates a Tester. Timeout zero means 10 seconds.
func NewTester(timeout time.Duration, logger *zap.Logger) *Tester {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tester{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Test calls the endpoint once and reports status, latency, and the parsed
// options. A failure is reported in the result, never as an error; the
// probe itself succeeding or failing is the answer the author asked for.
func (t *Tester) Test(ctx context.Context, endpoint string) model.EndpointTestResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.EndpointTestResult{
			ResponseTimeMs: time.Since(start).Milliseconds(),
			Error:          "invalid endpoint URL: " + err.Error(),
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return model.EndpointTestResult{
			ResponseTimeMs: time.Since(start).Milliseconds(),
			Error:          err.Error(),
		}
	}
	defer resp.Body.Close()

	result := model.EndpointTestResult{
		StatusCode:     resp.StatusCode,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Error = "endpoint returned status " + resp.Status
		return result
	}

	opts, err := parseResponse(resp)
	result.ResponseTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.Options = opts
	t.logger.Debug("endpoint test succeeded",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("options", len(opts)),
		zap.Int64("elapsed_ms", result.ResponseTimeMs))
	return result
}

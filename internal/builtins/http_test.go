package builtins

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/open-policy-agent/opa-wasm-host/internal/evalctx"
)

// countingFailureContext wraps a TestContext but always fails SendHTTP,
// counting how many times it was invoked.
type countingFailureContext struct {
	*evalctx.TestContext
	attempts int
}

func (c *countingFailureContext) SendHTTP(_ context.Context, _ *http.Request, _ time.Duration, _ bool) (*http.Response, error) {
	c.attempts++
	return nil, fmt.Errorf("connection refused")
}

func TestHTTPSendRetriesExactlyMaxRetryAttemptsPlusOne(t *testing.T) {
	ec := &countingFailureContext{TestContext: evalctx.NewTestContext()}

	req := map[string]interface{}{
		"url":                "http://example.invalid/",
		"method":             "GET",
		"max_retry_attempts": 2.0,
		"raise_error":        false,
	}

	start := time.Now()
	resp, err := httpSend(context.Background(), ec, req)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("httpSend: %v", err)
	}

	if ec.attempts != 3 {
		t.Fatalf("expected 3 attempts (k+1 with k=2), got %d", ec.attempts)
	}
	if code, _ := resp["status_code"].(int); code != 0 {
		t.Fatalf("expected status_code 0 on exhausted retries, got %v", resp["status_code"])
	}
	if _, ok := resp["error"]; !ok {
		t.Fatal("expected error field in raise_error=false response")
	}

	// Backoff gaps are 500ms and 1000ms between the three attempts.
	if elapsed < 1400*time.Millisecond {
		t.Fatalf("expected backoff delays to elapse, only took %s", elapsed)
	}
}

func TestHTTPSendRaiseErrorDefaultsTrue(t *testing.T) {
	ec := &countingFailureContext{TestContext: evalctx.NewTestContext()}

	req := map[string]interface{}{
		"url":                 "http://example.invalid/",
		"method":              "GET",
		"max_retry_attempts": 0.0,
	}

	_, err := httpSend(context.Background(), ec, req)
	if err == nil {
		t.Fatal("expected error to propagate when raise_error is unset")
	}
	if ec.attempts != 1 {
		t.Fatalf("expected exactly 1 attempt with max_retry_attempts=0, got %d", ec.attempts)
	}
}

package builtins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/open-policy-agent/opa-wasm-host/internal/evalctx"
)

type httpRequest struct {
	URL               string                 `json:"url"`
	Method            string                 `json:"method"`
	Headers           map[string]interface{} `json:"headers"`
	Body              json.RawMessage        `json:"body"`
	RawBody           *string                `json:"raw_body"`
	Timeout           json.RawMessage        `json:"timeout"`
	EnableRedirect    *bool                  `json:"enable_redirect"`
	MaxRetryAttempts  int                    `json:"max_retry_attempts"`
	ForceJSONDecode   bool                   `json:"force_json_decode"`
	ForceYAMLDecode   bool                   `json:"force_yaml_decode"`
	RaiseErrorRawJSON *bool                  `json:"raise_error"`
}

// httpSend implements the http.send builtin contract in full: retries with
// exponential backoff, raise_error suppression, and forced JSON/YAML
// decoding of the response body.
func httpSend(ctx context.Context, ec evalctx.EvaluationContext, reqJSON map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(reqJSON)
	if err != nil {
		return nil, fmt.Errorf("http.send: %w", err)
	}
	var req httpRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("http.send: %w", err)
	}

	raiseError := true
	if req.RaiseErrorRawJSON != nil {
		raiseError = *req.RaiseErrorRawJSON
	}

	resp, err := internalSend(ctx, ec, req)
	if err != nil {
		if raiseError {
			return nil, err
		}
		return map[string]interface{}{
			"status_code": 0,
			"error":       map[string]interface{}{"message": err.Error()},
		}, nil
	}
	return resp, nil
}

func internalSend(ctx context.Context, ec evalctx.EvaluationContext, req httpRequest) (map[string]interface{}, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("http.send: missing url")
	}
	if req.Method == "" {
		return nil, fmt.Errorf("http.send: missing method")
	}

	timeout := parseTimeout(req.Timeout)
	enableRedirect := evalctx.DefaultHTTPEnableRedirect
	if req.EnableRedirect != nil {
		enableRedirect = *req.EnableRedirect
	}

	var lastErr error
	var httpResp *http.Response
	for attempt := 0; attempt <= req.MaxRetryAttempts; attempt++ {
		httpReq, err := buildHTTPRequest(req)
		if err != nil {
			return nil, err
		}

		httpResp, lastErr = ec.SendHTTP(ctx, httpReq, timeout, enableRedirect)
		if lastErr == nil {
			break
		}
		if req.MaxRetryAttempts > 0 && attempt < req.MaxRetryAttempts {
			delay := time.Duration(500*(1<<uint(attempt))) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("http.send: reading response: %w", err)
	}

	return convertResponse(httpResp, string(body), req.ForceJSONDecode, req.ForceYAMLDecode), nil
}

func buildHTTPRequest(req httpRequest) (*http.Request, error) {
	// Matches the design notes' flagged quirk verbatim: when body is absent
	// and raw_body is absent too, the request body is empty; when body is
	// present it is serialised as JSON text (including surrounding quotes
	// for a bare JSON string), the same "suspect" behaviour the original
	// source exhibits via ToString on a serde_json::Value.
	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	} else if req.RawBody != nil {
		bodyReader = strings.NewReader(*req.RawBody)
	}

	httpReq, err := http.NewRequest(strings.ToUpper(req.Method), req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("http.send: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, fmt.Sprint(v))
	}
	return httpReq, nil
}

func parseTimeout(raw json.RawMessage) time.Duration {
	if len(raw) == 0 {
		return evalctx.DefaultHTTPTimeout
	}
	var asInt int64
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return time.Duration(asInt)
	}
	var asStr string
	if err := json.Unmarshal(raw, &asStr); err == nil {
		if d, err := time.ParseDuration(asStr); err == nil {
			return d
		}
	}
	return evalctx.DefaultHTTPTimeout
}

func convertResponse(resp *http.Response, rawBody string, forceJSON, forceYAML bool) map[string]interface{} {
	headers := map[string]interface{}{}
	for k, v := range resp.Header {
		headers[k] = strings.Join(v, ", ")
	}

	out := map[string]interface{}{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"raw_body":    rawBody,
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case forceJSON || strings.Contains(contentType, "application/json"):
		var v interface{}
		if json.Unmarshal([]byte(rawBody), &v) == nil {
			out["body"] = v
		}
	case forceYAML || strings.Contains(contentType, "application/yaml") || strings.Contains(contentType, "application/x-yaml"):
		var v interface{}
		if yaml.Unmarshal([]byte(rawBody), &v) == nil {
			out["body"] = v
		}
	}
	return out
}

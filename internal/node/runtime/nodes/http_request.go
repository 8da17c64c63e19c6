package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowbase-io/flowbase/internal/node/runtime"
)

// HTTPRequest performs one HTTP call. Output: {status, headers, body};
// JSON responses are decoded.
type HTTPRequest struct {
	client *http.Client
}

func NewHTTPRequest() *HTTPRequest {
	return &HTTPRequest{client: &http.Client{Timeout: 30 * time.Second}}
}

func (h *HTTPRequest) Type() string { return "http_request" }

func (h *HTTPRequest) ConfigSchema() map[string]interface{} {
	return schema([]string{"url"}, map[string]interface{}{
		"url":     prop("string", "Request URL"),
		"method":  prop("string", "HTTP method, default GET"),
		"headers": prop("object", "Request headers"),
		"body":    prop("object", "Request body, JSON encoded"),
		"timeout": prop("string", "Request timeout, e.g. 10s"),
	})
}

func (h *HTTPRequest) Execute(ctx context.Context, cfg map[string]interface{}, _ runtime.Input) (interface{}, error) {
	url, err := stringConfig(cfg, "url")
	if err != nil {
		return nil, err
	}
	method := strings.ToUpper(optionalString(cfg, "method", http.MethodGet))

	var body io.Reader
	if raw, ok := cfg["body"]; ok && raw != nil {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	if timeout := optionalDuration(cfg, "timeout", 0); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if headers, ok := cfg["headers"].(map[string]interface{}); ok {
		for name, value := range headers {
			if s, ok := value.(string); ok {
				req.Header.Set(name, s)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var decoded interface{}
	if json.Unmarshal(raw, &decoded) != nil {
		decoded = string(raw)
	}

	headers := make(map[string]interface{}, len(resp.Header))
	for name := range resp.Header {
		headers[name] = resp.Header.Get(name)
	}
	return map[string]interface{}{
		"status":  resp.StatusCode,
		"headers": headers,
		"body":    decoded,
	}, nil
}

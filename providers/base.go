package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Base holds the fields shared by HTTP-backed providers. Embed it to get
// Name and BaseURL.
type Base struct {
	name    string
	apiKey  string
	baseURL string
}

// Name returns the provider name.
func (b *Base) Name() string { return b.name }

// BaseURL returns the provider root URL without a trailing slash.
func (b *Base) BaseURL() string { return b.baseURL }

// defaultHTTPClient has no overall timeout: the coordinator bounds each call
// with a per-step context deadline.
func defaultHTTPClient() *http.Client {
	return &http.Client{Transport: http.DefaultTransport}
}

func trimBase(u, fallback string) string {
	if u == "" {
		u = fallback
	}
	return strings.TrimRight(u, "/")
}

// hasAnyPrefix reports whether model starts with one of prefixes.
func hasAnyPrefix(model string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// postJSON sends payload as JSON to url and decodes a 200 response into out.
// Transport failures are classified with Classify; non-200 responses become
// an *Error whose message is taken from errMessage when it finds one.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload, out any, errMessage func([]byte) string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Provider: provider, Kind: KindMalformed, Message: "failed to marshal request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &Error{Provider: provider, Kind: KindMalformed, Message: "failed to create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return Classify(provider, fmt.Errorf("request failed: %w", err))
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Classify(provider, fmt.Errorf("failed to read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := ""
		if errMessage != nil {
			msg = errMessage(respBody)
		}
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return NewError(provider, httpResp.StatusCode, msg)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{Provider: provider, Kind: KindTransient, Message: "failed to unmarshal response", Err: err}
	}
	return nil
}

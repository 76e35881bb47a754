package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// LibreTranslate calls a LibreTranslate server's /translate endpoint.
type LibreTranslate struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewLibreTranslate returns a client for the server at baseURL. apiKey may
// be empty for self-hosted instances.
func NewLibreTranslate(baseURL, apiKey string) *LibreTranslate {
	return &LibreTranslate{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Transport: http.DefaultTransport},
	}
}

// Name returns "libretranslate".
func (l *LibreTranslate) Name() string { return "libretranslate" }

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText   string `json:"translatedText"`
	DetectedLanguage *struct {
		Confidence float64 `json:"confidence"`
		Language   string  `json:"language"`
	} `json:"detectedLanguage,omitempty"`
	Error string `json:"error,omitempty"`
}

// Translate sends one translation request. The call is bounded by ctx.
func (l *LibreTranslate) Translate(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	source := req.SourceLanguage
	if source == "" {
		source = "auto"
	}
	body, err := json.Marshal(libreRequest{
		Q:      req.Text,
		Source: source,
		Target: req.TargetLanguage,
		Format: "text",
		APIKey: l.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("libretranslate request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var out libreResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("libretranslate error (%d): %s", httpResp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("libretranslate error (%d): %s", httpResp.StatusCode, out.Error)
	}
	if strings.TrimSpace(out.TranslatedText) == "" {
		return nil, fmt.Errorf("libretranslate returned an empty translation")
	}

	resp := &Response{TranslatedText: out.TranslatedText}
	if out.DetectedLanguage != nil {
		resp.SourceLanguage = out.DetectedLanguage.Language
	} else if req.SourceLanguage != "" {
		resp.SourceLanguage = req.SourceLanguage
	}
	return resp, nil
}

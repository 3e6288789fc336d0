package claude

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/extractor"
	"ipanalyzer/internal/port"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	apiURL       = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	defaultModel = "claude-sonnet-4-20250514"
	providerName = "claude"
)

func init() {
	extractor.RegisterProvider(providerName, func(cfg *config.ExtractorProviderConfig) (port.Extractor, error) {
		return NewExtractor(cfg), nil
	})
}

// Extractor implements port.Extractor using the Anthropic Messages API.
type Extractor struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewExtractor creates a Claude-based extractor from a provider config.
func NewExtractor(cfg *config.ExtractorProviderConfig) *Extractor {
	return newExtractor(cfg, apiURL)
}

// NewExtractorWithEndpoint creates an extractor pointing at a custom API endpoint (for testing).
func NewExtractorWithEndpoint(cfg *config.ExtractorProviderConfig, endpoint string) *Extractor {
	return newExtractor(cfg, endpoint)
}

func newExtractor(cfg *config.ExtractorProviderConfig, endpoint string) *Extractor {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Extractor{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (e *Extractor) Name() string {
	return providerName
}

func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	prompt := extractor.BuildExtractionPrompt(input.Text)

	reqBody := map[string]interface{}{
		"model":       e.model,
		"max_tokens":  16384,
		"temperature": 0,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": prompt},
				},
			},
		},
	}

	respBody, err := e.post(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	text, err := parseResponse(respBody)
	if err != nil {
		return nil, err
	}

	records, err := extractor.ParseRecords(text)
	if err != nil {
		return nil, err
	}

	return &port.ExtractOutput{
		Records:    records,
		Provider:   providerName,
		ModelUsed:  e.model,
		PromptUsed: prompt,
	}, nil
}

// CheckCredentials sends a minimal request to verify the API key.
func (e *Extractor) CheckCredentials(ctx context.Context) error {
	_, err := e.post(ctx, map[string]interface{}{
		"model":      e.model,
		"max_tokens": 1,
		"messages":   []map[string]interface{}{{"role": "user", "content": "ping"}},
	})
	return err
}

func (e *Extractor) post(ctx context.Context, reqBody map[string]interface{}) ([]byte, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling anthropic API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, domain.Excerpt(string(respBody), 500))
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			retryAfter := extractor.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, extractor.NewRateLimitError(providerName, baseErr, retryAfter)
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w: %v", domain.ErrCredentialsRejected, baseErr)
		}
		return nil, baseErr
	}
	return respBody, nil
}

// apiResponse models the Anthropic Messages API response.
type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func parseResponse(body []byte) (string, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &extractor.MalformedOutputError{Err: fmt.Errorf("unmarshaling response: %w", err), Raw: string(body)}
	}

	if resp.StopReason == "refusal" {
		return "", &extractor.BlockedError{Provider: providerName, Reason: resp.StopReason}
	}
	if resp.StopReason == "max_tokens" {
		return "", &extractor.MalformedOutputError{Err: fmt.Errorf("output truncated (stop_reason: max_tokens)"), Raw: string(body)}
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", &extractor.MalformedOutputError{Err: fmt.Errorf("empty response from API"), Raw: string(body)}
	}
	return sb.String(), nil
}

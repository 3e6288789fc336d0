package gemini

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
	apiBaseURL   = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel = "gemini-1.5-flash-latest"
	providerName = "gemini"
)

func init() {
	extractor.RegisterProvider(providerName, func(cfg *config.ExtractorProviderConfig) (port.Extractor, error) {
		return NewExtractor(cfg), nil
	})
}

// Extractor implements port.Extractor using Google's Gemini API.
type Extractor struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewExtractor creates a Gemini-based extractor.
func NewExtractor(cfg *config.ExtractorProviderConfig) *Extractor {
	return newExtractor(cfg, "")
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
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent", apiBaseURL, model)
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
		"contents": []map[string]interface{}{
			{
				"role": "user",
				"parts": []map[string]interface{}{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
			"responseSchema":   extractor.RecordSchema(),
			"temperature":      0,
			"maxOutputTokens":  16384,
		},
		"safetySettings": safetySettings(),
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
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": []map[string]interface{}{{"text": "ping"}}},
		},
		"generationConfig": map[string]interface{}{"maxOutputTokens": 1},
	}
	_, err := e.post(ctx, reqBody)
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
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling gemini API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, domain.Excerpt(string(respBody), 500))
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			retryAfter := extractor.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, extractor.NewRateLimitError(providerName, baseErr, retryAfter)
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w: %v", domain.ErrCredentialsRejected, baseErr)
		case http.StatusBadRequest:
			if strings.Contains(string(respBody), "API_KEY_INVALID") {
				return nil, fmt.Errorf("%w: %v", domain.ErrCredentialsRejected, baseErr)
			}
		}
		return nil, baseErr
	}
	return respBody, nil
}

func safetySettings() []map[string]string {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}
	out := make([]map[string]string, 0, len(categories))
	for _, c := range categories {
		out = append(out, map[string]string{"category": c, "threshold": "BLOCK_NONE"})
	}
	return out
}

// geminiResponse models the Gemini API response.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason        string `json:"blockReason"`
		BlockReasonMessage string `json:"blockReasonMessage"`
	} `json:"promptFeedback"`
}

func parseResponse(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &extractor.MalformedOutputError{Err: fmt.Errorf("unmarshaling response: %w", err), Raw: string(body)}
	}

	if resp.PromptFeedback.BlockReason != "" {
		reason := resp.PromptFeedback.BlockReason
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason += ": " + resp.PromptFeedback.BlockReasonMessage
		}
		return "", &extractor.BlockedError{Provider: providerName, Reason: reason}
	}

	if len(resp.Candidates) == 0 {
		return "", &extractor.MalformedOutputError{Err: fmt.Errorf("empty response from API: no candidates"), Raw: string(body)}
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "PROHIBITED_CONTENT" {
		return "", &extractor.BlockedError{Provider: providerName, Reason: candidate.FinishReason}
	}
	if candidate.FinishReason == "MAX_TOKENS" {
		return "", &extractor.MalformedOutputError{Err: fmt.Errorf("output truncated (finishReason: MAX_TOKENS)"), Raw: string(body)}
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", &extractor.MalformedOutputError{Err: fmt.Errorf("empty response from API: no text"), Raw: string(body)}
	}
	return sb.String(), nil
}

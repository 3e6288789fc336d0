package claude_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ipanalyzer/internal/config"
	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/extractor"
	"ipanalyzer/internal/extractor/claude"
	"ipanalyzer/internal/port"
)

func newClaudeTestExtractor(serverURL string) *claude.Extractor {
	return claude.NewExtractorWithEndpoint(&config.ExtractorProviderConfig{
		Provider:     "claude",
		APIKey:       "test-claude-key",
		DefaultModel: "claude-test",
		TimeoutSecs:  30,
	}, serverURL)
}

func claudeResponse(text, stopReason string) map[string]interface{} {
	return map[string]interface{}{
		"content": []map[string]interface{}{
			{"type": "text", "text": text},
		},
		"stop_reason": stopReason,
	}
}

func TestClaudeExtractor_Extract_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-claude-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var reqBody map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-test", reqBody["model"])

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(claudeResponse(
			"```json\n[{\"ip_address\":\"2001:4860:4860::8888\",\"timestamp_str\":\"21/Aug/2024:10:00:00 +0000\"}]\n```",
			"end_turn"))
	}))
	defer server.Close()

	out, err := newClaudeTestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{Text: "log"})

	require.NoError(t, err)
	assert.Equal(t, "claude", out.Provider)
	assert.Equal(t, "claude-test", out.ModelUsed)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "2001:4860:4860::8888", out.Records[0].IPText)
	assert.True(t, out.Records[0].HasTimestamp)
}

func TestClaudeExtractor_Extract_Truncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(claudeResponse(`[{"ip_address":"8.8.8.8"`, "max_tokens"))
	}))
	defer server.Close()

	_, err := newClaudeTestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{Text: "log"})

	var malformed *extractor.MalformedOutputError
	assert.True(t, errors.As(err, &malformed))
}

func TestClaudeExtractor_Extract_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newClaudeTestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{Text: "log"})

	var rlErr *extractor.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, float64(60), rlErr.RetryAfter.Seconds())
}

func TestClaudeExtractor_CheckCredentials(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		rejected bool
	}{
		{"accepted", http.StatusOK, false},
		{"rejected", http.StatusUnauthorized, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(claudeResponse("p", "max_tokens"))
			}))
			defer server.Close()

			err := newClaudeTestExtractor(server.URL).CheckCredentials(context.Background())

			if tt.rejected {
				assert.True(t, errors.Is(err, domain.ErrCredentialsRejected))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package openai_test

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
	"ipanalyzer/internal/extractor"
	"ipanalyzer/internal/extractor/openai"
	"ipanalyzer/internal/port"
)

func newOpenAITestExtractor(serverURL string) *openai.Extractor {
	return openai.NewExtractorWithEndpoint(&config.ExtractorProviderConfig{
		Provider:     "openai",
		APIKey:       "test-openai-key",
		DefaultModel: "gpt-test",
		TimeoutSecs:  30,
	}, serverURL)
}

func openaiResponse(content, finishReason string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"message":       map[string]interface{}{"role": "assistant", "content": content},
				"finish_reason": finishReason,
			},
		},
	}
}

func TestOpenAIExtractor_Extract_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-openai-key", r.Header.Get("Authorization"))

		var reqBody map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "gpt-test", reqBody["model"])
		assert.Nil(t, reqBody["response_format"])

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(openaiResponse(`[]`, "stop"))
	}))
	defer server.Close()

	out, err := newOpenAITestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{Text: "no addresses here"})

	require.NoError(t, err)
	assert.Empty(t, out.Records)
	assert.Equal(t, "openai", out.Provider)
}

func TestOpenAIExtractor_Extract_Refusal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":null,"refusal":"I can't help with that."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	_, err := newOpenAITestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{Text: "log"})

	var blocked *extractor.BlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, "openai", blocked.Provider)
}

func TestOpenAIExtractor_Extract_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer server.Close()

	_, err := newOpenAITestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{Text: "log"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

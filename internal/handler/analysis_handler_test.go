package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/handler"
	"ipanalyzer/internal/middleware"
	"ipanalyzer/internal/report/reporttest"
	"ipanalyzer/internal/service"
	"ipanalyzer/internal/source"
	"ipanalyzer/internal/storage"
	"ipanalyzer/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   *handler.APIError `json:"error"`
}

func newHandler(a service.AnalysisService, d service.DeliveryService) *handler.AnalysisHandler {
	return handler.NewAnalysisHandler(a, d, source.NewReader(1<<20, zerolog.Nop()), 2<<20,
		[]string{"csv", "json"}, zerolog.Nop())
}

func serve(h *handler.AnalysisHandler, req *http.Request, analyst string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := gin.New()
	r.POST("/api/v1/analyses", func(c *gin.Context) {
		if analyst != "" {
			c.Set(middleware.ContextKeyAnalyst, analyst)
		}
		h.Create(c)
	})
	r.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, url string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestAnalysisHandler_Create_JSON(t *testing.T) {
	analysis := new(mocks.MockAnalysisService)
	rep := reporttest.Sample()
	analysis.On("Analyze", mock.Anything, mock.MatchedBy(func(r service.AnalyzeRequest) bool {
		return r.Document.Name == "paste.txt" &&
			r.Document.Text == "login from 8.8.8.8" &&
			r.Timezone == "America/New_York" &&
			len(r.Metadata) == 2 &&
			r.Metadata[0] == domain.MetadataPair{Key: "case_id", Value: "2024-117"} &&
			r.Metadata[1] == domain.MetadataPair{Key: "analyst", Value: "ana.ruiz"}
	})).Return(rep, nil).Once()

	w := serve(newHandler(analysis, new(mocks.MockDeliveryService)), jsonRequest(t, "/api/v1/analyses", map[string]any{
		"text":      "login from 8.8.8.8",
		"file_name": "paste.txt",
		"timezone":  "America/New_York",
		"metadata":  []string{"Case ID=2024-117"},
	}), "ana.ruiz")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rep.Metadata.RunID.String(), w.Header().Get("X-Run-ID"))

	env := decode(t, w)
	assert.True(t, env.Success)
	var data struct {
		Results []struct {
			SequenceNumber int    `json:"sequence_number"`
			IPAddress      string `json:"ip_address"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Results, 3)
	assert.Equal(t, "8.8.8.8", data.Results[0].IPAddress)
	assert.Equal(t, 3, data.Results[2].SequenceNumber)
	analysis.AssertExpectations(t)
}

func TestAnalysisHandler_Create_Multipart(t *testing.T) {
	analysis := new(mocks.MockAnalysisService)
	analysis.On("Analyze", mock.Anything, mock.MatchedBy(func(r service.AnalyzeRequest) bool {
		return r.Document.Name == "auth.log" &&
			r.Document.Kind == domain.SourceLog &&
			r.Timezone == "Europe/Madrid" &&
			len(r.Metadata) == 1 && r.Metadata[0].Key == "ticket"
	})).Return(reporttest.Sample(), nil).Once()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, _ := mw.CreateFormFile("file", "auth.log")
	_, _ = part.Write([]byte("Accepted password from 8.8.8.8 port 22\n"))
	_ = mw.WriteField("timezone", "Europe/Madrid")
	_ = mw.WriteField("metadata", "ticket=INC-42")
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := serve(newHandler(analysis, new(mocks.MockDeliveryService)), req, "")

	assert.Equal(t, http.StatusOK, w.Code)
	analysis.AssertExpectations(t)
}

func TestAnalysisHandler_Create_FormatAttachment(t *testing.T) {
	analysis := new(mocks.MockAnalysisService)
	delivery := new(mocks.MockDeliveryService)
	rep := reporttest.Sample()
	analysis.On("Analyze", mock.Anything, mock.Anything).Return(rep, nil).Once()
	delivery.On("Render", rep, []string{"csv"}).Return([]storage.Artifact{{
		Format: "csv", FileName: "incident_ip_report_20240821_120000.csv",
		ContentType: "text/csv; charset=utf-8", Data: []byte("a,b\n"),
	}}, nil).Once()

	w := serve(newHandler(analysis, delivery), jsonRequest(t, "/api/v1/analyses?format=CSV", map[string]any{"text": "8.8.8.8"}), "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=incident_ip_report_20240821_120000.csv`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", w.Body.String())
	delivery.AssertExpectations(t)
}

func TestAnalysisHandler_Create_UnknownFormatSkipsAnalysis(t *testing.T) {
	analysis := new(mocks.MockAnalysisService)

	w := serve(newHandler(analysis, new(mocks.MockDeliveryService)), jsonRequest(t, "/api/v1/analyses?format=docx", map[string]any{"text": "x"}), "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", decode(t, w).Error.Code)
	analysis.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestAnalysisHandler_Create_Publish(t *testing.T) {
	analysis := new(mocks.MockAnalysisService)
	delivery := new(mocks.MockDeliveryService)
	rep := reporttest.Sample()
	artifacts := []storage.Artifact{{Format: "csv"}, {Format: "json"}}
	links := []storage.Link{{Format: "csv", URL: "https://signed.example/a.csv"}}

	analysis.On("Analyze", mock.Anything, mock.Anything).Return(rep, nil).Once()
	delivery.On("Render", rep, []string{"csv", "json"}).Return(artifacts, nil).Once()
	delivery.On("Publish", mock.Anything, rep, artifacts).Return(links, nil).Once()
	delivery.On("Notify", mock.Anything, rep, links).Return(assert.AnError).Once()

	w := serve(newHandler(analysis, delivery), jsonRequest(t, "/api/v1/analyses?publish=true", map[string]any{"text": "8.8.8.8"}), "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://signed.example/a.csv")
	delivery.AssertExpectations(t)
}

func TestAnalysisHandler_Create_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"extraction", domain.NewExtractionError(domain.ExtractionUnreachable, "gemini", assert.AnError), http.StatusBadGateway, "EXTRACTION_FAILED"},
		{"too large for model", domain.NewExtractionError(domain.ExtractionInputTooLarge, "", assert.AnError), http.StatusUnprocessableEntity, "INPUT_TOO_LARGE"},
		{"timezone", domain.ErrInvalidTimezone, http.StatusBadRequest, "INVALID_TIMEZONE"},
		{"unexpected", assert.AnError, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := new(mocks.MockAnalysisService)
			analysis.On("Analyze", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			w := serve(newHandler(analysis, new(mocks.MockDeliveryService)), jsonRequest(t, "/api/v1/analyses", map[string]any{"text": "x"}), "")

			assert.Equal(t, tt.wantStatus, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestAnalysisHandler_Create_BadRequests(t *testing.T) {
	analysis := new(mocks.MockAnalysisService)
	h := newHandler(analysis, new(mocks.MockDeliveryService))

	t.Run("missing text", func(t *testing.T) {
		w := serve(h, jsonRequest(t, "/api/v1/analyses", map[string]any{"file_name": "a.txt"}), "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decode(t, w).Error.Code)
	})

	t.Run("malformed metadata", func(t *testing.T) {
		w := serve(h, jsonRequest(t, "/api/v1/analyses", map[string]any{"text": "x", "metadata": []string{"novalue"}}), "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_METADATA", decode(t, w).Error.Code)
	})

	t.Run("reserved metadata key", func(t *testing.T) {
		w := serve(h, jsonRequest(t, "/api/v1/analyses", map[string]any{"text": "x", "metadata": []string{"run_id=mine"}}), "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_METADATA", decode(t, w).Error.Code)
	})

	t.Run("multipart without file", func(t *testing.T) {
		body := &bytes.Buffer{}
		mw := multipart.NewWriter(body)
		_ = mw.WriteField("timezone", "UTC")
		_ = mw.Close()
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/analyses", body)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		w := serve(h, req, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "MISSING_FILE", decode(t, w).Error.Code)
	})

	t.Run("unsupported upload", func(t *testing.T) {
		body := &bytes.Buffer{}
		mw := multipart.NewWriter(body)
		part, _ := mw.CreateFormFile("file", "photo.png")
		_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
		_ = mw.Close()
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/analyses", body)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		w := serve(h, req, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "UNSUPPORTED_FILE_TYPE", decode(t, w).Error.Code)
	})

	t.Run("body over limit", func(t *testing.T) {
		small := handler.NewAnalysisHandler(analysis, new(mocks.MockDeliveryService),
			source.NewReader(0, zerolog.Nop()), 64, nil, zerolog.Nop())
		w := serve(small, jsonRequest(t, "/api/v1/analyses", map[string]any{"text": strings.Repeat("8.8.8.8 ", 100)}), "")
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	analysis.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestAnalysisHandler_Formats(t *testing.T) {
	h := newHandler(new(mocks.MockAnalysisService), new(mocks.MockDeliveryService))
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/formats", http.NoBody)

	h.Formats(c)

	assert.Equal(t, http.StatusOK, w.Code)
	for _, f := range []string{"csv", "json", "pdf", "txt", "xlsx"} {
		assert.Contains(t, w.Body.String(), `"`+f+`"`)
	}
}

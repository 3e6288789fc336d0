package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/middleware"
	"ipanalyzer/internal/report"
	"ipanalyzer/internal/report/jsonreport"
	"ipanalyzer/internal/service"
	"ipanalyzer/internal/source"
	"ipanalyzer/internal/storage"
)

// AnalystMetadataKey is the metadata key filled from the bearer token.
const AnalystMetadataKey = "analyst"

// AnalyzeTextRequest is the JSON body of POST /api/v1/analyses.
type AnalyzeTextRequest struct {
	Text     string   `json:"text" binding:"required"`
	FileName string   `json:"file_name"`
	Timezone string   `json:"timezone"`
	Metadata []string `json:"metadata"`
}

// AnalysisResponse is the envelope data of a finished run.
type AnalysisResponse struct {
	jsonreport.Document
	Links []storage.Link `json:"links,omitempty"`
}

// AnalysisHandler handles analysis endpoints.
type AnalysisHandler struct {
	analysis       service.AnalysisService
	delivery       service.DeliveryService
	reader         *source.Reader
	maxBodyBytes   int64
	publishFormats []string
	log            zerolog.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler. Request bodies above
// maxBodyBytes are rejected; publishFormats are rendered when a caller asks
// for the reports to be published.
func NewAnalysisHandler(
	analysis service.AnalysisService,
	delivery service.DeliveryService,
	reader *source.Reader,
	maxBodyBytes int64,
	publishFormats []string,
	log zerolog.Logger,
) *AnalysisHandler {
	return &AnalysisHandler{
		analysis:       analysis,
		delivery:       delivery,
		reader:         reader,
		maxBodyBytes:   maxBodyBytes,
		publishFormats: publishFormats,
		log:            log,
	}
}

// Create handles POST /api/v1/analyses
//
// The body is either a multipart form with a "file" field (plus optional
// "timezone" and repeated "metadata" key=value fields) or an
// AnalyzeTextRequest. With ?format=<name> the rendered report is returned as
// an attachment; otherwise the JSON document is wrapped in the API envelope.
// ?publish=true uploads the configured formats and notifies recipients.
func (h *AnalysisHandler) Create(c *gin.Context) {
	if h.maxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	}

	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	format := strings.ToLower(strings.TrimSpace(c.Query("format")))
	if format != "" {
		if _, err := report.Get(format); err != nil {
			HandleError(c, h.log, err)
			return
		}
	}
	publish, _ := strconv.ParseBool(c.DefaultQuery("publish", "false"))

	rep, err := h.analysis.Analyze(c.Request.Context(), req)
	if err != nil {
		HandleError(c, h.log, err)
		return
	}
	c.Header("X-Run-ID", rep.Metadata.RunID.String())

	var links []storage.Link
	if publish {
		if links, err = h.publish(c, rep); err != nil {
			HandleError(c, h.log, err)
			return
		}
	}

	if format != "" {
		h.attach(c, rep, format)
		return
	}
	RespondOK(c, AnalysisResponse{Document: jsonreport.NewDocument(rep), Links: links})
}

// Formats handles GET /api/v1/formats
func (h *AnalysisHandler) Formats(c *gin.Context) {
	RespondOK(c, gin.H{"formats": report.Formats()})
}

func (h *AnalysisHandler) bindRequest(c *gin.Context) (service.AnalyzeRequest, bool) {
	var (
		req   service.AnalyzeRequest
		items []string
	)

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			if tooLarge(err) {
				HandleError(c, h.log, domain.ErrSourceTooLarge)
			} else {
				RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
			}
			return req, false
		}
		defer func() { _ = file.Close() }()

		data, err := io.ReadAll(file)
		if err != nil {
			HandleError(c, h.log, fmt.Errorf("%w: %v", domain.ErrSourceUnreadable, err))
			return req, false
		}
		doc, err := h.reader.Read(header.Filename, data)
		if err != nil {
			HandleError(c, h.log, err)
			return req, false
		}
		req.Document = doc
		req.Timezone = c.PostForm("timezone")
		items = c.PostFormArray("metadata")
	} else {
		var body AnalyzeTextRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			if tooLarge(err) {
				HandleError(c, h.log, domain.ErrSourceTooLarge)
			} else {
				RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "body must be a multipart upload or JSON with a text field")
			}
			return req, false
		}
		req.Document = source.FromText(body.FileName, body.Text)
		req.Timezone = body.Timezone
		items = body.Metadata
	}

	pairs, errs := source.ParseMetadata(items)
	if len(errs) > 0 {
		HandleError(c, h.log, errs[0])
		return req, false
	}
	if analyst := middleware.GetAnalyst(c); analyst != "" {
		pairs = setPair(pairs, AnalystMetadataKey, analyst)
	}
	req.Metadata = pairs
	return req, true
}

func (h *AnalysisHandler) publish(c *gin.Context, rep *domain.Report) ([]storage.Link, error) {
	artifacts, err := h.delivery.Render(rep, h.publishFormats)
	if err != nil {
		return nil, err
	}
	links, err := h.delivery.Publish(c.Request.Context(), rep, artifacts)
	if err != nil {
		return nil, err
	}
	if err := h.delivery.Notify(c.Request.Context(), rep, links); err != nil {
		h.log.Warn().Err(err).Str("run_id", rep.Metadata.RunID.String()).Msg("analysisHandler.Create: notification failed")
	}
	return links, nil
}

func (h *AnalysisHandler) attach(c *gin.Context, rep *domain.Report, format string) {
	artifacts, err := h.delivery.Render(rep, []string{format})
	if err != nil {
		HandleError(c, h.log, err)
		return
	}
	a := artifacts[0]
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.FileName}))
	c.Data(http.StatusOK, a.ContentType, a.Data)
}

// setPair replaces key in place or appends it.
func setPair(pairs []domain.MetadataPair, key, value string) []domain.MetadataPair {
	for i := range pairs {
		if pairs[i].Key == key {
			pairs[i].Value = value
			return pairs
		}
	}
	return append(pairs, domain.MetadataPair{Key: key, Value: value})
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ipanalyzer/internal/domain"
	"ipanalyzer/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	var extErr *domain.ExtractionError
	if errors.As(err, &extErr) {
		if extErr.Kind == domain.ExtractionInputTooLarge {
			return http.StatusUnprocessableEntity, "INPUT_TOO_LARGE", "source text exceeds the extraction input limit"
		}
		return http.StatusBadGateway, "EXTRACTION_FAILED", "language model extraction failed (" + string(extErr.Kind) + ")"
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"
	case errors.Is(err, domain.ErrEmptySource):
		return http.StatusBadRequest, "EMPTY_SOURCE", "no source text provided"
	case errors.Is(err, domain.ErrUnsupportedSource):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: txt, log, csv, docx"
	case errors.Is(err, domain.ErrSourceTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrSourceUnreadable):
		return http.StatusBadRequest, "SOURCE_UNREADABLE", "source file could not be read"
	case errors.Is(err, domain.ErrInvalidTimezone):
		return http.StatusBadRequest, "INVALID_TIMEZONE", err.Error()
	case errors.Is(err, domain.ErrInvalidMetadata):
		return http.StatusBadRequest, "INVALID_METADATA", err.Error()
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error()
	case errors.Is(err, domain.ErrPublishFailed):
		return http.StatusBadGateway, "PUBLISH_FAILED", "report upload to storage failed"
	case errors.Is(err, domain.ErrMissingCredentials), errors.Is(err, domain.ErrCredentialsRejected):
		return http.StatusServiceUnavailable, "NOT_CONFIGURED", "upstream api credentials are missing or rejected"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, log zerolog.Logger, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 {
		log.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Str("code", code).
			Msg("handler: request failed")
	}
	RespondError(c, status, code, msg)
}

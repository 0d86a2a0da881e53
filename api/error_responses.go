package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	internalErrors "github.com/gcbaptista/go-searcher/internal/errors"
)

// ErrorCode represents standardized error codes for the API
type ErrorCode string

const (
	// Client Error Codes (4xx)
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrorCodeIndexNotFound    ErrorCode = "INDEX_NOT_FOUND"
	ErrorCodeDocumentNotFound ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrorCodeJobNotFound      ErrorCode = "JOB_NOT_FOUND"
	ErrorCodeIndexExists      ErrorCode = "INDEX_ALREADY_EXISTS"
	ErrorCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrorCodeInvalidJSON      ErrorCode = "INVALID_JSON"
	ErrorCodeInvalidQuery     ErrorCode = "INVALID_QUERY"
	ErrorCodeInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
	ErrorCodeUnsupported      ErrorCode = "UNSUPPORTED_QUERY"
	ErrorCodeSameName         ErrorCode = "SAME_NAME_PROVIDED"
	ErrorCodeRateLimited      ErrorCode = "RATE_LIMITED"

	// Server Error Codes (5xx)
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeIndexUnavailable   ErrorCode = "INDEX_UNAVAILABLE"
	ErrorCodeJobExecutionFailed ErrorCode = "JOB_EXECUTION_FAILED"
)

// ErrorDetail provides additional context for an error
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// APIError represents a standardized API error response
type APIError struct {
	Error     string        `json:"error"`
	Code      ErrorCode     `json:"code"`
	Message   string        `json:"message"`
	Details   []ErrorDetail `json:"details,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIErrorResponse creates a standardized error response
func APIErrorResponse(code ErrorCode, message string, details ...ErrorDetail) *APIError {
	return &APIError{
		Error:     "Request failed",
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// SendError sends a standardized error response
func SendError(c *gin.Context, statusCode int, code ErrorCode, message string, details ...ErrorDetail) {
	errorResponse := APIErrorResponse(code, message, details...)
	errorResponse.RequestID = c.GetString(requestIDKey)
	c.AbortWithStatusJSON(statusCode, errorResponse)
}

// SendStructuredValidationError sends a validation error with one detail per problem
func SendStructuredValidationError(c *gin.Context, result *ValidationResult) {
	details := make([]ErrorDetail, len(result.Errors))
	for i, err := range result.Errors {
		details[i] = ErrorDetail{
			Field:   err.Field,
			Message: err.Message,
			Code:    "VALIDATION_ERROR",
		}
	}

	SendError(c, http.StatusBadRequest, ErrorCodeValidationFailed, "Request validation failed", details...)
}

// SendInvalidJSONError sends a standardized invalid JSON error
func SendInvalidJSONError(c *gin.Context, err error) {
	SendError(c, http.StatusBadRequest, ErrorCodeInvalidJSON,
		"Invalid JSON in request body: "+err.Error())
}

// SendJobExecutionError sends a standardized job execution error
func SendJobExecutionError(c *gin.Context, operation string, err error) {
	SendError(c, http.StatusInternalServerError, ErrorCodeJobExecutionFailed,
		"Failed to start "+operation+" job: "+err.Error())
}

// SendEngineError maps an error returned by the engine to its HTTP status and
// error code. operation names what failed for unexpected errors.
func SendEngineError(c *gin.Context, operation string, err error) {
	status, code := classifyError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal error during " + operation + ": " + message
	}
	SendError(c, status, code, message)
}

func classifyError(err error) (int, ErrorCode) {
	switch {
	case errors.Is(err, internalErrors.ErrIndexNotFound):
		return http.StatusNotFound, ErrorCodeIndexNotFound
	case errors.Is(err, internalErrors.ErrDocumentNotFound):
		return http.StatusNotFound, ErrorCodeDocumentNotFound
	case errors.Is(err, internalErrors.ErrJobNotFound):
		return http.StatusNotFound, ErrorCodeJobNotFound
	case errors.Is(err, internalErrors.ErrIndexAlreadyExists):
		return http.StatusConflict, ErrorCodeIndexExists
	case errors.Is(err, internalErrors.ErrSameName):
		return http.StatusBadRequest, ErrorCodeSameName
	case errors.Is(err, internalErrors.ErrInvalidInput):
		return http.StatusBadRequest, ErrorCodeValidationFailed
	case errors.Is(err, internalErrors.ErrParse):
		return http.StatusBadRequest, ErrorCodeInvalidQuery
	case errors.Is(err, internalErrors.ErrInvalidArgument):
		return http.StatusBadRequest, ErrorCodeInvalidArgument
	case errors.Is(err, internalErrors.ErrUnsupportedQuery):
		return http.StatusBadRequest, ErrorCodeUnsupported
	case errors.Is(err, internalErrors.ErrSearcherClosed):
		// the index was replaced by a settings change or rename; a retry sees the new one
		return http.StatusServiceUnavailable, ErrorCodeIndexUnavailable
	default:
		return http.StatusInternalServerError, ErrorCodeInternalError
	}
}

package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Sentinel errors shared by the services. Wrap them with fmt.Errorf("...: %w").
var (
	ErrTransientProvider    = stderrors.New("paper provider temporarily unavailable")
	ErrConfiguration        = stderrors.New("generative model is not configured")
	ErrModelOutputMalformed = stderrors.New("model output is not valid JSON")
	ErrNotFound             = stderrors.New("not found")
	ErrNoPDFAvailable       = stderrors.New("paper has no pdf link")
	ErrUnauthorized         = stderrors.New("unauthorized")
	ErrInvalidInput         = stderrors.New("invalid input")
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeBadRequest          ErrorType = "BAD_REQUEST"
	ErrorTypeUnauthorized        ErrorType = "UNAUTHORIZED"
	ErrorTypeNotFound            ErrorType = "NOT_FOUND"
	ErrorTypeNoPDFAvailable      ErrorType = "NO_PDF_AVAILABLE"
	ErrorTypeUnavailable         ErrorType = "SERVICE_UNAVAILABLE"
	ErrorTypeInternalServerError ErrorType = "INTERNAL_SERVER_ERROR"
)

// CustomError represents a custom error with associated HTTP status code and type
type CustomError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Internal   error
}

// Error implements the error interface
func (e *CustomError) Error() string {
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Internal
}

func newError(errType ErrorType, message string, statusCode int, internal error) *CustomError {
	return &CustomError{
		Type:       errType,
		Message:    message,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

// New400Error creates a new bad request error
func New400Error(message string) *CustomError {
	return newError(ErrorTypeBadRequest, message, http.StatusBadRequest, ErrInvalidInput)
}

// New401Error creates a new unauthorized error
func New401Error() *CustomError {
	return newError(ErrorTypeUnauthorized, "Unauthorized access", http.StatusUnauthorized, ErrUnauthorized)
}

// New404Error creates a new not found error
func New404Error(message string) *CustomError {
	return newError(ErrorTypeNotFound, message, http.StatusNotFound, ErrNotFound)
}

// New500Error creates a new internal server error
func New500Error(internal error) *CustomError {
	return newError(ErrorTypeInternalServerError, "An unexpected error occurred", http.StatusInternalServerError, internal)
}

// FromError classifies an error chain into a CustomError.
func FromError(err error) *CustomError {
	var customErr *CustomError
	if stderrors.As(err, &customErr) {
		return customErr
	}

	switch {
	case stderrors.Is(err, ErrNotFound):
		return newError(ErrorTypeNotFound, err.Error(), http.StatusNotFound, err)
	case stderrors.Is(err, ErrNoPDFAvailable):
		return newError(ErrorTypeNoPDFAvailable, err.Error(), http.StatusUnprocessableEntity, err)
	case stderrors.Is(err, ErrUnauthorized):
		return newError(ErrorTypeUnauthorized, "Unauthorized access", http.StatusUnauthorized, err)
	case stderrors.Is(err, ErrInvalidInput):
		return newError(ErrorTypeBadRequest, err.Error(), http.StatusBadRequest, err)
	case stderrors.Is(err, ErrTransientProvider), stderrors.Is(err, ErrConfiguration):
		return newError(ErrorTypeUnavailable, err.Error(), http.StatusServiceUnavailable, err)
	default:
		return New500Error(err)
	}
}

// HandleError handles the custom error and sends an appropriate JSON response
func HandleError(c *gin.Context, err error) {
	customErr := FromError(err)

	if customErr.StatusCode >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().
			Err(customErr.Internal).
			Str("url", c.Request.URL.String()).
			Str("type", string(customErr.Type)).
			Msg("Request failed")
	}

	c.JSON(customErr.StatusCode, gin.H{
		"error": gin.H{
			"type":    customErr.Type,
			"message": customErr.Message,
		},
	})
}

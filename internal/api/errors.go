package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"credit-tca/internal/tca"
)

// APIError is the JSON error body.
type APIError struct {
	StatusCode int         `json:"-"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer.
func (e *APIError) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// FieldError is one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func errInvalidBody(err error) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, ErrorCode: "INVALID_REQUEST", Message: "invalid request body", Details: err.Error()}
}

func errValidationFailed(err error) *APIError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errInvalidBody(err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Namespace(), Rule: fe.Tag()})
	}
	return &APIError{StatusCode: http.StatusBadRequest, ErrorCode: "VALIDATION_FAILED", Message: "request validation failed", Details: fields}
}

// errorFor maps engine errors to HTTP statuses. ErrNotTrained wraps
// ErrValidation, so it is checked first.
func errorFor(err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, tca.ErrNotTrained):
		return &APIError{StatusCode: http.StatusConflict, ErrorCode: "NOT_TRAINED", Message: err.Error()}
	case errors.Is(err, tca.ErrStaleCalibration):
		return &APIError{StatusCode: http.StatusConflict, ErrorCode: "STALE_CALIBRATION", Message: err.Error()}
	case errors.Is(err, tca.ErrValidation):
		return &APIError{StatusCode: http.StatusBadRequest, ErrorCode: "VALIDATION_FAILED", Message: err.Error()}
	case errors.Is(err, tca.ErrInsufficientData):
		return &APIError{StatusCode: http.StatusUnprocessableEntity, ErrorCode: "INSUFFICIENT_DATA", Message: err.Error()}
	default:
		return &APIError{StatusCode: http.StatusInternalServerError, ErrorCode: "INTERNAL_ERROR", Message: "internal server error"}
	}
}

// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/panel-configurator/backend/internal/engine"
	"github.com/panel-configurator/backend/internal/grid"
	"github.com/panel-configurator/backend/internal/models"
)

// APIError represents a structured API error response
type APIError struct {
	Status    int                    `json:"-"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable,omitempty"`
	Check     *models.PlacementCheck `json:"check,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// engineError translates the placement executor's error taxonomy into API
// errors. Rejection reasons travel verbatim in Message; the span arithmetic
// rides along in Check so clients can show how much room there actually is.
func engineError(err error) *APIError {
	var vf *engine.ValidationFailure
	if errors.As(err, &vf) {
		check := vf.Check
		return &APIError{
			Status:  http.StatusConflict,
			Code:    "PLACEMENT_REJECTED",
			Message: check.Reason,
			Check:   &check,
		}
	}

	var nf *engine.NotFoundError
	if errors.As(err, &nf) {
		return NewNotFoundError(nf.Entity, nf.ID)
	}

	var nc *engine.NotConfigurableError
	if errors.As(err, &nc) {
		return &APIError{
			Status:  http.StatusUnprocessableEntity,
			Code:    "NOT_CONFIGURABLE",
			Message: nc.Error(),
		}
	}

	var pf *engine.PersistenceFailure
	if errors.As(err, &pf) {
		return &APIError{
			Status:    http.StatusServiceUnavailable,
			Code:      "STORAGE_FAILURE",
			Message:   "storage failed mid-operation, nothing was changed",
			Details:   pf.Error(),
			Retryable: pf.Retryable(),
		}
	}

	if errors.Is(err, grid.ErrInvalidSlotPosition) || errors.Is(err, grid.ErrInvalidSpanWidth) {
		return NewBadRequestError(err.Error(), nil)
	}

	return NewInternalError("placement operation failed", err)
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError

	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		apiErr = &APIError{
			Status:  e.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", e.Message),
		}
	default:
		apiErr = engineError(err)
	}

	if !c.Response().Committed {
		c.JSON(apiErr.Status, apiErr)
	}
}

// RespondWithError is a helper to respond with an APIError
func RespondWithError(c echo.Context, err *APIError) error {
	return c.JSON(err.Status, err)
}

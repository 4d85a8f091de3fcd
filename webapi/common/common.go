// Package common holds the response envelopes and error mapping shared by
// the HTTP handlers.
package common

import (
	"errors"

	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/money"
	"github.com/amirasaad/splitsync/pkg/orchestrator"
	"github.com/amirasaad/splitsync/pkg/refresh"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Response defines the standard API response structure for success cases.
type Response struct {
	Status  int    `json:"status"`         // HTTP status code
	Message string `json:"message"`        // Human-readable explanation
	Data    any    `json:"data,omitempty"` // Response data
}

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Errors   any    `json:"errors,omitempty"`
}

var validate = validator.New()

// SuccessResponseJSON writes a Response envelope.
func SuccessResponseJSON(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Response{Status: status, Message: message, Data: data})
}

// ProblemDetailsJSON writes an application/problem+json response. The
// status is taken from the optional status argument or derived from err.
func ProblemDetailsJSON(c *fiber.Ctx, title string, err error, status ...int) error {
	code := ErrorToStatusCode(err)
	if len(status) > 0 {
		code = status[0]
	}
	var fe *fiber.Error
	if len(status) == 0 && errors.As(err, &fe) {
		code = fe.Code
	}
	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   code,
		Instance: c.OriginalURL(),
	}
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, v := range verrs {
			fields[v.Field()] = v.Tag()
		}
		pd.Detail = "request validation failed"
		pd.Errors = fields
	case err != nil:
		pd.Detail = err.Error()
	}
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return c.Status(code).JSON(pd)
}

// ErrorToStatusCode maps domain errors to HTTP status codes.
func ErrorToStatusCode(err error) int {
	switch {
	case err == nil:
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, money.ErrTooManyDecimals),
		errors.Is(err, money.ErrMismatchedCurrencies):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvariantViolation), errors.Is(err, domain.ErrUnresolvedReference):
		return fiber.StatusConflict
	case errors.Is(err, orchestrator.ErrSyncInProgress):
		return fiber.StatusConflict
	case errors.Is(err, refresh.ErrManualRefreshDenied), errors.Is(err, refresh.ErrCooldown):
		return fiber.StatusTooManyRequests
	case errors.Is(err, orchestrator.ErrOffline), errors.Is(err, domain.ErrTransient):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// BindAndValidate parses the request body into T and validates it. On
// failure it writes the problem response and returns a nil input.
func BindAndValidate[T any](c *fiber.Ctx) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, ProblemDetailsJSON(c, "Invalid request body", err, fiber.StatusBadRequest)
	}
	if err := validate.Struct(input); err != nil {
		return nil, ProblemDetailsJSON(c, "Validation failed", err, fiber.StatusBadRequest)
	}
	return &input, nil
}

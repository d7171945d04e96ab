package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/streamcore/ttsqueue/internal/tts"
)

// APIError is the JSON body of every failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func httpError(status int, code, message string) *echo.HTTPError {
	return echo.NewHTTPError(status, &APIError{Code: code, Message: message})
}

func badRequest(code, message string) *echo.HTTPError {
	return httpError(http.StatusBadRequest, code, message)
}

// fromDomain maps controller errors to HTTP responses.
func fromDomain(err error) *echo.HTTPError {
	var verr *tts.ValidationError
	switch {
	case errors.As(err, &verr):
		he := badRequest("invalid_settings", verr.Error())
		he.Message.(*APIError).Field = verr.Field
		return he
	case errors.Is(err, tts.ErrNotFound):
		return httpError(http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, tts.ErrQueueFull):
		return httpError(http.StatusTooManyRequests, "queue_full", err.Error())
	case errors.Is(err, tts.ErrEmptyMessage):
		return badRequest("empty_message", err.Error())
	case errors.Is(err, tts.ErrClosed):
		return httpError(http.StatusServiceUnavailable, "closed", err.Error())
	default:
		return httpError(http.StatusInternalServerError, "internal", err.Error())
	}
}

package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-marketplace/internal/apperr"
	"github.com/iliyamo/ticket-marketplace/internal/logging"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindUnauthorized:         http.StatusUnauthorized,
	apperr.KindForbidden:            http.StatusForbidden,
	apperr.KindNotFound:             http.StatusNotFound,
	apperr.KindValidation:           http.StatusBadRequest,
	apperr.KindExpired:              http.StatusBadRequest,
	apperr.KindOutOfStock:           http.StatusBadRequest,
	apperr.KindInsufficientStock:    http.StatusBadRequest,
	apperr.KindConflict:             http.StatusConflict,
	apperr.KindRateLimited:          http.StatusTooManyRequests,
	apperr.KindExternalLookupFailed: http.StatusBadGateway,
	apperr.KindUnexpected:           http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

// HTTPErrorHandler renders every error returned by handlers and middleware
// as an envelope. Causes of unexpected errors are logged, never returned.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, code, msg := describe(err)
	entry := logging.FromContext(c.Request().Context())
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("request error")
	} else {
		entry.WithField("error", code).Debug(msg)
	}

	body := envelope{Success: false, Message: msg, Error: code}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		entry.WithError(err).Warn("write error response")
	}
}

func describe(err error) (status int, code, msg string) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		status = StatusFor(ae.Kind)
		msg = ae.Message
		if ae.Kind == apperr.KindUnexpected {
			msg = "internal server error"
		}
		return status, string(ae.Kind), msg
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		return he.Code, httpCode(he.Code), msg
	}
	return http.StatusInternalServerError, string(apperr.KindUnexpected), "internal server error"
}

func httpCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return string(apperr.KindNotFound)
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusBadRequest:
		return string(apperr.KindValidation)
	case http.StatusUnauthorized:
		return string(apperr.KindUnauthorized)
	case http.StatusForbidden:
		return string(apperr.KindForbidden)
	}
	return "http_" + strconv.Itoa(status)
}

// bind decodes the request body, turning decode errors into validation
// failures.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

// idParam parses a positive numeric path parameter.
func idParam(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid " + name)
	}
	return id, nil
}

// emailParam returns the unescaped :email path parameter.
func emailParam(c echo.Context) string {
	raw := c.Param("email")
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

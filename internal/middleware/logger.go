package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/ticket-marketplace/internal/logging"
	"github.com/iliyamo/ticket-marketplace/internal/metrics"
)

// CorrelationIDHeader is read from and echoed on every request.
const CorrelationIDHeader = "Correlation-ID"

// RequestLogger assigns a correlation id, stores a request-scoped logrus
// entry in the context and logs one line per request.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(CorrelationIDHeader)
			if id == "" {
				id = req.Header.Get(echo.HeaderXRequestID)
			}
			if id == "" {
				id = shortuuid.New()
			}
			c.Response().Header().Set(CorrelationIDHeader, id)

			entry := logrus.WithFields(logrus.Fields{
				"correlation_id": id,
				"method":         req.Method,
				"path":           req.URL.Path,
			})
			ctx := logging.ContextWithCorrelationID(logging.ToContext(req.Context(), entry), id)
			c.SetRequest(req.WithContext(ctx))

			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			latency := time.Since(start)
			status := c.Response().Status

			metrics.HTTPRequestDuration.
				WithLabelValues(req.Method, c.Path(), strconv.Itoa(status)).
				Observe(latency.Seconds())

			fields := entry.WithFields(logrus.Fields{
				"status":     status,
				"latency_ms": latency.Milliseconds(),
				"bytes_out":  c.Response().Size,
			})
			switch {
			case status >= 500:
				fields.Error("request failed")
			case status >= 400:
				fields.Info("request rejected")
			default:
				fields.Debug("request served")
			}
			return nil
		}
	}
}

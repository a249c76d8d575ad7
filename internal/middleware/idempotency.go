package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-marketplace/internal/apperr"
	"github.com/iliyamo/ticket-marketplace/internal/logging"
)

// IdempotencyHeader names the client supplied request key.
const IdempotencyHeader = "Idempotency-Key"

const (
	idemPrefix  = "idem"
	idemPending = "pending"
	maxKeyLen   = 128
)

// Idempotency makes a retried POST return the first response instead of
// repeating its side effects. Keys are scoped to the caller. While the first
// request is still running a retry gets 409. Failed requests (5xx or an
// error) release the key so the client may try again. Requests without the
// header are not affected.
func Idempotency(rdb *redis.Client, ttl time.Duration) echo.MiddlewareFunc {
	if rdb == nil {
		return passThrough
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(IdempotencyHeader)
			if raw == "" {
				return next(c)
			}
			if len(raw) > maxKeyLen {
				return apperr.Validation("Idempotency-Key is too long")
			}
			ctx := c.Request().Context()
			key := idempotencyKey(c, raw)

			ok, err := rdb.SetNX(ctx, key, idemPending, ttl).Result()
			if err != nil {
				logging.FromContext(ctx).WithError(err).Warn("idempotency store unavailable")
				return next(c)
			}
			if !ok {
				stored, err := rdb.Get(ctx, key).Bytes()
				if err != nil || string(stored) == idemPending {
					return apperr.Conflict("a request with this Idempotency-Key is still in progress")
				}
				if s, ok := decodeStored(stored); ok {
					c.Response().Header().Set("Idempotent-Replayed", "true")
					return s.replay(c, "")
				}
				return apperr.Conflict("Idempotency-Key was already used")
			}

			bg := context.WithoutCancel(ctx)
			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				_ = rdb.Del(bg, key).Err()
				return err
			}
			if rec.status >= http.StatusInternalServerError {
				_ = rdb.Del(bg, key).Err()
				return nil
			}
			payload, err := json.Marshal(storedResponse{
				Status:      rec.status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.buf.Bytes(),
			})
			if err != nil || !json.Valid(rec.buf.Bytes()) {
				_ = rdb.Del(bg, key).Err()
				return nil
			}
			_ = rdb.Set(bg, key, payload, ttl).Err()
			return nil
		}
	}
}

func idempotencyKey(c echo.Context, raw string) string {
	return idemPrefix + ":" + callerKeyPart(c) + ":" + c.Request().Method + ":" + c.Path() + ":" + raw
}

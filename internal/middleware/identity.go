package middleware

// identity.go holds the request-scoped caller set by JWTAuth.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-marketplace/internal/policy"
)

const callerKey = "caller"

// CallerFrom returns the authenticated caller, or nil on public routes.
func CallerFrom(c echo.Context) *policy.Caller {
	if v, ok := c.Get(callerKey).(*policy.Caller); ok {
		return v
	}
	return nil
}

// SetCaller stores the caller on the request context.
func SetCaller(c echo.Context, caller *policy.Caller) { c.Set(callerKey, caller) }

// callerKeyPart identifies the caller in Redis keys. Anonymous requests
// share the "anon" bucket.
func callerKeyPart(c echo.Context) string {
	if caller := CallerFrom(c); caller != nil && caller.Email != "" {
		return caller.Email
	}
	return "anon"
}

package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/iliyamo/ticket-marketplace/internal/apperr"
	"github.com/iliyamo/ticket-marketplace/internal/policy"
)

// RequireRole aborts with 403 unless the caller's role is one of roles. It
// must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller := CallerFrom(c)
			if caller == nil {
				return apperr.Unauthorized("authentication required")
			}
			if !lo.Contains(roles, caller.Role) {
				return apperr.Forbidden("insufficient role")
			}
			return next(c)
		}
	}
}

// Allow gates a route on the roles the policy admits for action. Ownership
// is checked later by the service once the resource is loaded.
func Allow(action policy.Action) echo.MiddlewareFunc {
	return RequireRole(policy.RolesFor(action)...)
}

package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-marketplace/internal/apperr"
	"github.com/iliyamo/ticket-marketplace/internal/logging"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/policy"
	"github.com/iliyamo/ticket-marketplace/internal/utils"
)

// UserLookup loads the account behind a token.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// JWTAuth validates the Bearer access token and resolves the caller. The
// token only proves identity: the role is read from storage on every
// request so role changes and fraud marking take effect immediately.
func JWTAuth(secret string, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return apperr.Unauthorized("missing bearer token")
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return apperr.Unauthorized("invalid token")
			}

			ctx := c.Request().Context()
			u, err := users.GetByID(ctx, claims.UserID)
			if err != nil || u.Email != claims.Email {
				logging.FromContext(ctx).WithField("user_id", claims.UserID).Debug("token subject no longer valid")
				return apperr.Unauthorized("invalid token")
			}

			caller := &policy.Caller{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
			SetCaller(c, caller)
			entry := logging.FromContext(ctx).WithField("caller", caller.Email)
			c.SetRequest(c.Request().WithContext(logging.ToContext(ctx, entry)))
			return next(c)
		}
	}
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-marketplace/internal/apperr"
	"github.com/iliyamo/ticket-marketplace/internal/config"
	"github.com/iliyamo/ticket-marketplace/internal/logging"
	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/repository"
	"github.com/iliyamo/ticket-marketplace/internal/utils"
)

// Accounts is the user storage the auth endpoints need.
type Accounts interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// RefreshTokens stores hashed refresh tokens.
type RefreshTokens interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	cfg    config.Config
	users  Accounts
	tokens RefreshTokens
	now    func() time.Time
}

func NewAuthHandler(cfg config.Config, users Accounts, tokens RefreshTokens) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, tokens: tokens, now: func() time.Time { return time.Now().UTC() }}
}

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    *model.User `json:"user"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

// Register creates a plain user account and signs it in. Roles other than
// user are only reachable through vendor requests or an admin.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Email = repository.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return apperr.Validation("a valid email is required")
	}
	if len(req.Password) < utils.MinPasswordLen {
		return apperr.Validation("password must be at least 6 characters")
	}
	if req.Name == "" {
		req.Name = strings.SplitN(req.Email, "@", 2)[0]
	}

	hash, err := utils.HashPassword(req.Password, h.cfg.BcryptCost)
	if err != nil {
		return apperr.Unexpected("hash password", err)
	}
	ctx := c.Request().Context()
	u := &model.User{Email: req.Email, Name: req.Name, PhotoURL: strings.TrimSpace(req.PhotoURL), PasswordHash: hash, Role: model.RoleUser}
	if err := h.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return apperr.Conflict("email already registered")
		}
		return apperr.Unexpected("create user", err)
	}
	logging.FromContext(ctx).WithField("user", u.Email).Info("user registered")

	resp, err := h.issue(ctx, u)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "registered", resp)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Email = repository.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return apperr.Validation("email and password are required")
	}

	ctx := c.Request().Context()
	u, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.Unauthorized("invalid credentials")
		}
		return apperr.Unexpected("load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return apperr.Unauthorized("invalid credentials")
	}

	resp, err := h.issue(ctx, u)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", resp)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	hash, u, err := h.redeem(c)
	if err != nil {
		return err
	}
	if err := h.tokens.RevokeByHash(ctx, hash); err != nil {
		return apperr.Unexpected("revoke refresh token", err)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", resp)
}

// RefreshAccess issues a new access token and keeps the refresh token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	_, u, err := h.redeem(c)
	if err != nil {
		return err
	}
	access, err := utils.NewAccessToken(h.cfg.JWTSecret, u.ID, u.Email, h.cfg.AccessTTLMin)
	if err != nil {
		return apperr.Unexpected("issue access token", err)
	}
	return respond(c, http.StatusOK, "", map[string]tokenPart{"access": {Token: access.Token, Expires: access.Exp}})
}

// Logout revokes the refresh token in the body, or every session of the
// bearer when no body token is sent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)
	ctx := c.Request().Context()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.tokens.ValidateRefresh(ctx, hash, h.now()); err != nil {
			return apperr.Unauthorized("invalid refresh token")
		}
		if err := h.tokens.RevokeByHash(ctx, hash); err != nil {
			return apperr.Unexpected("revoke refresh token", err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return apperr.Validation("provide an Authorization header or refresh_token")
	}
	claims, err := utils.ParseAccessToken(h.cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return apperr.Unauthorized("invalid token")
	}
	if err := h.tokens.RevokeAllForUser(ctx, claims.UserID); err != nil {
		return apperr.Unexpected("revoke sessions", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's account, including the role read from storage.
func (h *AuthHandler) Me(c echo.Context) error {
	caller := middleware.CallerFrom(c)
	if caller == nil {
		return apperr.Unauthorized("authentication required")
	}
	u, err := h.users.GetByID(c.Request().Context(), caller.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.Unauthorized("account no longer exists")
		}
		return apperr.Unexpected("load user", err)
	}
	return respond(c, http.StatusOK, "", u)
}

// redeem validates the refresh token in the body and loads its owner.
func (h *AuthHandler) redeem(c echo.Context) (string, *model.User, error) {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return "", nil, apperr.Validation("refresh_token required")
	}
	ctx := c.Request().Context()
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))
	userID, err := h.tokens.ValidateRefresh(ctx, hash, h.now())
	if err != nil {
		if errors.Is(err, repository.ErrTokenInvalid) {
			return "", nil, apperr.Unauthorized("invalid refresh token")
		}
		return "", nil, apperr.Unexpected("validate refresh token", err)
	}
	u, err := h.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, apperr.Unauthorized("invalid refresh token")
		}
		return "", nil, apperr.Unexpected("load user", err)
	}
	return hash, u, nil
}

func (h *AuthHandler) issue(ctx context.Context, u *model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.cfg.JWTSecret, u.ID, u.Email, h.cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, apperr.Unexpected("issue access token", err)
	}
	refresh, err := utils.NewRefreshToken(h.cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, apperr.Unexpected("issue refresh token", err)
	}
	if err := h.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, apperr.Unexpected("store refresh token", err)
	}
	return authResp{
		User:    u,
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

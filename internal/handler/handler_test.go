package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-marketplace/internal/apperr"
	"github.com/iliyamo/ticket-marketplace/internal/config"
	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/policy"
	"github.com/iliyamo/ticket-marketplace/internal/repository"
)

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string, hdr http.Header) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range hdr {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var r response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	}
	return rec, r
}

// asCaller injects a caller the way JWTAuth would.
func asCaller(caller *policy.Caller) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			middleware.SetCaller(c, caller)
			return next(c)
		}
	}
}

func TestHTTPErrorHandlerStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.Validation("bad"), http.StatusBadRequest, "validation"},
		{apperr.Expired("gone"), http.StatusBadRequest, "expired"},
		{apperr.OutOfStock("none"), http.StatusBadRequest, "out_of_stock"},
		{apperr.InsufficientStock("few"), http.StatusBadRequest, "insufficient_stock"},
		{apperr.Unauthorized("who"), http.StatusUnauthorized, "unauthorized"},
		{apperr.Forbidden("no"), http.StatusForbidden, "forbidden"},
		{apperr.NotFound("missing"), http.StatusNotFound, "not_found"},
		{apperr.Conflict("again"), http.StatusConflict, "conflict"},
		{apperr.RateLimited("slow"), http.StatusTooManyRequests, "rate_limited"},
		{apperr.ExternalLookupFailed("stripe", errors.New("down")), http.StatusBadGateway, "external_lookup_failed"},
		{errors.New("boom"), http.StatusInternalServerError, "unexpected"},
		{echo.ErrNotFound, http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		e := newEcho()
		e.GET("/", func(c echo.Context) error { return tc.err })
		rec, body := do(t, e, http.MethodGet, "/", "", nil)
		assert.Equal(t, tc.status, rec.Code, tc.code)
		assert.False(t, body.Success)
		assert.Equal(t, tc.code, body.Error)
	}
}

func TestUnexpectedErrorHidesCause(t *testing.T) {
	e := newEcho()
	e.GET("/", func(c echo.Context) error { return apperr.Unexpected("db", errors.New("password=hunter2")) })
	rec, body := do(t, e, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", body.Message)
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestHealth(t *testing.T) {
	e := newEcho()
	e.GET("/healthz", Health(pinger{}))
	e.GET("/down", Health(pinger{err: errors.New("refused")}))

	rec, body := do(t, e, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)

	rec, _ = do(t, e, http.MethodGet, "/down", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

// ----- auth -----

type memAccounts struct {
	mu    sync.Mutex
	users map[string]*model.User
	next  uint64
}

func (m *memAccounts) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = map[string]*model.User{}
	}
	if _, ok := m.users[u.Email]; ok {
		return repository.ErrEmailExists
	}
	m.next++
	u.ID = m.next
	cp := *u
	m.users[u.Email] = &cp
	return nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, repository.ErrUserNotFound
}

func (m *memAccounts) GetByID(_ context.Context, id uint64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type memTokens struct {
	mu      sync.Mutex
	byHash  map[string]uint64
	expires map[string]time.Time
	revoked map[string]bool
}

func newMemTokens() *memTokens {
	return &memTokens{byHash: map[string]uint64{}, expires: map[string]time.Time{}, revoked: map[string]bool{}}
}

func (m *memTokens) StoreRefresh(_ context.Context, userID uint64, hash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byHash[hash] = userID
	m.expires[hash] = exp
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string, now time.Time) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byHash[hash]
	if !ok || m.revoked[hash] || !now.Before(m.expires[hash]) {
		return 0, repository.ErrTokenInvalid
	}
	return id, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[hash] = true
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, id := range m.byHash {
		if id == userID {
			m.revoked[h] = true
		}
	}
	return nil
}

func authFixture() (*echo.Echo, *memAccounts) {
	cfg := config.Config{JWTSecret: "s3cret", AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: 4}
	accounts := &memAccounts{}
	h := NewAuthHandler(cfg, accounts, newMemTokens())
	e := newEcho()
	e.POST("/auth/register", h.Register)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/refresh", h.Refresh)
	e.POST("/auth/refresh-access", h.RefreshAccess)
	e.POST("/auth/logout", h.Logout)
	e.GET("/me", h.Me, middleware.JWTAuth(cfg.JWTSecret, accounts))
	return e, accounts
}

type authData struct {
	User    model.User `json:"user"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
}

func TestRegisterLoginMe(t *testing.T) {
	e, accounts := authFixture()

	rec, body := do(t, e, http.MethodPost, "/auth/register",
		`{"email":" Alice@Example.com ","password":"secret1","name":"Alice","role":"admin"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg authData
	require.NoError(t, json.Unmarshal(body.Data, &reg))
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.Equal(t, model.RoleUser, reg.User.Role, "registration never grants elevated roles")
	assert.NotContains(t, rec.Body.String(), "password_hash")

	rec, body = do(t, e, http.MethodPost, "/auth/register", `{"email":"alice@example.com","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"wrong!!"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = do(t, e, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"secret1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var login authData
	require.NoError(t, json.Unmarshal(body.Data, &login))

	// role changes take effect without a new token
	accounts.users["alice@example.com"].Role = model.RoleVendor
	rec, body = do(t, e, http.MethodGet, "/me", "", http.Header{echo.HeaderAuthorization: {"Bearer " + login.Access.Token}})
	require.Equal(t, http.StatusOK, rec.Code)
	var me model.User
	require.NoError(t, json.Unmarshal(body.Data, &me))
	assert.Equal(t, model.RoleVendor, me.Role)

	rec, _ = do(t, e, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	e, _ := authFixture()
	rec, _ := do(t, e, http.MethodPost, "/auth/register", `{"email":"nope","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, e, http.MethodPost, "/auth/register", `{"email":"a@b.c","password":"123"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, e, http.MethodPost, "/auth/register", `{"email":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	e, _ := authFixture()
	_, body := do(t, e, http.MethodPost, "/auth/register", `{"email":"bob@example.com","password":"secret1"}`, nil)
	var reg authData
	require.NoError(t, json.Unmarshal(body.Data, &reg))
	first := `{"refresh_token":"` + reg.Refresh.Token + `"}`

	rec, _ := do(t, e, http.MethodPost, "/auth/refresh-access", first, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = do(t, e, http.MethodPost, "/auth/refresh", first, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated authData
	require.NoError(t, json.Unmarshal(body.Data, &rotated))

	rec, _ = do(t, e, http.MethodPost, "/auth/refresh", first, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "rotated token is revoked")

	second := `{"refresh_token":"` + rotated.Refresh.Token + `"}`
	rec, _ = do(t, e, http.MethodPost, "/auth/logout", second, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = do(t, e, http.MethodPost, "/auth/refresh", second, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutWithBearerRevokesAllSessions(t *testing.T) {
	e, _ := authFixture()
	_, body := do(t, e, http.MethodPost, "/auth/register", `{"email":"carol@example.com","password":"secret1"}`, nil)
	var reg authData
	require.NoError(t, json.Unmarshal(body.Data, &reg))

	rec, _ := do(t, e, http.MethodPost, "/auth/logout", "", http.Header{echo.HeaderAuthorization: {"Bearer " + reg.Access.Token}})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/auth/refresh", `{"refresh_token":"`+reg.Refresh.Token+`"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

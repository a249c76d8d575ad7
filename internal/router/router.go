// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-marketplace/internal/config"
	"github.com/iliyamo/ticket-marketplace/internal/handler"
	"github.com/iliyamo/ticket-marketplace/internal/metrics"
	"github.com/iliyamo/ticket-marketplace/internal/middleware"
)

// Deps is everything the routes need.
type Deps struct {
	Cfg       config.Config
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Redis     *redis.Client // nil disables cache, rate limit and idempotency keys
	DB        handler.Pinger
	Users     middleware.UserLookup

	Auth     *handler.AuthHandler
	Tickets  *handler.TicketHandler
	Bookings *handler.BookingHandler
	Payments *handler.PaymentHandler
	Accounts *handler.UserHandler
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  []string{d.Cfg.ClientURL},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.IdempotencyHeader, middleware.CorrelationIDHeader},
		ExposeHeaders: []string{middleware.CorrelationIDHeader, "Retry-After"},
	}))
	e.Use(echomw.BodyLimit("1M"))

	RegisterPublic(e, d)
	RegisterAuth(e, d)
	RegisterUser(e, d)
	RegisterVendor(e, d)
	RegisterAdmin(e, d)
	return e
}

// RegisterPublic registers unauthenticated endpoints. Ticket listings go
// through the response cache.
func RegisterPublic(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	cached := middleware.ResponseCache(d.Cache, d.Redis)
	e.GET("/tickets", d.Tickets.Search, cached)
	e.GET("/tickets/advertised", d.Tickets.Advertised, cached)
	e.GET("/tickets/latest", d.Tickets.Latest, cached)
	e.GET("/tickets/:id", d.Tickets.Get, cached)
}

// RegisterAuth registers token endpoints plus GET /me.
func RegisterAuth(e *echo.Echo, d Deps) {
	g := e.Group("/auth")
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/refresh", d.Auth.Refresh)
	g.POST("/refresh-access", d.Auth.RefreshAccess)
	g.POST("/logout", d.Auth.Logout)

	e.GET("/me", d.Auth.Me, middleware.JWTAuth(d.Cfg.JWTSecret, d.Users))
}

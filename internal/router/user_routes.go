package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/policy"
)

// RegisterUser registers the buyer endpoints. Booking and checkout are rate
// limited and POST /bookings honours Idempotency-Key.
func RegisterUser(e *echo.Echo, d Deps) {
	auth := middleware.JWTAuth(d.Cfg.JWTSecret, d.Users)
	limited := middleware.RateLimit(d.RateLimit, d.Redis)

	e.POST("/bookings", d.Bookings.Create,
		auth, middleware.Allow(policy.ActBookTicket), limited, middleware.Idempotency(d.Redis, d.Cfg.IdempotencyTTL))
	e.GET("/bookings", d.Bookings.ListMine, auth, middleware.Allow(policy.ActViewOwnBookings))

	e.POST("/create-checkout-session", d.Payments.CreateCheckout, auth, middleware.Allow(policy.ActPayBooking), limited)
	e.POST("/payment/success", d.Payments.Confirm, auth, middleware.Allow(policy.ActPayBooking))
	e.GET("/payments", d.Payments.ListMine, auth, middleware.Allow(policy.ActViewOwnPayments))

	e.POST("/vendor-requests", d.Accounts.RequestVendor, auth, middleware.Allow(policy.ActRequestVendor))
}

package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/policy"
)

// RegisterVendor registers ticket management and booking decisions. Fraud
// accounts keep read access to their listings and bookings; the policy turns
// away their writes, with a specific message on ticket creation.
func RegisterVendor(e *echo.Echo, d Deps) {
	auth := middleware.JWTAuth(d.Cfg.JWTSecret, d.Users)

	g := e.Group("/vendor", auth, middleware.RequireRole(model.RoleVendor, model.RoleFraud))
	g.POST("/tickets", d.Tickets.Create)
	g.GET("/tickets", d.Tickets.ListMine, middleware.Allow(policy.ActViewVendorData))
	g.PATCH("/tickets/:id", d.Tickets.Update, middleware.Allow(policy.ActManageTicket))
	g.DELETE("/tickets/:id", d.Tickets.Delete, middleware.Allow(policy.ActManageTicket))
	g.GET("/bookings", d.Bookings.ListForVendor, middleware.Allow(policy.ActViewVendorData))
	g.GET("/overview", d.Tickets.Overview, middleware.Allow(policy.ActViewVendorData))

	decide := middleware.Allow(policy.ActDecideBooking)
	e.PATCH("/bookings/accept/:id", d.Bookings.Accept, auth, decide)
	e.PATCH("/bookings/reject/:id", d.Bookings.Reject, auth, decide)
}

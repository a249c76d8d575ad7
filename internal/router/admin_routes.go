package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/policy"
)

// RegisterAdmin registers moderation and account administration.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/admin", middleware.JWTAuth(d.Cfg.JWTSecret, d.Users), middleware.RequireRole(model.RoleAdmin))

	tickets := middleware.Allow(policy.ActModerateTickets)
	g.GET("/tickets", d.Tickets.ListAll, tickets)
	g.PATCH("/tickets/:id/approve", d.Tickets.Approve, tickets)
	g.PATCH("/tickets/:id/reject", d.Tickets.RejectTicket, tickets)
	g.PATCH("/tickets/:id/advertise", d.Tickets.Advertise, tickets)

	users := middleware.Allow(policy.ActManageUsers)
	g.GET("/users", d.Accounts.List, users)
	g.PATCH("/users/:email/role", d.Accounts.SetRole, users)
	g.PATCH("/users/:email/fraud", d.Accounts.MarkFraud, users)

	asks := middleware.Allow(policy.ActReviewVendorAsks)
	g.GET("/vendor-requests", d.Accounts.ListVendorRequests, asks)
	g.PATCH("/vendor-requests/:id/approve", d.Accounts.ApproveVendorRequest, asks)
	g.PATCH("/vendor-requests/:id/reject", d.Accounts.RejectVendorRequest, asks)
}

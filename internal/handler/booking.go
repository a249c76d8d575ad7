package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-marketplace/internal/middleware"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/policy"
)

// Bookings is the booking ledger.
type Bookings interface {
	CreateBooking(ctx context.Context, caller *policy.Caller, ticketID uint64, quantity int) (*model.Booking, error)
	ListForUser(ctx context.Context, caller *policy.Caller, userEmail string) ([]model.Booking, error)
	ListForVendor(ctx context.Context, caller *policy.Caller) ([]model.Booking, error)
	SetBookingStatus(ctx context.Context, caller *policy.Caller, bookingID uint64, status string) (*model.Booking, error)
}

type BookingHandler struct {
	bookings Bookings
}

func NewBookingHandler(b Bookings) *BookingHandler { return &BookingHandler{bookings: b} }

type createBookingReq struct {
	TicketID uint64 `json:"ticket_id"`
	Quantity int    `json:"quantity"`
}

// Create books quantity seats of a ticket for the caller.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := bind(c, &req); err != nil {
		return err
	}
	b, err := h.bookings.CreateBooking(c.Request().Context(), middleware.CallerFrom(c), req.TicketID, req.Quantity)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "booking created", b)
}

// ListMine lists the caller's bookings. ?userEmail= must name the caller.
func (h *BookingHandler) ListMine(c echo.Context) error {
	list, err := h.bookings.ListForUser(c.Request().Context(), middleware.CallerFrom(c), c.QueryParam("userEmail"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", list)
}

// ListForVendor lists bookings on the caller's tickets.
func (h *BookingHandler) ListForVendor(c echo.Context) error {
	list, err := h.bookings.ListForVendor(c.Request().Context(), middleware.CallerFrom(c))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", list)
}

// Accept and Reject decide a pending booking.
func (h *BookingHandler) Accept(c echo.Context) error { return h.decide(c, model.BookingAccepted) }

func (h *BookingHandler) Reject(c echo.Context) error { return h.decide(c, model.BookingRejected) }

func (h *BookingHandler) decide(c echo.Context, status string) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	b, err := h.bookings.SetBookingStatus(c.Request().Context(), middleware.CallerFrom(c), id, status)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "booking "+status, b)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/ticket-marketplace/internal/apperr"
	"github.com/iliyamo/ticket-marketplace/internal/logging"
	"github.com/iliyamo/ticket-marketplace/internal/metrics"
	"github.com/iliyamo/ticket-marketplace/internal/model"
	"github.com/iliyamo/ticket-marketplace/internal/policy"
	"github.com/iliyamo/ticket-marketplace/internal/queue"
	"github.com/iliyamo/ticket-marketplace/internal/repository"
)

// TicketReader loads a single ticket.
type TicketReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Ticket, error)
}

// BookingReader loads a single booking.
type BookingReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
}

// BookingStore is the booking ledger's storage.
type BookingStore interface {
	BookingReader
	CreateWithDecrement(ctx context.Context, b *model.Booking) error
	ListByUser(ctx context.Context, userEmail string) ([]model.Booking, error)
	ListByVendor(ctx context.Context, vendorEmail string) ([]model.Booking, error)
	UpdateStatus(ctx context.Context, id uint64, status string) error
}

// BookingService runs the booking lifecycle.
type BookingService struct {
	tickets  TicketReader
	bookings BookingStore
	events   EventPublisher
	loc      *time.Location
	now      Clock
}

// NewBookingService wires the ledger. loc is the zone departure dates and
// times are interpreted in; events may be nil.
func NewBookingService(tickets TicketReader, bookings BookingStore, events EventPublisher, loc *time.Location) *BookingService {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingService{tickets: tickets, bookings: bookings, events: events, loc: loc, now: systemClock}
}

// WithClock replaces the time source.
func (s *BookingService) WithClock(c Clock) *BookingService { s.now = c; return s }

// CreateBooking books quantity seats on a ticket for the caller.
//
// The checks before the write give precise errors for the common cases; the
// conditional decrement inside the booking transaction is what actually
// prevents overselling when requests race.
func (s *BookingService) CreateBooking(ctx context.Context, caller *policy.Caller, ticketID uint64, quantity int) (*model.Booking, error) {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActBookTicket); err != nil {
		return nil, err
	}
	b, err := s.createBooking(ctx, caller.Email, ticketID, quantity)
	metrics.BookingsTotal.WithLabelValues(bookingResult(err)).Inc()
	if err != nil {
		return nil, err
	}
	metrics.TicketsSold.Add(float64(b.Quantity))

	logging.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": b.ID,
		"ticket_id":  b.TicketID,
		"quantity":   b.Quantity,
		"user_email": b.UserEmail,
	}).Info("booking created")

	publish(ctx, s.events, queue.TypeBookingCreated, queue.BookingCreated{
		BookingID:       b.ID,
		TicketID:        b.TicketID,
		UserEmail:       b.UserEmail,
		VendorEmail:     b.VendorEmail,
		Quantity:        b.Quantity,
		TotalPriceCents: b.TotalPriceCents,
	}, b.BookedAt)
	return b, nil
}

func (s *BookingService) createBooking(ctx context.Context, userEmail string, ticketID uint64, quantity int) (*model.Booking, error) {
	if quantity <= 0 {
		return nil, apperr.Validation("quantity must be greater than zero")
	}
	if ticketID == 0 {
		return nil, apperr.Validation("ticket id is required")
	}

	t, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, translate(err, "load ticket")
	}
	if !t.IsBookable() {
		return nil, apperr.NotFound("ticket not found")
	}

	now := s.now()
	departure, err := t.ComputeDeparture(s.loc)
	if err != nil {
		return nil, apperr.Unexpected("ticket has an invalid departure", err)
	}
	if !departure.After(now) {
		return nil, apperr.Expired("departure time has passed")
	}
	if t.Quantity == 0 {
		return nil, apperr.OutOfStock("ticket is sold out")
	}
	if quantity > t.Quantity {
		return nil, apperr.InsufficientStock(fmt.Sprintf("only %d tickets left", t.Quantity))
	}

	b := model.NewBookingSnapshot(t, departure, userEmail, quantity, now)
	if err := s.bookings.CreateWithDecrement(ctx, &b); err != nil {
		return nil, translate(err, "create booking")
	}
	return &b, nil
}

func bookingResult(err error) string {
	if err == nil {
		return "created"
	}
	switch apperr.KindOf(err) {
	case apperr.KindUnexpected:
		return "error"
	case apperr.KindExpired:
		return "expired"
	case apperr.KindOutOfStock:
		return "out_of_stock"
	case apperr.KindInsufficientStock:
		return "insufficient_stock"
	case apperr.KindNotFound:
		return "not_found"
	default:
		return "invalid"
	}
}

// ListForUser returns the bookings of userEmail, which must be the caller.
// An empty userEmail means the caller's own.
func (s *BookingService) ListForUser(ctx context.Context, caller *policy.Caller, userEmail string) ([]model.Booking, error) {
	owner := repository.NormalizeEmail(userEmail)
	if owner == "" && caller != nil {
		owner = caller.Email
	}
	if err := policy.Evaluate(caller, policy.Resource{OwnerEmail: owner}, policy.ActViewOwnBookings); err != nil {
		return nil, err
	}
	out, err := s.bookings.ListByUser(ctx, owner)
	return out, translate(err, "list bookings")
}

// ListForVendor returns bookings placed on the caller's tickets.
func (s *BookingService) ListForVendor(ctx context.Context, caller *policy.Caller) ([]model.Booking, error) {
	if err := policy.Evaluate(caller, policy.Resource{}, policy.ActViewVendorData); err != nil {
		return nil, err
	}
	out, err := s.bookings.ListByVendor(ctx, caller.Email)
	return out, translate(err, "list bookings")
}

// SetBookingStatus lets the vendor of the booked ticket accept or reject a
// Pending booking. Repeating the current decision is a no-op.
func (s *BookingService) SetBookingStatus(ctx context.Context, caller *policy.Caller, bookingID uint64, status string) (*model.Booking, error) {
	if status != model.BookingAccepted && status != model.BookingRejected {
		return nil, apperr.Validation("status must be accepted or rejected")
	}
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, translate(err, "load booking")
	}
	if err := policy.Evaluate(caller, policy.Resource{OwnerEmail: b.VendorEmail}, policy.ActDecideBooking); err != nil {
		return nil, err
	}
	if err := s.bookings.UpdateStatus(ctx, bookingID, status); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperr.Conflict(fmt.Sprintf("booking is %s; only Pending bookings can be accepted or rejected", b.Status))
		}
		return nil, translate(err, "update booking")
	}

	changed := b.Status != status
	b.Status = status
	if changed {
		logging.FromContext(ctx).WithFields(logrus.Fields{
			"booking_id": b.ID,
			"status":     status,
		}).Info("booking status changed")
		publish(ctx, s.events, queue.TypeBookingStatusChanged, queue.BookingStatusChanged{
			BookingID:   b.ID,
			Status:      status,
			VendorEmail: b.VendorEmail,
		}, s.now())
	}
	return b, nil
}

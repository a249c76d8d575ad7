package model

import "time"

// Booking statuses. Pending is capitalised as stored by the original product.
const (
	BookingPending  = "Pending"
	BookingAccepted = "accepted"
	BookingRejected = "rejected"
	BookingPaid     = "paid"
)

// Booking records a user's reservation against a ticket. The ticket fields are
// a snapshot taken when the booking is placed; later ticket edits do not
// change them.
//
// Fields:
//
//	TicketID        – ticket the booking was placed against.
//	VendorEmail     – owner of the ticket at booking time, used for vendor views.
//	UnitPriceCents  – ticket price at booking time.
//	TotalPriceCents – UnitPriceCents × Quantity.
//	Status          – Pending, accepted, rejected or paid.
type Booking struct {
	ID              uint64    `db:"id" json:"id"`
	TicketID        uint64    `db:"ticket_id" json:"ticket_id"`
	TicketTitle     string    `db:"ticket_title" json:"ticket_title"`
	From            string    `db:"from_location" json:"from"`
	To              string    `db:"to_location" json:"to"`
	Transport       string    `db:"transport" json:"transport"`
	DepartureDate   string    `db:"departure_date" json:"departure_date"`
	DepartureTime   string    `db:"departure_time" json:"departure_time"`
	DepartureAt     time.Time `db:"departure_at" json:"departure_at"`
	VendorEmail     string    `db:"vendor_email" json:"vendor_email"`
	UnitPriceCents  int64     `db:"unit_price_cents" json:"unit_price_cents"`
	Quantity        int       `db:"quantity" json:"quantity"`
	TotalPriceCents int64     `db:"total_price_cents" json:"total_price_cents"`
	UserEmail       string    `db:"user_email" json:"user_email"`
	Status          string    `db:"status" json:"status"`
	BookedAt        time.Time `db:"booked_at" json:"booked_at"`
}

// NewBookingSnapshot copies the ticket fields a booking keeps.
func NewBookingSnapshot(t *Ticket, departure time.Time, userEmail string, quantity int, now time.Time) Booking {
	return Booking{
		TicketID:        t.ID,
		TicketTitle:     t.Title,
		From:            t.From,
		To:              t.To,
		Transport:       t.Transport,
		DepartureDate:   t.DepartureDate,
		DepartureTime:   t.DepartureTime,
		DepartureAt:     departure,
		VendorEmail:     t.VendorEmail,
		UnitPriceCents:  t.PriceCents,
		Quantity:        quantity,
		TotalPriceCents: t.PriceCents * int64(quantity),
		UserEmail:       userEmail,
		Status:          BookingPending,
		BookedAt:        now,
	}
}

// VendorOverview summarises a vendor's sales.
type VendorOverview struct {
	TicketsAdded int   `db:"tickets_added" json:"tickets_added"`
	TicketsSold  int   `db:"tickets_sold" json:"tickets_sold"`
	RevenueCents int64 `db:"revenue_cents" json:"revenue_cents"`
}

// Package queue defines the domain events exchanged over RabbitMQ and the
// publisher and audit consumer that move them.
package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types double as routing keys on the events exchange.
const (
	TypeBookingCreated       = "booking.created"
	TypeBookingStatusChanged = "booking.status_changed"
	TypePaymentRecorded      = "payment.recorded"
	TypeVendorFlagged        = "vendor.fraud_marked"
)

// Event is the envelope every message carries.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEvent wraps payload in an envelope with a fresh id.
func NewEvent(eventType, correlationID string, payload any, now time.Time) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		OccurredAt:    now.UTC(),
		CorrelationID: correlationID,
		Payload:       body,
	}, nil
}

// BookingCreated is published after a booking and its stock decrement commit.
type BookingCreated struct {
	BookingID       uint64 `json:"booking_id"`
	TicketID        uint64 `json:"ticket_id"`
	UserEmail       string `json:"user_email"`
	VendorEmail     string `json:"vendor_email"`
	Quantity        int    `json:"quantity"`
	TotalPriceCents int64  `json:"total_price_cents"`
}

// BookingStatusChanged is published when a vendor accepts or rejects.
type BookingStatusChanged struct {
	BookingID   uint64 `json:"booking_id"`
	Status      string `json:"status"`
	VendorEmail string `json:"vendor_email"`
}

// PaymentRecorded is published once per new payment row.
type PaymentRecorded struct {
	PaymentID     uint64 `json:"payment_id"`
	TransactionID string `json:"transaction_id"`
	BookingID     uint64 `json:"booking_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	PayerEmail    string `json:"payer_email"`
}

// VendorFlagged is published when an admin marks a vendor as fraud.
type VendorFlagged struct {
	Email         string `json:"email"`
	TicketsHidden int64  `json:"tickets_hidden"`
}

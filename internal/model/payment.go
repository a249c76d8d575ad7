package model

import "time"

// Payment is one settled checkout, unique per external transaction id.
type Payment struct {
	ID            uint64    `db:"id" json:"id"`
	TransactionID string    `db:"transaction_id" json:"transaction_id"`
	BookingID     uint64    `db:"booking_id" json:"booking_id"`
	AmountCents   int64     `db:"amount_cents" json:"amount_cents"`
	Currency      string    `db:"currency" json:"currency"`
	PayerEmail    string    `db:"payer_email" json:"payer_email"`
	TicketTitle   string    `db:"ticket_title" json:"ticket_title"`
	PaidAt        time.Time `db:"paid_at" json:"paid_at"`
}

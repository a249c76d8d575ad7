// Package checkout talks to the hosted payment provider.
package checkout

import (
	"context"
	"errors"
)

// Metadata keys that tie a provider session back to a booking.
const (
	MetaBookingID   = "bookingId"
	MetaTicketTitle = "ticketTitle"
)

// ErrNotConfigured is returned when no provider credentials are set.
var ErrNotConfigured = errors.New("checkout provider is not configured")

// LineItem is the single item a session charges for.
type LineItem struct {
	Name            string
	UnitAmountCents int64
	Quantity        int64
	Currency        string
}

// SessionRequest describes a checkout to open.
type SessionRequest struct {
	Item       LineItem
	PayerEmail string
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
}

// Session is a newly opened checkout.
type Session struct {
	ID  string
	URL string
}

// CompletedSession is what the provider reports about a session.
type CompletedSession struct {
	ID            string
	TransactionID string
	AmountCents   int64
	Currency      string
	PayerEmail    string
	Metadata      map[string]string
	Paid          bool
}

// Provider opens and inspects hosted checkout sessions.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (CompletedSession, error)
}

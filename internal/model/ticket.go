package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Verification states set by administrators.
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

// Visibility states. Hidden tickets never appear in public listings.
const (
	TicketActive = "active"
	TicketHidden = "hidden"
)

// Transport modes accepted for a ticket route.
var TransportModes = []string{"bus", "train", "launch", "plane"}

// Layouts of the two schedule components stored on a ticket.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Ticket represents a vendor listing in the `tickets` table.
//
// Fields:
//
//	DepartureDate/DepartureTime – schedule components as entered by the vendor.
//	DepartureAt                 – both components combined; recomputed on every edit.
//	Quantity                    – remaining inventory, never negative.
//	VerificationStatus          – admin moderation state (pending/approved/rejected).
//	Status                      – active or hidden (fraud enforcement).
//	IsAdvertised                – shown on the home page, capped globally.
type Ticket struct {
	ID                 uint64     `db:"id" json:"id"`
	VendorEmail        string     `db:"vendor_email" json:"vendor_email"`
	VendorName         string     `db:"vendor_name" json:"vendor_name"`
	Title              string     `db:"title" json:"title"`
	From               string     `db:"from_location" json:"from"`
	To                 string     `db:"to_location" json:"to"`
	Transport          string     `db:"transport" json:"transport"`
	DepartureDate      string     `db:"departure_date" json:"departure_date"`
	DepartureTime      string     `db:"departure_time" json:"departure_time"`
	DepartureAt        time.Time  `db:"departure_at" json:"departure_at"`
	PriceCents         int64      `db:"price_cents" json:"price_cents"`
	Quantity           int        `db:"quantity" json:"quantity"`
	Perks              StringList `db:"perks" json:"perks"`
	ImageURL           string     `db:"image_url" json:"image_url"`
	VerificationStatus string     `db:"verification_status" json:"verification_status"`
	Status             string     `db:"status" json:"status"`
	IsAdvertised       bool       `db:"is_advertised" json:"is_advertised"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// IsRejected reports whether the ticket has been rejected by an admin.
// Rejected tickets cannot be edited or deleted.
func (t *Ticket) IsRejected() bool { return t.VerificationStatus == VerificationRejected }

// IsBookable reports whether the ticket is publicly listed.
func (t *Ticket) IsBookable() bool {
	return t.VerificationStatus == VerificationApproved && t.Status == TicketActive
}

// ComputeDeparture builds the departure instant from the ticket's own date and
// time components rather than the stored DepartureAt.
func (t *Ticket) ComputeDeparture(loc *time.Location) (time.Time, error) {
	return DepartureDateTime(t.DepartureDate, t.DepartureTime, loc)
}

// DepartureDateTime combines a YYYY-MM-DD date and an HH:MM (or HH:MM:SS) time
// in loc. A nil loc means UTC.
func DepartureDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, errors.New("departure date and time are required")
	}
	layout := DateLayout + " " + ClockLayout
	if strings.Count(clock, ":") == 2 {
		layout += ":05"
	}
	at, err := time.ParseInLocation(layout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid departure %q %q: %w", date, clock, err)
	}
	return at.UTC(), nil
}

// TicketFilter narrows the public ticket listing.
type TicketFilter struct {
	From      string
	To        string
	Transport string
	SortPrice string // "asc", "desc" or empty for newest first
	Page      int
	PageSize  int
}

// TicketPage is a page of tickets plus the total number of matches.
type TicketPage struct {
	Items    []Ticket `json:"items"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}

// StringList stores a list of strings as a JSON array column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported perks column type %T", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*l = out
	return nil
}

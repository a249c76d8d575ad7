package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ticket-marketplace/internal/model"
)

const bookingColumns = `id, ticket_id, ticket_title, from_location, to_location, transport,
	departure_date, departure_time, departure_at, vendor_email, unit_price_cents, quantity,
	total_price_cents, user_email, status, booked_at`

// BookingRepo persists bookings. Bookings are never deleted.
type BookingRepo struct{ db *sqlx.DB }

func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateWithDecrement takes b.Quantity seats from the ticket and inserts the
// booking in a single transaction. The decrement is a conditional UPDATE, so
// concurrent callers can never push the quantity below zero: whoever loses
// the race matches no row and gets ErrInsufficientStock with nothing written.
func (r *BookingRepo) CreateWithDecrement(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET quantity = quantity - ? WHERE id = ? AND quantity >= ?`,
		b.Quantity, b.TicketID, b.Quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientStock
	}

	res, err = tx.NamedExecContext(ctx, `INSERT INTO bookings
		(ticket_id, ticket_title, from_location, to_location, transport, departure_date,
		 departure_time, departure_at, vendor_email, unit_price_cents, quantity,
		 total_price_cents, user_email, status, booked_at)
		VALUES
		(:ticket_id, :ticket_title, :from_location, :to_location, :transport, :departure_date,
		 :departure_time, :departure_at, :vendor_email, :unit_price_cents, :quantity,
		 :total_price_cents, :user_email, :status, :booked_at)`, b)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	b.ID = uint64(id)
	return nil
}

// GetByID returns the booking or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	var b model.Booking
	err := r.db.GetContext(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userEmail string) ([]model.Booking, error) {
	out := []model.Booking{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_email = ? ORDER BY booked_at DESC, id DESC`,
		userEmail)
	return out, err
}

// ListByVendor returns bookings placed on the vendor's tickets, newest first.
func (r *BookingRepo) ListByVendor(ctx context.Context, vendorEmail string) ([]model.Booking, error) {
	out := []model.Booking{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+bookingColumns+` FROM bookings WHERE vendor_email = ? ORDER BY booked_at DESC, id DESC`,
		vendorEmail)
	return out, err
}

// UpdateStatus moves a Pending booking to status. Re-applying the status the
// booking already has succeeds without change; any other current status
// yields ErrConflict.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE id = ? AND status IN (?, ?)`,
		status, id, model.BookingPending, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

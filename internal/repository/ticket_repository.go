package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ticket-marketplace/internal/model"
)

const ticketColumns = `id, vendor_email, vendor_name, title, from_location, to_location, transport,
	departure_date, departure_time, departure_at, price_cents, quantity, perks, image_url,
	verification_status, status, is_advertised, created_at, updated_at`

// publicCond restricts a query to tickets anyone may see and book.
const publicCond = `verification_status = 'approved' AND status = 'active'`

// TicketRepo persists vendor listings in the `tickets` table.
type TicketRepo struct{ db *sqlx.DB }

func NewTicketRepo(db *sqlx.DB) *TicketRepo { return &TicketRepo{db: db} }

// Create inserts a new ticket and fills in its generated ID.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	res, err := r.db.NamedExecContext(ctx, `INSERT INTO tickets
		(vendor_email, vendor_name, title, from_location, to_location, transport,
		 departure_date, departure_time, departure_at, price_cents, quantity, perks, image_url,
		 verification_status, status, is_advertised)
		VALUES
		(:vendor_email, :vendor_name, :title, :from_location, :to_location, :transport,
		 :departure_date, :departure_time, :departure_at, :price_cents, :quantity, :perks, :image_url,
		 :verification_status, :status, :is_advertised)`, t)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByID returns the ticket or ErrTicketNotFound.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	err := r.db.GetContext(ctx, &t, `SELECT `+ticketColumns+` FROM tickets WHERE id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Update writes the vendor-editable fields and resets verification to
// pending. Rejected tickets are left untouched and ErrTicketLocked is
// returned.
func (r *TicketRepo) Update(ctx context.Context, t *model.Ticket) error {
	res, err := r.db.NamedExecContext(ctx, `UPDATE tickets SET
		title = :title, from_location = :from_location, to_location = :to_location,
		transport = :transport, departure_date = :departure_date, departure_time = :departure_time,
		departure_at = :departure_at, price_cents = :price_cents, quantity = :quantity,
		perks = :perks, image_url = :image_url,
		verification_status = 'pending', is_advertised = FALSE
		WHERE id = :id AND verification_status <> 'rejected'`, t)
	if err != nil {
		return err
	}
	return lockedUnlessAffected(res)
}

// Delete removes a ticket unless it has been rejected.
func (r *TicketRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tickets WHERE id = ? AND verification_status <> 'rejected'`, id)
	if err != nil {
		return err
	}
	return lockedUnlessAffected(res)
}

func lockedUnlessAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTicketLocked
	}
	return nil
}

// ListByVendor returns every ticket the vendor added, newest first.
func (r *TicketRepo) ListByVendor(ctx context.Context, vendorEmail string) ([]model.Ticket, error) {
	out := []model.Ticket{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+ticketColumns+` FROM tickets WHERE vendor_email = ? ORDER BY created_at DESC, id DESC`,
		vendorEmail)
	return out, err
}

// ListAll returns every ticket for moderation, newest first.
func (r *TicketRepo) ListAll(ctx context.Context) ([]model.Ticket, error) {
	out := []model.Ticket{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+ticketColumns+` FROM tickets ORDER BY created_at DESC, id DESC`)
	return out, err
}

// ListAdvertised returns the public advertised tickets.
func (r *TicketRepo) ListAdvertised(ctx context.Context, limit int) ([]model.Ticket, error) {
	out := []model.Ticket{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+ticketColumns+` FROM tickets WHERE is_advertised = TRUE AND `+publicCond+`
		ORDER BY updated_at DESC, id DESC LIMIT ?`, limit)
	return out, err
}

// ListLatest returns the most recently added public tickets.
func (r *TicketRepo) ListLatest(ctx context.Context, limit int) ([]model.Ticket, error) {
	out := []model.Ticket{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+ticketColumns+` FROM tickets WHERE `+publicCond+`
		ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	return out, err
}

// SetVerification records an admin decision. A ticket that is no longer
// approved also loses its advertised slot.
func (r *TicketRepo) SetVerification(ctx context.Context, id uint64, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tickets SET verification_status = ?,
			is_advertised = IF(? = 'approved', is_advertised, FALSE)
		WHERE id = ?`, status, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// SetAdvertised toggles the advertised flag. Turning it on is refused once
// limit tickets are already advertised. The count and the write run in one
// SERIALIZABLE transaction so two admins cannot both take the last slot.
func (r *TicketRepo) SetAdvertised(ctx context.Context, id uint64, advertise bool, limit int) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
		if isRetryable(err) {
			err = fmt.Errorf("%w: %v", ErrSerialization, err)
		}
	}()

	var cur struct {
		VerificationStatus string `db:"verification_status"`
		Status             string `db:"status"`
		IsAdvertised       bool   `db:"is_advertised"`
	}
	err = tx.GetContext(ctx, &cur,
		`SELECT verification_status, status, is_advertised FROM tickets WHERE id = ? FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTicketNotFound
	}
	if err != nil {
		return err
	}

	if advertise && !cur.IsAdvertised {
		if cur.VerificationStatus != model.VerificationApproved || cur.Status != model.TicketActive {
			return ErrNotAdvertisable
		}
		var n int
		if err = tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM tickets WHERE is_advertised = TRUE`); err != nil {
			return err
		}
		if n >= limit {
			return ErrAdvertiseLimit
		}
	}

	if _, err = tx.ExecContext(ctx, `UPDATE tickets SET is_advertised = ? WHERE id = ?`, advertise, id); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// VendorOverview aggregates a vendor's listings and paid sales.
func (r *TicketRepo) VendorOverview(ctx context.Context, vendorEmail string) (model.VendorOverview, error) {
	var ov model.VendorOverview
	err := r.db.GetContext(ctx, &ov, `SELECT
			(SELECT COUNT(*) FROM tickets WHERE vendor_email = ?) AS tickets_added,
			COALESCE(SUM(quantity), 0) AS tickets_sold,
			COALESCE(SUM(total_price_cents), 0) AS revenue_cents
		FROM bookings WHERE vendor_email = ? AND status = 'paid'`, vendorEmail, vendorEmail)
	return ov, err
}

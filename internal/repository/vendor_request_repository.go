package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ticket-marketplace/internal/model"
)

const vendorRequestColumns = `id, email, name, status, created_at, reviewed_at`

// VendorRequestRepo stores applications to become a vendor. The unique key
// on the generated pending_email column allows one open request per email.
type VendorRequestRepo struct{ db *sqlx.DB }

func NewVendorRequestRepo(db *sqlx.DB) *VendorRequestRepo { return &VendorRequestRepo{db: db} }

// Create files a pending request. ErrPendingRequest means one is already open.
func (r *VendorRequestRepo) Create(ctx context.Context, vr *model.VendorRequest) error {
	vr.Email = NormalizeEmail(vr.Email)
	vr.Status = model.RequestPending
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO vendor_requests (email, name, status) VALUES (?,?,?)", vr.Email, vr.Name, vr.Status)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrPendingRequest
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	vr.ID = uint64(id)
	return nil
}

// GetByID returns the request or ErrRequestNotFound.
func (r *VendorRequestRepo) GetByID(ctx context.Context, id uint64) (*model.VendorRequest, error) {
	var vr model.VendorRequest
	err := r.db.GetContext(ctx, &vr, "SELECT "+vendorRequestColumns+" FROM vendor_requests WHERE id=? LIMIT 1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &vr, nil
}

// List returns requests, pending first then newest first. An empty status
// returns all of them.
func (r *VendorRequestRepo) List(ctx context.Context, status string) ([]model.VendorRequest, error) {
	out := []model.VendorRequest{}
	q := "SELECT " + vendorRequestColumns + " FROM vendor_requests"
	args := []any{}
	if status != "" {
		q += " WHERE status=?"
		args = append(args, status)
	}
	q += " ORDER BY status = 'pending' DESC, created_at DESC, id DESC"
	err := r.db.SelectContext(ctx, &out, q, args...)
	return out, err
}

// Approve marks a pending request approved and promotes its user to vendor
// in one transaction.
func (r *VendorRequestRepo) Approve(ctx context.Context, id uint64, now time.Time) (*model.VendorRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var vr model.VendorRequest
	err = tx.GetContext(ctx, &vr,
		"SELECT "+vendorRequestColumns+" FROM vendor_requests WHERE id=? FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	if vr.Status != model.RequestPending {
		return nil, ErrConflict
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE vendor_requests SET status=?, reviewed_at=? WHERE id=?", model.RequestApproved, now, id); err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, "UPDATE users SET role=? WHERE email=?", model.RoleVendor, vr.Email)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrUserNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	vr.Status = model.RequestApproved
	vr.ReviewedAt = &now
	return &vr, nil
}

// Reject closes a pending request.
func (r *VendorRequestRepo) Reject(ctx context.Context, id uint64, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE vendor_requests SET status=?, reviewed_at=? WHERE id=? AND status=?",
		model.RequestRejected, now, id, model.RequestPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

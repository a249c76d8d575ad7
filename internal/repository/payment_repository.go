package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ticket-marketplace/internal/model"
)

const paymentColumns = `id, transaction_id, booking_id, amount_cents, currency, payer_email, ticket_title, paid_at`

// PaymentRepo records settled checkouts. transaction_id is unique, which is
// what makes recording a payment idempotent.
type PaymentRepo struct{ db *sqlx.DB }

func NewPaymentRepo(db *sqlx.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// RecordPaid marks the booking paid and inserts the payment in one
// transaction. When a payment with the same transaction id already exists
// nothing is written and alreadyProcessed is true.
func (r *PaymentRepo) RecordPaid(ctx context.Context, p *model.Payment) (alreadyProcessed bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, model.BookingPaid, p.BookingID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, ErrBookingNotFound
	}

	res, err = tx.NamedExecContext(ctx, `INSERT INTO payments
		(transaction_id, booking_id, amount_cents, currency, payer_email, ticket_title, paid_at)
		VALUES
		(:transaction_id, :booking_id, :amount_cents, :currency, :payer_email, :ticket_title, :paid_at)`, p)
	if err != nil {
		if isDuplicateKey(err) {
			return true, nil
		}
		return false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	p.ID = uint64(id)
	return false, nil
}

// GetByTransactionID returns the stored payment for an external transaction.
func (r *PaymentRepo) GetByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error) {
	var p model.Payment
	if err := r.db.GetContext(ctx, &p,
		`SELECT `+paymentColumns+` FROM payments WHERE transaction_id = ? LIMIT 1`, transactionID); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByPayer returns the payer's payment history, newest first.
func (r *PaymentRepo) ListByPayer(ctx context.Context, email string) ([]model.Payment, error) {
	out := []model.Payment{}
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+paymentColumns+` FROM payments WHERE payer_email = ? ORDER BY paid_at DESC, id DESC`, email)
	return out, err
}

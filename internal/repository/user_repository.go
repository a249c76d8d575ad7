package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/ticket-marketplace/internal/model"
)

const userColumns = `id, email, name, photo_url, password_hash, role, created_at, updated_at`

type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// NormalizeEmail lower-cases and trims an address. Every email stored or
// looked up goes through it.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Create inserts u (PasswordHash already set) and fills in its ID.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, name, photo_url, password_hash, role) VALUES (?,?,?,?,?)",
		u.Email, u.Name, u.PhotoURL, u.PasswordHash, u.Role)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, q, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns every user, newest first.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	out := []model.User{}
	err := r.db.SelectContext(ctx, &out, "SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id DESC")
	return out, err
}

// SetRole changes a user's role.
func (r *UserRepo) SetRole(ctx context.Context, email, role string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET role=? WHERE email=?", role, NormalizeEmail(email))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// MarkFraud sets the user's role to fraud and hides every ticket they listed,
// in one transaction. It returns the number of tickets hidden.
func (r *UserRepo) MarkFraud(ctx context.Context, email string) (int64, error) {
	email = NormalizeEmail(email)
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, "UPDATE users SET role=? WHERE email=?", model.RoleFraud, email)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrUserNotFound
	}

	res, err = tx.ExecContext(ctx,
		"UPDATE tickets SET status=?, is_advertised=FALSE WHERE vendor_email=?", model.TicketHidden, email)
	if err != nil {
		return 0, err
	}
	hidden, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return hidden, nil
}

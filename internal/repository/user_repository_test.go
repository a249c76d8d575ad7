package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ticket-marketplace/internal/model"
)

func TestUserCreateNormalizesAndDetectsDuplicates(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("user@example.com", "User", "", "hash", "user").
		WillReturnResult(sqlmock.NewResult(4, 1))
	u := &model.User{Email: "  User@Example.com ", Name: "User", PasswordHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, uint64(4), u.ID)
	assert.Equal(t, model.RoleUser, u.Role)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062})
	err := repo.Create(context.Background(), &model.User{Email: "user@example.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserGetByEmailNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := repo.GetByEmail(context.Background(), "Nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMarkFraudHidesVendorTickets(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role=? WHERE email=?")).
		WithArgs("fraud", "vendor@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET status=?, is_advertised=FALSE WHERE vendor_email=?")).
		WithArgs("hidden", "vendor@example.com").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	hidden, err := repo.MarkFraud(context.Background(), "Vendor@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), hidden)
}

func TestMarkFraudUnknownUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role=?")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.MarkFraud(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestValidateRefresh(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	cols := []string{"user_id", "expires_at", "revoked_at"}
	q := regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=?")

	mock.ExpectQuery(q).WithArgs("live").WillReturnRows(sqlmock.NewRows(cols).AddRow(9, now.Add(time.Hour), nil))
	id, err := repo.ValidateRefresh(context.Background(), "live", now)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), id)

	mock.ExpectQuery(q).WithArgs("old").WillReturnRows(sqlmock.NewRows(cols).AddRow(9, now.Add(-time.Hour), nil))
	_, err = repo.ValidateRefresh(context.Background(), "old", now)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	mock.ExpectQuery(q).WithArgs("revoked").WillReturnRows(sqlmock.NewRows(cols).AddRow(9, now.Add(time.Hour), now))
	_, err = repo.ValidateRefresh(context.Background(), "revoked", now)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	mock.ExpectQuery(q).WithArgs("missing").WillReturnRows(sqlmock.NewRows(cols))
	_, err = repo.ValidateRefresh(context.Background(), "missing", now)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied in order on startup. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(191) NOT NULL,
		name          VARCHAR(191) NOT NULL DEFAULT '',
		photo_url     VARCHAR(512) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		role          ENUM('user','vendor','admin','fraud') NOT NULL DEFAULT 'user',
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_token_hash (token_hash),
		KEY idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// pending_email is NULL once a request leaves pending, so the unique key
	// only constrains open requests.
	`CREATE TABLE IF NOT EXISTS vendor_requests (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email         VARCHAR(191) NOT NULL,
		name          VARCHAR(191) NOT NULL DEFAULT '',
		status        ENUM('pending','approved','rejected') NOT NULL DEFAULT 'pending',
		pending_email VARCHAR(191) GENERATED ALWAYS AS (IF(status = 'pending', email, NULL)) STORED,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		reviewed_at   DATETIME NULL,
		UNIQUE KEY uq_vendor_requests_pending (pending_email),
		KEY idx_vendor_requests_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS tickets (
		id                  BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		vendor_email        VARCHAR(191) NOT NULL,
		vendor_name         VARCHAR(191) NOT NULL DEFAULT '',
		title               VARCHAR(255) NOT NULL,
		from_location       VARCHAR(191) NOT NULL,
		to_location         VARCHAR(191) NOT NULL,
		transport           ENUM('bus','train','launch','plane') NOT NULL,
		departure_date      CHAR(10) NOT NULL,
		departure_time      VARCHAR(8) NOT NULL,
		departure_at        DATETIME NOT NULL,
		price_cents         BIGINT NOT NULL,
		quantity            INT UNSIGNED NOT NULL,
		perks               JSON NOT NULL,
		image_url           VARCHAR(512) NOT NULL DEFAULT '',
		verification_status ENUM('pending','approved','rejected') NOT NULL DEFAULT 'pending',
		status              ENUM('active','hidden') NOT NULL DEFAULT 'active',
		is_advertised       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_tickets_vendor (vendor_email),
		KEY idx_tickets_public (verification_status, status, created_at),
		KEY idx_tickets_advertised (is_advertised)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id                BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		ticket_id         BIGINT UNSIGNED NOT NULL,
		ticket_title      VARCHAR(255) NOT NULL,
		from_location     VARCHAR(191) NOT NULL,
		to_location       VARCHAR(191) NOT NULL,
		transport         VARCHAR(16) NOT NULL,
		departure_date    CHAR(10) NOT NULL,
		departure_time    VARCHAR(8) NOT NULL,
		departure_at      DATETIME NOT NULL,
		vendor_email      VARCHAR(191) NOT NULL,
		unit_price_cents  BIGINT NOT NULL,
		quantity          INT UNSIGNED NOT NULL,
		total_price_cents BIGINT NOT NULL,
		user_email        VARCHAR(191) NOT NULL,
		status            ENUM('Pending','accepted','rejected','paid') NOT NULL DEFAULT 'Pending',
		booked_at         DATETIME NOT NULL,
		KEY idx_bookings_user (user_email),
		KEY idx_bookings_vendor (vendor_email),
		KEY idx_bookings_ticket (ticket_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS payments (
		id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		transaction_id VARCHAR(191) NOT NULL,
		booking_id     BIGINT UNSIGNED NOT NULL,
		amount_cents   BIGINT NOT NULL,
		currency       CHAR(3) NOT NULL,
		payer_email    VARCHAR(191) NOT NULL,
		ticket_title   VARCHAR(255) NOT NULL DEFAULT '',
		paid_at        DATETIME NOT NULL,
		UNIQUE KEY uq_payments_transaction (transaction_id),
		KEY idx_payments_payer (payer_email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

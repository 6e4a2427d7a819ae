// Package repository provides the PostgreSQL persistence of portal sessions.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/atinyakov/staffonic/internal/models"
)

// PostgresSessionRepository stores portal sessions in the portal_sessions table.
type PostgresSessionRepository struct {
	// DB is the database handle for executing queries.
	DB *sqlx.DB
}

// NewPostgresSessionRepository creates a repository over db.
func NewPostgresSessionRepository(db *sqlx.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{DB: db}
}

// Save inserts the session, replacing the sealed token and expiry of an existing id.
func (r *PostgresSessionRepository) Save(ctx context.Context, s models.PortalSession) error {
	_, err := r.DB.NamedExecContext(ctx, `
		INSERT INTO portal_sessions (id, uid, email, refresh_token, created_at, expires_at)
		VALUES (:id, :uid, :email, :refresh_token, :created_at, :expires_at)
		ON CONFLICT (id) DO UPDATE
		   SET refresh_token = EXCLUDED.refresh_token,
		       expires_at = EXCLUDED.expires_at
	`, s)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get returns the session with id, or nil when there is none.
func (r *PostgresSessionRepository) Get(ctx context.Context, id string) (*models.PortalSession, error) {
	var s models.PortalSession
	err := r.DB.GetContext(ctx, &s, `
		SELECT id, uid, email, refresh_token, created_at, expires_at
		  FROM portal_sessions
		 WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// Delete removes the session. Deleting an unknown id is not an error.
func (r *PostgresSessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM portal_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

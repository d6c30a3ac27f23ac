package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/vaultchat/internal/apperr"
	"github.com/starford/vaultchat/internal/models"
)

// SessionInfo is a row of the session listing.
type SessionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Turns     int       `json:"turns"`
}

// CreateSession registers a session id. Creating an existing id is a no-op.
func (db *DB) CreateSession(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("transcript: create session: %w", err)
	}
	return nil
}

// AppendTurns appends turns to a session in one transaction: either all of
// them are stored, in order, or none is.
func (db *DB) AppendTurns(ctx context.Context, id string, turns ...models.Turn) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transcript: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)`, id, now); err != nil {
		return fmt.Errorf("transcript: ensure session: %w", err)
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM turns WHERE session_id = ?`, id).Scan(&next); err != nil {
		return fmt.Errorf("transcript: next seq: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO turns (session_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("transcript: prepare turn insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range turns {
		if !t.Role.Valid() {
			return fmt.Errorf("transcript: invalid role %q", t.Role)
		}
		next++
		if _, err := stmt.ExecContext(ctx, id, next, string(t.Role), t.Content, now); err != nil {
			return fmt.Errorf("transcript: insert turn: %w", err)
		}
	}

	return tx.Commit()
}

// Turns returns a session's turns in append order. An unknown id yields
// apperr.ErrNotFound.
func (db *DB) Turns(ctx context.Context, id string) ([]models.Turn, error) {
	var exists int
	err := db.conn.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transcript: session %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("transcript: lookup session: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT role, content FROM turns WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("transcript: turns: %w", err)
	}
	defer rows.Close()

	out := []models.Turn{}
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, err
		}
		out = append(out, models.Turn{Role: models.Role(role), Content: content})
	}
	return out, rows.Err()
}

// Sessions lists stored sessions, newest first.
func (db *DB) Sessions(ctx context.Context, limit int) ([]SessionInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT s.id, s.created_at, COUNT(t.seq)
		FROM sessions s
		LEFT JOIN turns t ON t.session_id = s.id
		GROUP BY s.id, s.created_at
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("transcript: sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var s SessionInfo
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.Turns); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

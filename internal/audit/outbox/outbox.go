// Package outbox is a local SQLite spool for verification attempts whose
// delivery to the audit sink failed.
package outbox

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
)

//go:embed schema.sql
var schemaSQL string

// Entry is one undelivered attempt.
type Entry struct {
	Attempt   database.VerificationAttempt
	Tries     int
	NextAt    time.Time
	LastError string
}

// Outbox stores undelivered attempts until they are retried successfully.
type Outbox struct {
	db     *sql.DB
	worker *Worker
}

// Open opens or creates the outbox database at path.
func Open(ctx context.Context, path string) (*Outbox, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir outbox dir: %w", err)
	}

	// WAL with NORMAL sync keeps writes durable across process crashes;
	// busy_timeout covers readers racing the single writer.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("outbox ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("outbox schema: %w", err)
	}

	return &Outbox{db: db, worker: NewWorker(db)}, nil
}

// Close flushes pending writes and closes the database.
func (o *Outbox) Close() error {
	o.worker.Close()
	if err := o.db.Close(); err != nil {
		return fmt.Errorf("closing outbox: %w", err)
	}
	return nil
}

// Put spools an attempt for retry. Spooling the same attempt twice keeps
// the first copy.
func (o *Outbox) Put(ctx context.Context, a database.VerificationAttempt, lastErr string) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	now := time.Now().UnixMilli()
	return o.worker.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO outbox (attempt_id, payload, tries, next_at_ms, last_error, created_at_ms)
			VALUES (?, ?, 0, ?, ?, ?)
		`, a.ID, payload, now, lastErr, now)
		if err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
		return nil
	})
}

// Due returns up to limit entries whose retry time has come, oldest first.
func (o *Outbox) Due(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	rows, err := o.db.QueryContext(ctx, `
		SELECT payload, tries, next_at_ms, last_error
		FROM outbox
		WHERE next_at_ms <= ?
		ORDER BY created_at_ms
		LIMIT ?
	`, now.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var payload []byte
		var nextMs int64
		var e Entry
		if err := rows.Scan(&payload, &e.Tries, &nextMs, &e.LastError); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if err := json.Unmarshal(payload, &e.Attempt); err != nil {
			return nil, fmt.Errorf("decode outbox entry: %w", err)
		}
		e.NextAt = time.UnixMilli(nextMs)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// Delete removes a delivered attempt.
func (o *Outbox) Delete(ctx context.Context, attemptID string) error {
	return o.worker.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM outbox WHERE attempt_id = ?", attemptID); err != nil {
			return fmt.Errorf("delete outbox entry: %w", err)
		}
		return nil
	})
}

// Reschedule records a failed retry and sets the next retry time.
func (o *Outbox) Reschedule(ctx context.Context, attemptID string, next time.Time, lastErr string) error {
	return o.worker.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE outbox SET tries = tries + 1, next_at_ms = ?, last_error = ?
			WHERE attempt_id = ?
		`, next.UnixMilli(), lastErr, attemptID)
		if err != nil {
			return fmt.Errorf("reschedule outbox entry: %w", err)
		}
		return nil
	})
}

// Count returns the number of undelivered attempts.
func (o *Outbox) Count(ctx context.Context) (int, error) {
	var n int
	if err := o.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outbox").Scan(&n); err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}

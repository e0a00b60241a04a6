package proxy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// LedgerEntry records one ticket created through the proxy
type LedgerEntry struct {
	ID              string
	TicketID        string
	Subject         string
	AttachmentCount int
	CreatedAt       time.Time
}

// Ledger keeps a local record of created tickets in SQLite
type Ledger struct {
	db *sql.DB
}

const ledgerSchema = `CREATE TABLE IF NOT EXISTS tickets (
	id               TEXT PRIMARY KEY,
	ticket_id        TEXT NOT NULL,
	subject          TEXT NOT NULL,
	attachment_count INTEGER NOT NULL,
	created_at       INTEGER NOT NULL
)`

// OpenLedger opens the ledger database at path. An empty path keeps the ledger in memory.
func OpenLedger(path string) (*Ledger, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// a single connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}
	if _, err := db.Exec(ledgerSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create ledger tables: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Record stores a created ticket
func (l *Ledger) Record(ctx context.Context, ticketID, subject string, attachments int) (LedgerEntry, error) {
	entry := LedgerEntry{
		ID:              uuid.NewString(),
		TicketID:        ticketID,
		Subject:         subject,
		AttachmentCount: attachments,
		CreatedAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO tickets (id, ticket_id, subject, attachment_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.TicketID, entry.Subject, entry.AttachmentCount, entry.CreatedAt.UnixMilli())
	if err != nil {
		return LedgerEntry{}, fmt.Errorf("failed to record ticket: %w", err)
	}
	return entry, nil
}

// Recent returns up to limit entries, newest first
func (l *Ledger) Recent(ctx context.Context, limit int) ([]LedgerEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, ticket_id, subject, attachment_count, created_at FROM tickets
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var created int64
		if err := rows.Scan(&e.ID, &e.TicketID, &e.Subject, &e.AttachmentCount, &created); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

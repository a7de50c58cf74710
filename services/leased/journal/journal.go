package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"

	"leasechain/core/types"
	"leasechain/crypto"
)

// ErrPathRequired is returned when the journal path is missing.
var ErrPathRequired = errors.New("leased journal path must be configured")

const schema = `
CREATE TABLE IF NOT EXISTS lease_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    lease TEXT NOT NULL,
    type TEXT NOT NULL,
    attributes_json TEXT NOT NULL,
    recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS lease_events_by_lease ON lease_events(lease, id);
CREATE TABLE IF NOT EXISTS lease_outbox (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    lease TEXT NOT NULL,
    type TEXT NOT NULL,
    payload_json TEXT NOT NULL,
    status TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS lease_outbox_by_status ON lease_outbox(status, id);
`

// Journal is the append-only record of lease events and outbound messages.
type Journal struct {
	db *sql.DB
}

// Entry is one journaled lease event.
type Entry struct {
	ID         int64             `json:"id"`
	Lease      string            `json:"lease"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt time.Time         `json:"recorded_at"`
}

// Outbound is one message a lease sent.
type Outbound struct {
	ID         int64           `json:"id"`
	Lease      string          `json:"lease"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Status     string          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Open initialises the journal at a sqlite DSN.
func Open(path string) (*Journal, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases database resources.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordEvents appends the events of one lease invocation atomically.
func (j *Journal) RecordEvents(ctx context.Context, lease crypto.Address, evts []*types.Event, at time.Time) error {
	if j == nil {
		return fmt.Errorf("journal not configured")
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		attrs, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("encode attributes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO lease_events(lease, type, attributes_json, recorded_at)
            VALUES(?, ?, ?, ?)
        `, lease.String(), evt.Type, string(attrs), at.UTC().UnixNano()); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit events: %w", err)
	}
	return nil
}

// Events returns the events of a lease, oldest first. A non-positive limit
// returns all of them.
func (j *Journal) Events(ctx context.Context, lease crypto.Address, limit int) ([]Entry, error) {
	if j == nil {
		return nil, fmt.Errorf("journal not configured")
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
        SELECT id, lease, type, attributes_json, recorded_at
        FROM lease_events WHERE lease = ? ORDER BY id ASC LIMIT ?
    `, lease.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			entry Entry
			attrs string
			nanos int64
		)
		if err := rows.Scan(&entry.ID, &entry.Lease, &entry.Type, &attrs, &nanos); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &entry.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
		entry.RecordedAt = time.Unix(0, nanos).UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}

// RecordOutbound appends one outbound message.
func (j *Journal) RecordOutbound(ctx context.Context, lease crypto.Address, msgType string, payload []byte, status, reason string, at time.Time) error {
	if j == nil {
		return fmt.Errorf("journal not configured")
	}
	_, err := j.db.ExecContext(ctx, `
        INSERT INTO lease_outbox(lease, type, payload_json, status, reason, recorded_at)
        VALUES(?, ?, ?, ?, ?, ?)
    `, lease.String(), msgType, string(payload), status, reason, at.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("insert outbound: %w", err)
	}
	return nil
}

// Outbox lists outbound messages with the given status, oldest first. An
// empty status lists all of them.
func (j *Journal) Outbox(ctx context.Context, status string) ([]Outbound, error) {
	if j == nil {
		return nil, fmt.Errorf("journal not configured")
	}
	query := `SELECT id, lease, type, payload_json, status, reason, recorded_at FROM lease_outbox`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id ASC`
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()
	var out []Outbound
	for rows.Next() {
		var (
			item    Outbound
			payload string
			nanos   int64
		)
		if err := rows.Scan(&item.ID, &item.Lease, &item.Type, &payload, &item.Status, &item.Reason, &nanos); err != nil {
			return nil, fmt.Errorf("scan outbound: %w", err)
		}
		item.Payload = json.RawMessage(payload)
		item.RecordedAt = time.Unix(0, nanos).UTC()
		out = append(out, item)
	}
	return out, rows.Err()
}

// MarkRelayed flags a pending outbound message as picked up by a relayer.
func (j *Journal) MarkRelayed(ctx context.Context, id int64) error {
	if j == nil {
		return fmt.Errorf("journal not configured")
	}
	res, err := j.db.ExecContext(ctx, `UPDATE lease_outbox SET status = 'relayed' WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("update outbound: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("outbound %d is not pending", id)
	}
	return nil
}

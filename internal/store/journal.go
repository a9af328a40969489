package store

import (
	"fmt"
	"time"
)

// ExportEntry is one recorded export of a conversation record.
type ExportEntry struct {
	RecordUUID string    `json:"recordUuid"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	ExportedAt time.Time `json:"exportedAt"`
}

// Journal records every successful export to the conserver. Delivery is
// at-least-once; the journal gives best-effort dedup across sweeps and
// feeds the status surface.
type Journal struct {
	db *DB
}

// NewJournal creates a journal using the given database.
func NewJournal(db *DB) *Journal {
	return &Journal{db: db}
}

// MarkExported records a successful export of the given record.
func (j *Journal) MarkExported(recordUUID, path string, status int) error {
	_, err := j.db.sql.Exec(
		`INSERT INTO exports (record_uuid, path, status, exported_at) VALUES (?, ?, ?, ?)`,
		recordUUID, path, status, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store: recording export of %s: %w", recordUUID, err)
	}
	return nil
}

// WasExported reports whether a record with the given uuid has ever been
// shipped successfully.
func (j *Journal) WasExported(recordUUID string) (bool, error) {
	var count int
	err := j.db.sql.QueryRow(
		`SELECT COUNT(*) FROM exports WHERE record_uuid = ?`, recordUUID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("store: checking export of %s: %w", recordUUID, err)
	}
	return count > 0, nil
}

// Count returns the total number of recorded exports.
func (j *Journal) Count() (int, error) {
	var count int
	if err := j.db.sql.QueryRow(`SELECT COUNT(*) FROM exports`).Scan(&count); err != nil {
		return 0, fmt.Errorf("store: counting exports: %w", err)
	}
	return count, nil
}

// Recent returns the most recent export entries, newest first.
func (j *Journal) Recent(limit int) ([]ExportEntry, error) {
	rows, err := j.db.sql.Query(
		`SELECT record_uuid, path, status, exported_at FROM exports ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: listing exports: %w", err)
	}
	defer rows.Close()

	var entries []ExportEntry
	for rows.Next() {
		var e ExportEntry
		var exportedAt string
		if err := rows.Scan(&e.RecordUUID, &e.Path, &e.Status, &exportedAt); err != nil {
			return nil, fmt.Errorf("store: scanning export row: %w", err)
		}
		e.ExportedAt, _ = time.Parse(time.RFC3339, exportedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

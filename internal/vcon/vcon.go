// Package vcon defines the vCon conversation record model, following the
// IETF vCon JSON schema (version 0.0.1).
package vcon

import (
	"encoding/json"
	"time"
)

// SchemaVersion is the vCon format tag written to every record.
const SchemaVersion = "0.0.1"

// Record is one conversation's durable record: the parties that spoke and
// every dialog turn they contributed, plus extension slots for analysis
// and attachments.
//
// Parties and dialog are append-only. Dialog entries reference parties by
// position, so parties must never be reordered or removed once a dialog
// entry exists.
type Record struct {
	UUID        string            `json:"uuid"`
	Vcon        string            `json:"vcon"`
	CreatedAt   string            `json:"created_at"` // ISO-8601, set once at creation
	Subject     string            `json:"subject"`
	Parties     []Party           `json:"parties"`
	Dialog      []Dialog          `json:"dialog"`
	Analysis    []json.RawMessage `json:"analysis"`
	Attachments []json.RawMessage `json:"attachments"`
}

// Party is one participant identity within a record. Created the first
// time a sender is observed, never mutated afterward.
type Party struct {
	Tel    string    `json:"tel"` // canonical id, unique within the record
	Name   string    `json:"name"`
	Mailto string    `json:"mailto"`
	Meta   PartyMeta `json:"meta"`
}

// PartyMeta carries secondary identity attributes.
type PartyMeta struct {
	Role      string `json:"role"`
	Extension string `json:"extension"`
}

// Dialog is one recorded message contribution. Parties and Originator
// hold indices into the record's parties list.
type Dialog struct {
	Body       string     `json:"body"`
	Meta       DialogMeta `json:"meta"`
	Type       string     `json:"type"`  // always "text"
	Start      string     `json:"start"` // ISO-8601 origination time
	Parties    []int      `json:"parties"`
	Originator []int      `json:"originator"`
	Encoding   string     `json:"encoding"` // always "text/plain"
}

// DialogMeta retains the full original transport event so duplicates can
// be detected and nothing from the source is lost.
type DialogMeta struct {
	MatrixEvent json.RawMessage `json:"matrix_event"`
}

// matrixEventID is the subset of the retained event needed for dedup.
type matrixEventID struct {
	EventID string `json:"event_id"`
}

// New returns an empty record stamped with the given identity, subject,
// and creation time.
func New(uuid, subject string, createdAt time.Time) *Record {
	return &Record{
		UUID:        uuid,
		Vcon:        SchemaVersion,
		CreatedAt:   createdAt.UTC().Format(time.RFC3339),
		Subject:     subject,
		Parties:     []Party{},
		Dialog:      []Dialog{},
		Analysis:    []json.RawMessage{},
		Attachments: []json.RawMessage{},
	}
}

// CreatedTime parses the record's creation timestamp.
func (r *Record) CreatedTime() (time.Time, error) {
	return time.Parse(time.RFC3339, r.CreatedAt)
}

// PartyIndex returns the position of the party with the given canonical
// id, or -1 if no such party exists. Lookup is always by id, never by a
// stored index.
func (r *Record) PartyIndex(tel string) int {
	for i, p := range r.Parties {
		if p.Tel == tel {
			return i
		}
	}
	return -1
}

// HasEvent reports whether a dialog entry originating from the given
// transport event id is already present.
func (r *Record) HasEvent(eventID string) bool {
	for _, d := range r.Dialog {
		var ev matrixEventID
		if err := json.Unmarshal(d.Meta.MatrixEvent, &ev); err != nil {
			continue
		}
		if ev.EventID == eventID {
			return true
		}
	}
	return false
}

package audit

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mjharwell/scenesync/internal/conflict"
	"github.com/mjharwell/scenesync/internal/param"
)

// #region entry

// Entry is a single row in the conflict_log table. Every surfaced conflict is
// logged, independent of resolution outcome.
type Entry struct {
	ConflictID string
	Kind       string
	Severity   string
	Systems    string // comma-separated subsystem names
	Message    string
	Suggestion string
	Outcome    string // resolution outcome recorded at surface time
	CreatedAt  time.Time
}

// FromConflict builds an entry from a derived conflict.
func FromConflict(id string, c conflict.Conflict, outcome string) Entry {
	names := make([]string, len(c.Subsystems))
	for i, s := range c.Subsystems {
		names[i] = string(s)
	}
	return Entry{
		ConflictID: id,
		Kind:       string(c.Kind),
		Severity:   string(c.Severity),
		Systems:    strings.Join(names, ","),
		Message:    c.Message,
		Suggestion: c.SuggestedFix,
		Outcome:    outcome,
	}
}

// Subsystems parses the comma-separated system list back into names.
func (e Entry) Subsystems() []param.Subsystem {
	if e.Systems == "" {
		return nil
	}
	parts := strings.Split(e.Systems, ",")
	out := make([]param.Subsystem, 0, len(parts))
	for _, p := range parts {
		if sub, ok := param.ParseSubsystem(p); ok {
			out = append(out, sub)
		}
	}
	return out
}

// #endregion entry

// #region log

// Log writes a conflict entry to the conflict_log table.
func Log(db *sql.DB, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(
		`INSERT INTO conflict_log (conflict_id, kind, severity, systems, message, suggestion, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ConflictID,
		entry.Kind,
		entry.Severity,
		nullIfEmpty(entry.Systems),
		nullIfEmpty(entry.Message),
		nullIfEmpty(entry.Suggestion),
		nullIfEmpty(entry.Outcome),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log conflict: %w", err)
	}
	return nil
}

// Recent returns the most recent conflict rows, newest first.
func Recent(db *sql.DB, limit int) ([]Entry, error) {
	rows, err := db.Query(
		`SELECT conflict_id, kind, severity, systems, message, suggestion, outcome, created_at
		 FROM conflict_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent conflicts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var systems, message, suggestion, outcome sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ConflictID, &e.Kind, &e.Severity, &systems, &message, &suggestion, &outcome, &createdStr); err != nil {
			return nil, fmt.Errorf("scan conflict row: %w", err)
		}
		e.Systems = systems.String
		e.Message = message.String
		e.Suggestion = suggestion.String
		e.Outcome = outcome.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion log

// #region ring

// Ring is the bounded in-memory conflict log the dispatcher appends every
// surfaced conflict to. ClearLogs empties the ring; the sqlite rows remain as
// permanent audit.
type Ring struct {
	cap     int
	entries []Entry
}

// NewRing creates a ring with the given capacity (minimum 1).
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{cap: capacity}
}

// Append adds an entry, evicting the oldest past capacity.
func (r *Ring) Append(e Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	r.entries = append(r.entries, e)
	for len(r.entries) > r.cap {
		r.entries = r.entries[1:]
	}
}

// Entries returns a copy of the retained entries, oldest first.
func (r *Ring) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len reports the number of retained entries.
func (r *Ring) Len() int { return len(r.entries) }

// Clear empties the ring.
func (r *Ring) Clear() { r.entries = nil }

// #endregion ring

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers

package audit

import (
	"database/sql"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/mjharwell/scenesync/internal/conflict"
	"github.com/mjharwell/scenesync/internal/param"
)

func memDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`
		CREATE TABLE conflict_log (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			conflict_id TEXT NOT NULL,
			kind        TEXT NOT NULL,
			severity    TEXT NOT NULL,
			systems     TEXT,
			message     TEXT,
			suggestion  TEXT,
			outcome     TEXT,
			created_at  TEXT NOT NULL
		)`)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return db
}

func TestFromConflict(t *testing.T) {
	c := conflict.Conflict{
		Kind:         conflict.KindBloomWashedOut,
		Severity:     conflict.SeverityHigh,
		Subsystems:   []param.Subsystem{param.Bloom, param.Background, param.Lighting},
		Message:      "bloom is invisible",
		SuggestedFix: "raise strength",
	}
	e := FromConflict("c-1", c, "resolved")

	if e.ConflictID != "c-1" || e.Kind != "bloom_washed_out" || e.Severity != "high" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.Systems != "bloom,background,lighting" {
		t.Fatalf("expected csv systems, got %s", e.Systems)
	}
	if e.Outcome != "resolved" {
		t.Fatalf("expected outcome resolved, got %s", e.Outcome)
	}

	subs := e.Subsystems()
	if len(subs) != 3 || subs[0] != param.Bloom || subs[2] != param.Lighting {
		t.Fatalf("round-trip subsystems mismatch: %v", subs)
	}
}

func TestSubsystemsEmptyAndUnknown(t *testing.T) {
	if subs := (Entry{}).Subsystems(); subs != nil {
		t.Fatalf("expected nil for empty systems, got %v", subs)
	}
	e := Entry{Systems: "bloom,mystery,pbr"}
	subs := e.Subsystems()
	if len(subs) != 2 || subs[0] != param.Bloom || subs[1] != param.PBR {
		t.Fatalf("unknown names must be dropped, got %v", subs)
	}
}

func TestLogAndRecent(t *testing.T) {
	db := memDB(t)
	for i := 0; i < 3; i++ {
		e := Entry{
			ConflictID: fmt.Sprintf("c-%d", i),
			Kind:       "exposure_low",
			Severity:   "low",
			Message:    "too dark",
			Outcome:    "resolved",
		}
		if err := Log(db, e); err != nil {
			t.Fatalf("Log %d: %v", i, err)
		}
	}

	entries, err := Recent(db, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].ConflictID != "c-2" || entries[1].ConflictID != "c-1" {
		t.Fatalf("expected newest first, got %v", entries)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Fatal("expected a populated timestamp")
	}
}

func TestLogNullsEmptyOptionalColumns(t *testing.T) {
	db := memDB(t)
	if err := Log(db, Entry{ConflictID: "c-0", Kind: "k", Severity: "low"}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	var systems sql.NullString
	if err := db.QueryRow(`SELECT systems FROM conflict_log WHERE conflict_id = 'c-0'`).Scan(&systems); err != nil {
		t.Fatalf("query: %v", err)
	}
	if systems.Valid {
		t.Fatalf("expected NULL systems, got %q", systems.String)
	}

	entries, err := Recent(db, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if entries[0].Systems != "" || entries[0].Message != "" {
		t.Fatalf("expected empty optional fields, got %+v", entries[0])
	}
}

func TestRingBoundsAndClear(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Append(Entry{ConflictID: fmt.Sprintf("c-%d", i)})
	}
	if r.Len() != 3 {
		t.Fatalf("expected 3 retained, got %d", r.Len())
	}
	entries := r.Entries()
	if entries[0].ConflictID != "c-2" || entries[2].ConflictID != "c-4" {
		t.Fatalf("expected oldest evicted, got %v", entries)
	}

	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("expected empty after clear, got %d", r.Len())
	}
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing(0)
	r.Append(Entry{ConflictID: "a"})
	r.Append(Entry{ConflictID: "b"})
	if r.Len() != 1 || r.Entries()[0].ConflictID != "b" {
		t.Fatalf("expected capacity clamped to 1, got %v", r.Entries())
	}
}

func TestRingEntriesIsCopy(t *testing.T) {
	r := NewRing(4)
	r.Append(Entry{ConflictID: "a"})
	out := r.Entries()
	out[0].ConflictID = "mutated"
	if r.Entries()[0].ConflictID != "a" {
		t.Fatal("Entries must return an independent copy")
	}
}

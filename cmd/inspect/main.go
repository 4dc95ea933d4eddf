package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mjharwell/scenesync/internal/audit"
	"github.com/mjharwell/scenesync/internal/checkpoint"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to scenesync.db")
	last := flag.Int("last", 20, "show N most recent conflict rows")
	jsonOut := flag.Bool("json", false, "output as JSON instead of tables")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/scenesync.db [--last N] [--json]")
		os.Exit(2)
	}

	store, err := checkpoint.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := run(store, *last, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region report

type report struct {
	Checkpoints []checkpointRow `json:"checkpoints"`
	Conflicts   []conflictRow   `json:"conflicts"`
}

type checkpointRow struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	CreatedAt  string  `json:"created_at"`
	Brightness float32 `json:"background_brightness"`
	Exposure   float32 `json:"exposure"`
	Metalness  float32 `json:"metalness"`
	Bloom      float32 `json:"bloom_strength"`
}

type conflictRow struct {
	Kind      string `json:"kind"`
	Severity  string `json:"severity"`
	Systems   string `json:"systems"`
	Message   string `json:"message"`
	Outcome   string `json:"outcome"`
	CreatedAt string `json:"created_at"`
}

func run(store *checkpoint.Store, last int, jsonOut bool) error {
	var rep report
	for _, cp := range store.List() {
		rep.Checkpoints = append(rep.Checkpoints, checkpointRow{
			ID:         cp.ID,
			Name:       cp.Name,
			CreatedAt:  cp.CreatedAt.Format("2006-01-02T15:04:05Z"),
			Brightness: cp.Snapshot.Background.Brightness,
			Exposure:   cp.Snapshot.Lighting.Exposure,
			Metalness:  cp.Snapshot.PBR.Metalness,
			Bloom:      cp.Snapshot.Bloom.Strength,
		})
	}

	entries, err := audit.Recent(store.DB(), last)
	if err != nil {
		return err
	}
	for _, e := range entries {
		rep.Conflicts = append(rep.Conflicts, conflictRow{
			Kind:      e.Kind,
			Severity:  e.Severity,
			Systems:   e.Systems,
			Message:   e.Message,
			Outcome:   e.Outcome,
			CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	if jsonOut {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Checkpoints (%d, oldest first):\n", len(rep.Checkpoints))
	fmt.Printf("%-10s  %-28s  %6s  %6s  %6s  %6s  %s\n",
		"ID", "Name", "BgtBr", "Expo", "Metal", "Bloom", "Time")
	for _, r := range rep.Checkpoints {
		fmt.Printf("%-10s  %-28s  %6.2f  %6.2f  %6.2f  %6.2f  %s\n",
			shortID(r.ID), r.Name, r.Brightness, r.Exposure, r.Metalness, r.Bloom, r.CreatedAt)
	}

	fmt.Printf("\nConflict log (%d most recent first):\n", len(rep.Conflicts))
	for _, r := range rep.Conflicts {
		fmt.Printf("  [%s] %-22s %-18s outcome=%-18s %s\n",
			r.Severity, r.Kind, r.Systems, r.Outcome, r.CreatedAt)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion report

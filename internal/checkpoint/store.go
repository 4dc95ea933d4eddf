package checkpoint

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mjharwell/scenesync/internal/param"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	checkpoint_id TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	snapshot      TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS conflict_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	conflict_id TEXT NOT NULL,
	kind        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	systems     TEXT,
	message     TEXT,
	suggestion  TEXT,
	outcome     TEXT,
	created_at  TEXT NOT NULL
);
`

// #endregion schema

// #region types

// HistoryCap bounds the checkpoint history; the oldest entry is evicted first.
const HistoryCap = 10

// Checkpoint is an immutable named snapshot of the full parameter state.
type Checkpoint struct {
	ID        string
	Name      string
	Snapshot  param.State
	CreatedAt time.Time
}

// ErrEmpty is returned by Restore when no checkpoints exist.
var ErrEmpty = errors.New("no checkpoints saved")

// ErrNotFound is returned by Restore for an unknown checkpoint id.
var ErrNotFound = errors.New("checkpoint not found")

// #endregion types

// #region store

// Store manages the bounded checkpoint history. Reads are served from an
// in-memory mirror so restore/rollback never block on I/O; persistence to
// SQLite happens on a background writer so saving a checkpoint is
// fire-and-forget with respect to the synchronization cycle. The mirror is
// rebuilt from the database on open, which is how checkpoints survive a
// process restart.
type Store struct {
	db  *sql.DB
	cap int

	mu      sync.Mutex
	history []Checkpoint // oldest first

	jobs chan persistJob
	wg   sync.WaitGroup
}

type persistJob struct {
	cp      Checkpoint
	snapRaw string
}

// NewStore opens the SQLite database, runs migrations, and loads the
// persisted history into memory.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s := newStore(db)
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStoreWithDB wraps an existing database handle (in-memory tests). The
// schema must already exist.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	s := newStore(db)
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(db *sql.DB) *Store {
	s := &Store{
		db:   db,
		cap:  HistoryCap,
		jobs: make(chan persistJob, 32),
	}
	go s.writer()
	return s
}

// Close drains pending writes and closes the database.
func (s *Store) Close() error {
	close(s.jobs)
	s.wg.Wait()
	return s.db.Close()
}

// DB returns the underlying handle for use by other packages (audit log,
// inspect tooling).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Sync blocks until every queued persist job has been written.
func (s *Store) Sync() {
	s.wg.Wait()
}

// #endregion store

// #region save

// Save snapshots the state under a name; an empty name defaults to a
// timestamp-derived label. The in-memory history is updated synchronously
// (evicting the oldest entry past the cap); the durable write is queued.
func (s *Store) Save(name string, st param.State) (Checkpoint, error) {
	now := time.Now().UTC()
	if name == "" {
		name = "checkpoint-" + now.Format("20060102-150405.000")
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	cp := Checkpoint{
		ID:        uuid.New().String(),
		Name:      name,
		Snapshot:  st,
		CreatedAt: now,
	}

	s.mu.Lock()
	s.history = append(s.history, cp)
	for len(s.history) > s.cap {
		s.history = s.history[1:]
	}
	s.mu.Unlock()

	s.wg.Add(1)
	select {
	case s.jobs <- persistJob{cp: cp, snapRaw: string(raw)}:
	default:
		// Queue full: persist inline rather than drop durability.
		s.persist(persistJob{cp: cp, snapRaw: string(raw)})
		s.wg.Done()
	}
	return cp, nil
}

// #endregion save

// #region restore

// Restore returns the snapshot for the given checkpoint id; an empty id
// restores the most recent checkpoint.
func (s *Store) Restore(id string) (param.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return param.State{}, ErrEmpty
	}
	if id == "" {
		return s.history[len(s.history)-1].Snapshot, nil
	}
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].ID == id {
			return s.history[i].Snapshot, nil
		}
	}
	return param.State{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Latest returns the most recent checkpoint, if any.
func (s *Store) Latest() (Checkpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return Checkpoint{}, false
	}
	return s.history[len(s.history)-1], true
}

// List returns the history, oldest first.
func (s *Store) List() []Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Checkpoint, len(s.history))
	copy(out, s.history)
	return out
}

// Len reports the number of retained checkpoints.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// #endregion restore

// #region persistence

func (s *Store) writer() {
	for job := range s.jobs {
		s.persist(job)
		s.wg.Done()
	}
}

// persist writes one checkpoint and evicts beyond the cap in a single tx.
// Failures are logged, never surfaced into the synchronization cycle.
func (s *Store) persist(job persistJob) {
	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[CKPT] persist begin tx: %v", err)
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO checkpoints (checkpoint_id, name, snapshot, created_at)
		 VALUES (?, ?, ?, ?)`,
		job.cp.ID, job.cp.Name, job.snapRaw, job.cp.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		log.Printf("[CKPT] persist insert: %v", err)
		return
	}
	_, err = tx.Exec(
		`DELETE FROM checkpoints WHERE seq NOT IN
		 (SELECT seq FROM checkpoints ORDER BY seq DESC LIMIT ?)`, s.cap,
	)
	if err != nil {
		log.Printf("[CKPT] persist evict: %v", err)
		return
	}
	if err := tx.Commit(); err != nil {
		log.Printf("[CKPT] persist commit: %v", err)
	}
}

// load rebuilds the in-memory mirror from the database, oldest first.
func (s *Store) load() error {
	rows, err := s.db.Query(
		`SELECT checkpoint_id, name, snapshot, created_at FROM checkpoints
		 ORDER BY seq ASC`,
	)
	if err != nil {
		return fmt.Errorf("load checkpoints: %w", err)
	}
	defer rows.Close()

	var history []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		var raw, createdStr string
		if err := rows.Scan(&cp.ID, &cp.Name, &raw, &createdStr); err != nil {
			return fmt.Errorf("scan checkpoint: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &cp.Snapshot); err != nil {
			return fmt.Errorf("unmarshal snapshot %s: %w", cp.ID, err)
		}
		cp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		history = append(history, cp)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for len(history) > s.cap {
		history = history[1:]
	}
	s.mu.Lock()
	s.history = history
	s.mu.Unlock()
	return nil
}

// #endregion persistence

package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"threadsync/pkg/interfaces"
	"threadsync/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_snapshot (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	payload TEXT NOT NULL,
	saved_at TIMESTAMP NOT NULL
);`

// Store persists the durable session in a local sqlite file. Writes funnel
// through a single goroutine; sqlite tolerates concurrent reads but not
// concurrent writers.
type Store struct {
	db       *sql.DB
	writeCh  chan writeOp
	shutdown chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	logger   zerolog.Logger
}

type writeOp struct {
	fn     func(*sql.DB) error
	result chan error
}

// New opens (or creates) the snapshot database at path.
func New(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating snapshot schema: %w", err)
	}

	s := &Store{
		db:       db,
		writeCh:  make(chan writeOp, 16),
		shutdown: make(chan struct{}),
		logger:   logger.With().Str("component", "snapshot").Logger(),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.writeCh:
			op.result <- op.fn(s.db)
		case <-s.shutdown:
			// Drain queued writes so a shutdown never loses the last save.
			for {
				select {
				case op := <-s.writeCh:
					op.result <- op.fn(s.db)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) executeWrite(fn func(*sql.DB) error) error {
	// The read lock is held across the send so Close cannot flip closed and
	// shut the loop down while an op is mid-enqueue.
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	op := writeOp{fn: fn, result: make(chan error, 1)}
	s.writeCh <- op
	s.mu.RUnlock()
	return <-op.result
}

// Save replaces the stored snapshot.
func (s *Store) Save(ctx context.Context, snap *types.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO session_snapshot (id, payload, saved_at) VALUES (1, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
			string(payload), time.Now())
		if err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		return nil
	})
}

// Load returns the last saved snapshot, or interfaces.ErrNoSnapshot.
func (s *Store) Load(ctx context.Context) (*types.Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM session_snapshot WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	var snap types.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		// A corrupt snapshot is treated as absent; a cold start refetches.
		s.logger.Warn().Err(err).Msg("discarding corrupt snapshot")
		return nil, interfaces.ErrNoSnapshot
	}
	return &snap, nil
}

// Clear removes any stored snapshot.
func (s *Store) Clear(ctx context.Context) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `DELETE FROM session_snapshot WHERE id = 1`)
		return err
	})
}

// Close stops the write loop and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()
	return s.db.Close()
}

// Package store persists generation session state across process
// restarts: n_past, n_past_offset, and the trailing output-id window a
// continuous=true call needs to resume prompt reuse. It is optional —
// nothing in engine or loader depends on it.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// currentSchemaVersion is bumped whenever the sessions table shape
// changes in a way that requires a migration.
const currentSchemaVersion = 1

// Session is one persisted generation session's cache-accounting state.
type Session struct {
	ID          string
	NPast       int
	NPastOffset int
	// OutputIDs is the trailing window of already-generated token ids,
	// kept so a resumed continuous call can recompute isOutputTerminated
	// without redoing a forward pass.
	OutputIDs []int32
}

// Store wraps a SQLite-backed session table.
type Store struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the session database at dbPath in
// WAL mode with a busy timeout, matching the pattern of a single-writer
// embedded store under concurrent readers.
func Open(dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) init() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		n_past INTEGER NOT NULL DEFAULT 0,
		n_past_offset INTEGER NOT NULL DEFAULT 0,
		output_ids TEXT NOT NULL DEFAULT '[]',
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		schema_version INTEGER NOT NULL DEFAULT %d
	);
	`, currentSchemaVersion)
	_, err := s.conn.Exec(schema)
	return err
}

// Close checkpoints the WAL file and closes the underlying connection.
func (s *Store) Close() error {
	_, _ = s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	return s.conn.Close()
}

// Save upserts a session's current cache-accounting state.
func (s *Store) Save(sess Session) error {
	outputIDs, err := json.Marshal(sess.OutputIDs)
	if err != nil {
		return fmt.Errorf("store: marshal output ids: %w", err)
	}
	_, err = s.conn.Exec(`
		INSERT INTO sessions (id, n_past, n_past_offset, output_ids, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			n_past = excluded.n_past,
			n_past_offset = excluded.n_past_offset,
			output_ids = excluded.output_ids,
			updated_at = CURRENT_TIMESTAMP
	`, sess.ID, sess.NPast, sess.NPastOffset, string(outputIDs))
	if err != nil {
		return fmt.Errorf("store: save session %q: %w", sess.ID, err)
	}
	return nil
}

// ErrNotFound is returned by Load when no session with the given id exists.
var ErrNotFound = fmt.Errorf("store: session not found")

// Load reads back a previously saved session by id.
func (s *Store) Load(id string) (Session, error) {
	var sess Session
	var outputIDs string
	err := s.conn.QueryRow(
		`SELECT id, n_past, n_past_offset, output_ids FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.NPast, &sess.NPastOffset, &outputIDs)
	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("store: load session %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(outputIDs), &sess.OutputIDs); err != nil {
		return Session{}, fmt.Errorf("store: unmarshal output ids for %q: %w", id, err)
	}
	return sess, nil
}

// Delete removes a session, no error if it does not exist.
func (s *Store) Delete(id string) error {
	_, err := s.conn.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete session %q: %w", id, err)
	}
	return nil
}

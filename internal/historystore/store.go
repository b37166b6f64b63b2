// Package historystore is the Command History Store (component G): a
// durable, queryable record of recent commands/errors per session,
// backing the Environment Probe's State fields across process restarts.
// It is additive to the Session Arbiter's in-memory ring buffer, never a
// replacement — see SPEC_FULL.md §4.1.1.
package historystore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database (pure-Go driver, WAL mode) recording
// command boundaries the Arbiter detects via prompt-shape matching.
type Store struct {
	db *sql.DB
}

// Record is one command-history row.
type Record struct {
	ID            string
	SessionID     string
	Command       string
	ExitCode      *int
	StartedAt     time.Time
	FinishedAt    *time.Time
	ErrorPatterns []string
}

// Open opens (and migrates) the SQLite database at dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

// OpenCommand inserts a new, in-flight command boundary row and returns
// its id.
func (s *Store) OpenCommand(ctx context.Context, sessionID, command string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO command_history (id, session_id, command, started_at, error_patterns) VALUES (?, ?, ?, ?, '[]')`,
		id, sessionID, command, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("open command: %w", err)
	}
	return id, nil
}

// CloseCommand fills in the exit code and finish time for a command
// boundary once the Arbiter observes the next prompt.
func (s *Store) CloseCommand(ctx context.Context, id string, exitCode int, errorPatterns []string) error {
	patterns, err := json.Marshal(errorPatterns)
	if err != nil {
		return fmt.Errorf("marshal error patterns: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE command_history SET exit_code = ?, finished_at = ?, error_patterns = ? WHERE id = ?`,
		exitCode, time.Now().UTC(), string(patterns), id)
	if err != nil {
		return fmt.Errorf("close command: %w", err)
	}
	return nil
}

// RecentCommands returns the most recent n completed or in-flight
// commands for sessionID, oldest first.
func (s *Store) RecentCommands(ctx context.Context, sessionID string, n int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, command, exit_code, started_at, finished_at, error_patterns
		 FROM command_history WHERE session_id = ? ORDER BY started_at DESC LIMIT ?`,
		sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("query recent commands: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var exitCode sql.NullInt64
		var finishedAt sql.NullTime
		var patternsJSON string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Command, &exitCode, &r.StartedAt, &finishedAt, &patternsJSON); err != nil {
			return nil, fmt.Errorf("scan command row: %w", err)
		}
		if exitCode.Valid {
			v := int(exitCode.Int64)
			r.ExitCode = &v
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			r.FinishedAt = &t
		}
		_ = json.Unmarshal([]byte(patternsJSON), &r.ErrorPatterns)
		out = append(out, r)
	}
	// Reverse to oldest-first, matching the Probe's State.LastCommands order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// RecentErrors returns the most recent n commands with a non-empty error
// pattern set, oldest first.
func (s *Store) RecentErrors(ctx context.Context, sessionID string, n int) ([]Record, error) {
	recent, err := s.RecentCommands(ctx, sessionID, 200)
	if err != nil {
		return nil, err
	}
	var errored []Record
	for _, r := range recent {
		if len(r.ErrorPatterns) > 0 {
			errored = append(errored, r)
		}
	}
	if len(errored) > n {
		errored = errored[len(errored)-n:]
	}
	return errored, nil
}

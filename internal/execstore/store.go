// Package execstore persists Execution records (SPEC_FULL.md §3/§4.2) as
// one append-only JSON file per execution under a root directory.
// Grounded directly on the teacher's internal/history.Store, narrowed to
// the simpler "write once, list by recency" shape an Execution record
// needs: unlike a Flow, an Execution is never edited after it reaches a
// terminal status, so there is no folder nesting or cache-invalidation
// concern to carry over from flowstore.
package execstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/termai-core/termai/internal/workflow"
)

// Store persists Execution records under root/<executionId>.json.
type Store struct {
	root string
}

// Open returns a Store rooted at root (typically Config.ExecutionsDir()),
// creating the directory if needed.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("execstore: create root: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.root, id+".json")
}

// Save writes the whole Execution record, overwriting any prior state for
// the same id. Most callers write exactly once, at the point the engine
// reaches a terminal status, but Save tolerates being called earlier
// (e.g. a caller that wants to persist `running` progress too).
func (s *Store) Save(exec *workflow.Execution) error {
	data, err := json.MarshalIndent(exec, "", "  ")
	if err != nil {
		return fmt.Errorf("execstore: marshal execution: %w", err)
	}
	tmp := s.path(exec.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("execstore: write execution: %w", err)
	}
	if err := os.Rename(tmp, s.path(exec.ID)); err != nil {
		return fmt.Errorf("execstore: rename execution: %w", err)
	}
	return nil
}

// Load reads a single Execution record by id.
func (s *Store) Load(id string) (*workflow.Execution, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("execstore: read execution: %w", err)
	}
	var exec workflow.Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, fmt.Errorf("execstore: unmarshal execution: %w", err)
	}
	return &exec, nil
}

// List returns every persisted Execution, ordered by modification time,
// most recent first, per §4.2 "Persistence".
func (s *Store) List() ([]workflow.Execution, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("execstore: read root: %w", err)
	}

	type withModTime struct {
		exec workflow.Execution
		mod  int64
	}
	var all []withModTime
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, e.Name()))
		if err != nil {
			continue
		}
		var exec workflow.Execution
		if err := json.Unmarshal(data, &exec); err != nil {
			continue // skip unreadable/partial files rather than failing the whole listing
		}
		all = append(all, withModTime{exec: exec, mod: info.ModTime().UnixNano()})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].mod > all[j].mod })

	out := make([]workflow.Execution, len(all))
	for i, w := range all {
		out[i] = w.exec
	}
	return out, nil
}

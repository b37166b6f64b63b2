// Package flowstore persists Flow records (SPEC_FULL.md §3/§4.2) as one
// JSON file per flow under a root directory, optionally nested one level
// into a sanitized folder. Grounded directly on the teacher's
// internal/history.Store (session-per-file JSON persistence), extended
// with graph validation on save and an fsnotify-backed listing cache that
// is invalidated as soon as the watcher reports an out-of-band change in
// the root directory. Sub-folders are not watched, so an out-of-band edit
// inside one is only seen after the next Save/Delete through this Store.
package flowstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/termai-core/termai/internal/workflow"
)

// folderNameRe is the closed set of characters §4.2 permits in a Flow's
// sanitized sub-folder name.
var folderNameRe = regexp.MustCompile(`^[A-Za-z0-9_\-/]*$`)

// Store persists Flow records under root/[folder/]<id>.json and
// caches directory listings, invalidated on write-through and on any
// out-of-band change an fsnotify watcher observes.
type Store struct {
	root string

	mu        sync.Mutex
	cache     []workflow.Flow
	cacheGood bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Open returns a Store rooted at root (typically Config.FlowsDir()),
// creating the directory if needed and starting a background watcher
// that invalidates the listing cache on out-of-band filesystem changes.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("flowstore: create root: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("flowstore: new watcher: %w", err)
	}
	if err := w.Add(root); err != nil {
		w.Close()
		return nil, fmt.Errorf("flowstore: watch root: %w", err)
	}

	s := &Store{root: root, watcher: w, done: make(chan struct{})}
	go s.watchLoop()
	return s, nil
}

func (s *Store) watchLoop() {
	for {
		select {
		case _, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.mu.Lock()
			s.cacheGood = false
			s.mu.Unlock()
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		case <-s.done:
			return
		}
	}
}

// Close stops the background watcher.
func (s *Store) Close() error {
	close(s.done)
	return s.watcher.Close()
}

// sanitizeFolder enforces §4.2's "only permitted characters are
// alphanumerics, _, -, /" rule, rejecting anything else outright rather
// than silently stripping characters. A folder that still names more than
// one level after cleaning (e.g. "a/b") is rejected too, since Load only
// searches one level deep.
func sanitizeFolder(folder string) (string, error) {
	if folder == "" {
		return "", nil
	}
	if !folderNameRe.MatchString(folder) {
		return "", fmt.Errorf("flowstore: invalid folder name %q", folder)
	}
	clean := filepath.Clean(folder)
	if clean == "." || filepath.IsAbs(clean) || filepath.Dir(clean) != "." {
		return "", fmt.Errorf("flowstore: invalid folder name %q", folder)
	}
	return clean, nil
}

func (s *Store) pathFor(folder, id string) (string, error) {
	clean, err := sanitizeFolder(folder)
	if err != nil {
		return "", err
	}
	if clean == "" {
		return filepath.Join(s.root, id+".json"), nil
	}
	return filepath.Join(s.root, clean, id+".json"), nil
}

// Save validates flow's graph (§4.2 "Graph validation"), rejecting any
// structural violation with no partial write, then writes the whole
// record atomically. UpdatedAt is refreshed on every save; CreatedAt is
// preserved if the flow already existed.
func (s *Store) Save(flow *workflow.Flow) error {
	if err := workflow.ValidateFlow(flow); err != nil {
		return err
	}

	path, err := s.pathFor(flow.Folder, flow.ID)
	if err != nil {
		return err
	}

	if existing, err := s.loadPath(path); err == nil {
		flow.CreatedAt = existing.CreatedAt
	} else if flow.CreatedAt.IsZero() {
		flow.CreatedAt = time.Now().UTC()
	}
	flow.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("flowstore: create folder: %w", err)
	}
	data, err := json.MarshalIndent(flow, "", "  ")
	if err != nil {
		return fmt.Errorf("flowstore: marshal flow: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("flowstore: write flow: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("flowstore: rename flow: %w", err)
	}

	s.mu.Lock()
	s.cacheGood = false
	s.mu.Unlock()
	return nil
}

// Load reads a single Flow by id, searching the root and then every
// immediate sub-folder (folders are one level deep per §4.2).
func (s *Store) Load(id string) (*workflow.Flow, error) {
	if flow, err := s.loadPath(filepath.Join(s.root, id+".json")); err == nil {
		return flow, nil
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("flowstore: read root: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if flow, err := s.loadPath(filepath.Join(s.root, e.Name(), id+".json")); err == nil {
			return flow, nil
		}
	}
	return nil, workflow.ErrFlowNotFound
}

func (s *Store) loadPath(path string) (*workflow.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var flow workflow.Flow
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("flowstore: unmarshal flow: %w", err)
	}
	return &flow, nil
}

// Delete removes a flow by id, searching the same locations as Load.
func (s *Store) Delete(id string) error {
	flow, err := s.Load(id)
	if err != nil {
		return err
	}
	path, err := s.pathFor(flow.Folder, flow.ID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("flowstore: remove flow: %w", err)
	}
	s.mu.Lock()
	s.cacheGood = false
	s.mu.Unlock()
	return nil
}

// List returns every persisted Flow, newest-updated first. The listing
// is served from an in-memory cache that is invalidated on every Save/
// Delete and on any out-of-band filesystem change observed by the
// fsnotify watcher, rebuilt lazily on the next List call.
func (s *Store) List() ([]workflow.Flow, error) {
	s.mu.Lock()
	if s.cacheGood {
		out := append([]workflow.Flow(nil), s.cache...)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	flows, err := s.scan()
	if err != nil {
		return nil, err
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].UpdatedAt.After(flows[j].UpdatedAt) })

	s.mu.Lock()
	s.cache = flows
	s.cacheGood = true
	s.mu.Unlock()
	return append([]workflow.Flow(nil), flows...), nil
}

func (s *Store) scan() ([]workflow.Flow, error) {
	var flows []workflow.Flow
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		flow, err := s.loadPath(path)
		if err != nil {
			return nil // skip unreadable/partial files rather than failing the whole listing
		}
		flows = append(flows, *flow)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("flowstore: scan: %w", err)
	}
	return flows, nil
}

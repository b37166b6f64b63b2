package execstore

import (
	"testing"
	"time"

	"github.com/termai-core/termai/internal/workflow"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	exec := &workflow.Execution{
		ID:        "exec-1",
		FlowID:    "flow-1",
		StartedAt: time.Now().UTC().Truncate(time.Second),
		Status:    workflow.StatusCompleted,
		Results: map[string]*workflow.NodeResult{
			"a": {Status: workflow.StatusSuccess, Shell: &workflow.ShellPayload{Stdout: "ok", ExitCode: 0}},
		},
	}
	if err := s.Save(exec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("exec-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != exec.ID || got.Status != exec.Status || !got.StartedAt.Equal(exec.StartedAt) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, exec)
	}
	if got.Results["a"].Shell.Stdout != "ok" {
		t.Errorf("results not round-tripped: %+v", got.Results["a"])
	}
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Load("missing"); err == nil {
		t.Error("expected an error loading a missing execution")
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	first := &workflow.Execution{ID: "first", FlowID: "f", StartedAt: time.Now(), Status: workflow.StatusCompleted, Results: map[string]*workflow.NodeResult{}}
	if err := s.Save(first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	second := &workflow.Execution{ID: "second", FlowID: "f", StartedAt: time.Now(), Status: workflow.StatusCompleted, Results: map[string]*workflow.NodeResult{}}
	if err := s.Save(second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "second" {
		t.Errorf("list = %+v, want second first", list)
	}
}

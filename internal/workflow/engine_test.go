package workflow

import (
	"context"
	"testing"
)

// branchFlow builds: start (branch, always true) -> yes (true handle),
// start -> no (false handle). Only "yes" should run; "no" must be
// skipped without ever executing, per §4.2's branch successor filtering.
func branchFlow() *Flow {
	return &Flow{
		ID: "branch-flow",
		Nodes: []Node{
			{ID: "start", Type: NodeBranch, Data: map[string]interface{}{"condition": `"ok" == "ok"`}},
			{ID: "yes", Type: NodeShell, Data: map[string]interface{}{"command": "true"}},
			{ID: "no", Type: NodeShell, Data: map[string]interface{}{"command": "true"}},
		},
		Edges: []Edge{
			{ID: "e1", Source: "start", Target: "yes", SourceHandle: HandleTrue},
			{ID: "e2", Source: "start", Target: "no", SourceHandle: HandleFalse},
		},
	}
}

func TestEngineRun_BranchOnlyRunsTakenHandle(t *testing.T) {
	engine := NewEngine(EngineOptions{})
	exec, err := engine.Run(context.Background(), branchFlow())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	start := exec.Results["start"]
	if start.Status != StatusSuccess || start.Branch == nil || !start.Branch.ConditionResult {
		t.Fatalf("expected start to succeed with ConditionResult=true, got %+v", start)
	}

	yes := exec.Results["yes"]
	if yes.Status != StatusSuccess {
		t.Errorf("expected the true-handle successor to run, got status %q", yes.Status)
	}

	no := exec.Results["no"]
	if no.Status != StatusSkipped {
		t.Errorf("expected the false-handle successor to be skipped, got status %q", no.Status)
	}
}

func TestEngineRun_RejectsInvalidFlow(t *testing.T) {
	flow := &Flow{
		Nodes: []Node{{ID: "a", Type: NodeShell}, {ID: "a", Type: NodeShell}},
	}
	engine := NewEngine(EngineOptions{})
	if _, err := engine.Run(context.Background(), flow); err == nil {
		t.Fatal("expected Run to reject an invalid flow before executing any node")
	}
}

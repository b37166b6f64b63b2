package workflow

import (
	"errors"
	"testing"
)

func shellNode(id string) Node {
	return Node{ID: id, Type: NodeShell, Data: map[string]interface{}{"command": "echo " + id}}
}

func edge(id, source, target string, handle SourceHandle) Edge {
	return Edge{ID: id, Source: source, Target: target, SourceHandle: handle}
}

func TestValidateFlow_RejectsCycle(t *testing.T) {
	flow := &Flow{
		ID:    "f1",
		Nodes: []Node{shellNode("a"), shellNode("b"), shellNode("c")},
		Edges: []Edge{
			edge("e1", "a", "b", HandleDefault),
			edge("e2", "b", "c", HandleDefault),
			edge("e3", "c", "a", HandleDefault),
		},
	}
	err := ValidateFlow(flow)
	if err == nil {
		t.Fatal("expected cycle rejection, got nil error")
	}
	if !errors.Is(err, ErrCyclicFlow) {
		t.Errorf("expected ErrCyclicFlow, got %v", err)
	}
}

func TestValidateFlow_AcceptsDAG(t *testing.T) {
	flow := &Flow{
		ID:    "f2",
		Nodes: []Node{shellNode("a"), shellNode("b"), shellNode("c")},
		Edges: []Edge{
			edge("e1", "a", "b", HandleDefault),
			edge("e1b", "a", "c", HandleDefault),
			edge("e2", "b", "c", HandleDefault),
		},
	}
	if err := ValidateFlow(flow); err != nil {
		t.Fatalf("expected a valid DAG to pass validation, got %v", err)
	}
}

func TestValidateFlow_RejectsDuplicateNodeID(t *testing.T) {
	flow := &Flow{
		ID:    "f3",
		Nodes: []Node{shellNode("a"), shellNode("a")},
	}
	err := ValidateFlow(flow)
	if !errors.Is(err, ErrInvalidFlow) {
		t.Errorf("expected ErrInvalidFlow for duplicate node id, got %v", err)
	}
}

func TestValidateFlow_RejectsMixedBranchHandles(t *testing.T) {
	branch := Node{ID: "b", Type: NodeBranch, Data: map[string]interface{}{"condition": "{{a.stdout}} == ok"}}
	flow := &Flow{
		ID:    "f4",
		Nodes: []Node{shellNode("a"), branch, shellNode("c"), shellNode("d")},
		Edges: []Edge{
			edge("e1", "a", "b", HandleDefault),
			edge("e2", "b", "c", HandleDefault),
			edge("e3", "b", "d", HandleTrue),
		},
	}
	err := ValidateFlow(flow)
	if !errors.Is(err, ErrInvalidFlow) {
		t.Errorf("expected ErrInvalidFlow for mixed default/true handles, got %v", err)
	}
}

func TestFindCycle_AcyclicReturnsNil(t *testing.T) {
	flow := &Flow{
		Nodes: []Node{shellNode("a"), shellNode("b")},
		Edges: []Edge{edge("e1", "a", "b", HandleDefault)},
	}
	if cyc := buildGraph(flow).findCycle(); cyc != nil {
		t.Errorf("expected no cycle, got %v", cyc)
	}
}

func TestEdgeFires_BranchHandleFiltering(t *testing.T) {
	branch := &Node{ID: "b", Type: NodeBranch}
	trueEdge := edge("e1", "b", "yes", HandleTrue)
	falseEdge := edge("e2", "b", "no", HandleFalse)

	taken := &NodeResult{Status: StatusSuccess, Branch: &BranchPayload{ConditionResult: true}}
	if !edgeFires(branch, trueEdge, taken) {
		t.Error("expected the true edge to fire when ConditionResult is true")
	}
	if edgeFires(branch, falseEdge, taken) {
		t.Error("expected the false edge not to fire when ConditionResult is true")
	}

	notTaken := &NodeResult{Status: StatusSuccess, Branch: &BranchPayload{ConditionResult: false}}
	if edgeFires(branch, trueEdge, notTaken) {
		t.Error("expected the true edge not to fire when ConditionResult is false")
	}
	if !edgeFires(branch, falseEdge, notTaken) {
		t.Error("expected the false edge to fire when ConditionResult is false")
	}
}

func TestEdgeFires_NonBranchAlwaysFires(t *testing.T) {
	shell := &Node{ID: "s", Type: NodeShell}
	e := edge("e1", "s", "next", HandleDefault)
	res := &NodeResult{Status: StatusSuccess}
	if !edgeFires(shell, e, res) {
		t.Error("expected a non-branch predecessor's default edge to always fire")
	}
}

func TestUnreachableNodes_FlagsSecondEntryInSameComponent(t *testing.T) {
	// a and b are both zero-indegree, but joined into one weakly connected
	// component by b -> c -> (back to a would cycle, so instead route
	// through a shared descendant reachable from both).
	flow := &Flow{
		Nodes: []Node{shellNode("a"), shellNode("b"), shellNode("c")},
		Edges: []Edge{
			edge("e1", "a", "c", HandleDefault),
			edge("e2", "b", "c", HandleDefault),
		},
	}
	warn := UnreachableNodes(flow)
	if len(warn) != 1 {
		t.Fatalf("expected exactly one flagged node, got %v", warn)
	}
	if warn[0] != "a" && warn[0] != "b" {
		t.Errorf("expected the flagged node to be one of the two entries, got %q", warn[0])
	}
}

func TestUnreachableNodes_SeparateComponentsNotFlagged(t *testing.T) {
	flow := &Flow{
		Nodes: []Node{shellNode("a"), shellNode("b")},
	}
	if warn := UnreachableNodes(flow); warn != nil {
		t.Errorf("expected no warnings for two disjoint single-node components, got %v", warn)
	}
}

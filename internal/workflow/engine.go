package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/termai-core/termai/internal/arbiter"
	"github.com/termai-core/termai/internal/llmchat"
)

// NodeEvent is emitted once per node state transition, for callers that
// want live progress (e.g. a CLI progress bar or a future UI).
type NodeEvent struct {
	NodeID string
	Status ExecutionStatus
	Result *NodeResult
}

// Engine executes one Flow against an optional attached Session and an
// optional LLM capability. Both are nilable: a flow with no shell nodes
// never needs a session, one with no ai nodes never needs an LLM.
type Engine struct {
	logger  *slog.Logger
	session *arbiter.Session
	llm     llmchat.Provider

	mu        sync.Mutex
	cancelled bool

	events chan NodeEvent
}

// EngineOptions configures NewEngine.
type EngineOptions struct {
	Session *arbiter.Session
	LLM     llmchat.Provider
	Logger  *slog.Logger
}

func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger, session: opts.Session, llm: opts.LLM}
}

// Events returns a channel of per-node lifecycle events for the
// lifetime of the Engine. Sends are non-blocking, matching the
// Arbiter's Subscribe contract: a slow or absent reader drops events
// rather than stalling execution.
func (e *Engine) Events() <-chan NodeEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.events == nil {
		e.events = make(chan NodeEvent, 256)
	}
	return e.events
}

func (e *Engine) emit(ev NodeEvent) {
	e.mu.Lock()
	ch := e.events
	e.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}

// Cancel flips the execution to cancelled. Newly-ready nodes observe
// this and exit without executing; in-flight shell nodes are preempted
// via the attached Session's interrupt; in-flight AI nodes are left to
// complete and their results are discarded (no side-effect assumptions
// on external providers).
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.cancelled = true
	e.mu.Unlock()
	if e.session != nil {
		e.session.InterruptAgent()
	}
}

func (e *Engine) isCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// Run validates flow, then executes it to completion (or cancellation)
// and returns the terminal Execution record. An invalid flow is returned
// as an error; a flow with no entry node yields a failed Execution whose
// Error is ErrNoEntry's message.
func (e *Engine) Run(ctx context.Context, flow *Flow) (*Execution, error) {
	if err := validateFlow(flow); err != nil {
		return nil, err
	}
	g := buildGraph(flow)
	entries := g.entrySet()
	if len(entries) == 0 {
		now := time.Now()
		return &Execution{
			ID:        uuid.NewString(),
			FlowID:    flow.ID,
			StartedAt: now,
			EndedAt:   &now,
			Status:    StatusFailed,
			Results:   map[string]*NodeResult{},
			Error:     ErrNoEntry.Error(),
		}, nil
	}

	exec := &Execution{
		ID:        uuid.NewString(),
		FlowID:    flow.ID,
		StartedAt: time.Now(),
		Status:    StatusRunning,
		Results:   make(map[string]*NodeResult, len(flow.Nodes)),
	}
	if e.session != nil {
		exec.SessionID = e.session.ID
	}
	for id := range g.nodes {
		exec.Results[id] = &NodeResult{Status: StatusPending}
	}

	var mu sync.Mutex

	// readiness classifies a pending node against its predecessors: not
	// ready (still waiting), ready to execute, or skip (a predecessor
	// failed without continueOnError, was itself skipped, or — for a
	// branch predecessor — took the other handle, per §4.2's successor
	// filtering).
	readiness := func(id string) (ready bool, skip bool) {
		for _, in := range g.incoming[id] {
			pred := exec.Results[in.Source]
			switch pred.Status {
			case StatusSuccess:
				if !edgeFires(g.nodes[in.Source], in, pred) {
					return false, true
				}
			case StatusSkipped:
				return false, true
			case StatusFailed:
				continueOnError, _ := g.nodes[id].Data["continueOnError"].(bool)
				if continueOnError {
					continue
				}
				return false, true
			default:
				return false, false
			}
		}
		return true, false
	}

	// Wavefront scheduler: each pass finds every pending node whose
	// predecessors have all reached a terminal status, runs the ready
	// ones concurrently and marks the rest skipped, then repeats until a
	// pass makes no progress. Because the flow is acyclic this always
	// terminates in at most len(nodes) passes.
	for {
		var toRun, toSkip []string
		mu.Lock()
		for id, res := range exec.Results {
			if res.Status != StatusPending {
				continue
			}
			ready, skip := readiness(id)
			switch {
			case skip:
				toSkip = append(toSkip, id)
			case ready:
				toRun = append(toRun, id)
			}
		}
		for _, id := range toSkip {
			exec.Results[id].Status = StatusSkipped
		}
		mu.Unlock()

		for _, id := range toSkip {
			e.emit(NodeEvent{NodeID: id, Status: StatusSkipped, Result: exec.Results[id]})
		}

		if len(toRun) == 0 && len(toSkip) == 0 {
			break
		}
		if len(toRun) == 0 {
			continue
		}
		if e.isCancelled() {
			mu.Lock()
			for id, res := range exec.Results {
				if res.Status == StatusPending {
					res.Status = StatusSkipped
				}
			}
			mu.Unlock()
			break
		}

		// errgroup runs this wavefront's ready nodes concurrently. runNode
		// never returns an error itself (node failure is recorded in its
		// NodeResult, not propagated) so Wait only ever blocks for
		// completion, never short-circuits the rest of the wave.
		var wave errgroup.Group
		for _, id := range toRun {
			id := id
			wave.Go(func() error {
				e.runNode(ctx, g, exec, &mu, id)
				return nil
			})
		}
		_ = wave.Wait()
	}

	now := time.Now()
	exec.EndedAt = &now
	exec.Status = finalStatus(exec, e.isCancelled())
	return exec, nil
}

func finalStatus(exec *Execution, cancelled bool) ExecutionStatus {
	if cancelled {
		return StatusCancelled
	}
	for _, r := range exec.Results {
		if r.Status == StatusFailed {
			return StatusFailed
		}
	}
	return StatusCompleted
}

func (e *Engine) runNode(ctx context.Context, g *graph, exec *Execution, mu *sync.Mutex, id string) {
	mu.Lock()
	node := g.nodes[id]
	res := exec.Results[id]
	res.Status = StatusRunning
	res.StartedAt = time.Now()
	snapshot := snapshotResults(exec.Results)
	mu.Unlock()
	e.emit(NodeEvent{NodeID: id, Status: StatusRunning, Result: res})

	if e.isCancelled() {
		mu.Lock()
		res.Status = StatusSkipped
		res.Duration = time.Since(res.StartedAt)
		mu.Unlock()
		e.emit(NodeEvent{NodeID: id, Status: StatusSkipped, Result: res})
		return
	}

	data := interpolateData(node.Data, snapshot)

	var execErr error
	switch node.Type {
	case NodeShell:
		payload, err := e.execShellNode(ctx, data)
		if err != nil {
			execErr = err
		} else {
			mu.Lock()
			res.Shell = payload
			mu.Unlock()
		}
	case NodeAI:
		payload, err := e.execAINode(ctx, data)
		if err != nil {
			execErr = err
		} else {
			mu.Lock()
			res.AI = payload
			mu.Unlock()
		}
	case NodeBranch:
		mu.Lock()
		res.Branch = execBranchNode(data)
		mu.Unlock()
	case NodeFile:
		payload, err := execFileNode(data)
		if err != nil {
			execErr = err
		} else {
			mu.Lock()
			res.File = payload
			mu.Unlock()
		}
	}

	mu.Lock()
	res.Duration = time.Since(res.StartedAt)
	switch {
	case node.Type == NodeAI && e.isCancelled():
		// Cancelled while the LLM call was in flight: its result is dropped.
		res.AI = nil
		res.Status = StatusSkipped
	case execErr != nil:
		res.Status = StatusFailed
		res.Error = execErr.Error()
	default:
		res.Status = StatusSuccess
	}
	status := res.Status
	mu.Unlock()
	e.emit(NodeEvent{NodeID: id, Status: status, Result: res})
}

func snapshotResults(results map[string]*NodeResult) map[string]*NodeResult {
	out := make(map[string]*NodeResult, len(results))
	for k, v := range results {
		copy := *v
		out[k] = &copy
	}
	return out
}

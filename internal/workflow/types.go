// Package workflow implements the Workflow Engine (component F): a DAG
// of shell/ai/branch/file nodes executed against an attached Arbiter
// session, with variable interpolation and a deliberately restricted
// condition evaluator. Grounded in the teacher's orchestrator package
// (internal/orchestrator/build.go's prompt-assembly pipeline) for the
// overall "resolve, interpolate, execute" shape, adapted here into a
// graph scheduler instead of a linear prompt builder.
package workflow

import "time"

// NodeType is the closed set of node kinds a Flow may contain.
type NodeType string

const (
	NodeShell  NodeType = "shell"
	NodeAI     NodeType = "ai"
	NodeBranch NodeType = "branch"
	NodeFile   NodeType = "file"
)

// SourceHandle is the closed set of edge exits. Non-branch nodes only
// ever emit "default"; branch nodes emit at most one "true" and one
// "false" edge, or else a single "default" edge.
type SourceHandle string

const (
	HandleDefault SourceHandle = "default"
	HandleTrue    SourceHandle = "true"
	HandleFalse   SourceHandle = "false"
)

// Position is purely cosmetic (editor canvas coordinates); the engine
// never reads it.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is one vertex of a Flow. Data carries the per-type fields
// described in SPEC_FULL.md §4.2 ("Per-type execution"), kept as a
// loosely typed map so a Flow round-trips through YAML/JSON without the
// engine needing a variant type per node kind.
type Node struct {
	ID       string                 `json:"id" yaml:"id"`
	Type     NodeType               `json:"type" yaml:"type"`
	Data     map[string]interface{} `json:"data" yaml:"data"`
	Position Position               `json:"position" yaml:"position"`
}

// Edge is one directed arc of a Flow.
type Edge struct {
	ID           string       `json:"id" yaml:"id"`
	Source       string       `json:"source" yaml:"source"`
	Target       string       `json:"target" yaml:"target"`
	SourceHandle SourceHandle `json:"sourceHandle" yaml:"sourceHandle"`
}

// Flow is a saved, named DAG.
type Flow struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Folder    string    `json:"folder,omitempty" yaml:"folder,omitempty"`
	Nodes     []Node    `json:"nodes" yaml:"nodes"`
	Edges     []Edge    `json:"edges" yaml:"edges"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// ExecutionStatus is the closed set of terminal/non-terminal states for
// an Execution or a NodeResult.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusSuccess   ExecutionStatus = "success" // node-only
	StatusCompleted ExecutionStatus = "completed" // execution-only
	StatusFailed    ExecutionStatus = "failed"
	StatusSkipped   ExecutionStatus = "skipped" // node-only
	StatusCancelled ExecutionStatus = "cancelled"
)

// NodeResult is the per-node outcome of one Execution.
type NodeResult struct {
	Status    ExecutionStatus `json:"status" yaml:"status"`
	StartedAt time.Time       `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
	Duration  time.Duration   `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Exactly one of the following is populated, matching the node's type.
	Shell  *ShellPayload  `json:"shell,omitempty" yaml:"shell,omitempty"`
	AI     *AIPayload     `json:"ai,omitempty" yaml:"ai,omitempty"`
	Branch *BranchPayload `json:"branch,omitempty" yaml:"branch,omitempty"`
	File   *FilePayload   `json:"file,omitempty" yaml:"file,omitempty"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ShellPayload is the shell node's result.
type ShellPayload struct {
	Stdout   string `json:"stdout" yaml:"stdout"`
	Stderr   string `json:"stderr" yaml:"stderr"`
	ExitCode int    `json:"exitCode" yaml:"exitCode"`
	Cwd      string `json:"cwd,omitempty" yaml:"cwd,omitempty"`
}

// AIPayload is the ai node's result.
type AIPayload struct {
	Response string `json:"response" yaml:"response"`
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
}

// BranchPayload is the branch node's result. Evaluation is total: a
// condition that matches no comparison rule is judged by plain
// truthiness, Evaluated records what was actually tested, and the node
// status is never failed.
type BranchPayload struct {
	ConditionResult bool   `json:"conditionResult" yaml:"conditionResult"`
	Evaluated       string `json:"evaluated" yaml:"evaluated"`
}

// FilePayload is the file node's result.
type FilePayload struct {
	FilePath     string `json:"filePath" yaml:"filePath"`
	Content      string `json:"content,omitempty" yaml:"content,omitempty"`
	BytesWritten int    `json:"bytesWritten,omitempty" yaml:"bytesWritten,omitempty"`
	Exists       bool   `json:"exists,omitempty" yaml:"exists,omitempty"`
}

// Execution is one run of a Flow.
type Execution struct {
	ID        string                 `json:"id" yaml:"id"`
	FlowID    string                 `json:"flowId" yaml:"flowId"`
	SessionID string                 `json:"sessionId,omitempty" yaml:"sessionId,omitempty"`
	StartedAt time.Time              `json:"startedAt" yaml:"startedAt"`
	EndedAt   *time.Time             `json:"endedAt,omitempty" yaml:"endedAt,omitempty"`
	Status    ExecutionStatus        `json:"status" yaml:"status"`
	Results   map[string]*NodeResult `json:"results" yaml:"results"`
	Error     string                 `json:"error,omitempty" yaml:"error,omitempty"`
}

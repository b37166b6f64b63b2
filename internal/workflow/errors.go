package workflow

import "errors"

// Sentinel errors for the operational kinds in SPEC_FULL.md §7. Callers
// compare with errors.Is.
var (
	ErrInvalidFlow  = errors.New("workflow: invalid flow")
	ErrCyclicFlow   = errors.New("workflow: cyclic flow")
	ErrNoEntry      = errors.New("workflow: no entry")
	ErrLLMUnavail   = errors.New("workflow: llm unavailable")
	ErrTimedOut     = errors.New("workflow: timed out")
	ErrNotFound     = errors.New("workflow: not found")
	ErrPathEscape   = errors.New("workflow: path escape")
	ErrFlowNotFound = errors.New("workflow: flow not found")
)

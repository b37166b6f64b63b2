package arbiter

import "errors"

// Sentinel errors for the operational kinds in SPEC_FULL.md §7 that the
// Session Arbiter itself raises. Callers compare with errors.Is.
var (
	// ErrSpawnFailed means the configured shell binary could not be
	// started (missing or no permission).
	ErrSpawnFailed = errors.New("arbiter: spawn failed")

	// ErrBusy means WriteAgent was called while another agent call was
	// still in flight on this session.
	ErrBusy = errors.New("arbiter: busy")

	// ErrClosed means the PTY child has exited; all further writes fail.
	ErrClosed = errors.New("arbiter: closed")
)

package arbiter

import (
	"context"
	"time"

	"github.com/termai-core/termai/internal/fingerprint"
)

// defaultTypingDelay spaces out synthetic keystrokes so a PTY-attached
// shell-integration hook (which itself reads a line at a time) never
// sees the command arrive as a single unrealistic burst.
const defaultTypingDelay = 8 * time.Millisecond

// settleAfterPrompt is how long a freshly observed prompt must remain
// quiet before WriteAgent treats the command as finished. Guards
// against a prompt string appearing mid-output (e.g. echoed by the
// command itself) before the real shell has regained control.
const settleAfterPrompt = 50 * time.Millisecond

// shapeMatchMinElapsed is the minimum time since the command was
// submitted before a prompt-shaped tail (without an intervening CR) is
// trusted — protects against matching the original line being echoed
// back before it has even executed.
const shapeMatchMinElapsed = 500 * time.Millisecond

// WriteAgent delivers command on behalf of the agent writer: it types
// the bytes (respecting TypingDelay, checking for interruption after
// every byte), optionally submits with a carriage return, then — if
// WaitForCompletion — blocks for the shell to return to an idle prompt
// using the race described in SPEC_FULL.md §4.1: (a) a prompt shape first
// observed after the CR was sent and at least settleAfterPrompt old, (b) any
// prompt-shaped tail once shapeMatchMinElapsed has passed since the CR, or (c) Timeout
// elapses, which is reported via Result.TimedOut rather than as an
// error (a timeout is not proof that the command failed).
func (s *Session) WriteAgent(ctx context.Context, command string, opts WriteAgentOptions) (Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Result{}, ErrClosed
	}
	if s.agentActive {
		s.mu.Unlock()
		return Result{}, ErrBusy
	}
	intr := newInterruptSignal()
	s.agentActive = true
	s.agentIntr = intr

	cmdID := ""
	if opts.Execute && s.history != nil {
		id, err := s.history.OpenCommand(context.Background(), s.ID, command)
		if err == nil {
			cmdID = id
			s.inFlightCmdID = id
			s.inFlightCmd = command
		}
	}
	s.mu.Unlock()

	start := time.Now()
	startOffset := s.ring.Len()

	defer func() {
		s.mu.Lock()
		if s.agentIntr == intr {
			s.agentActive = false
			s.agentIntr = nil
		}
		s.mu.Unlock()
	}()

	delay := opts.TypingDelay
	if delay <= 0 {
		delay = defaultTypingDelay
	}

	for i := 0; i < len(command); i++ {
		select {
		case <-intr.ch:
			return s.interruptedResult(start, startOffset, cmdID), nil
		case <-ctx.Done():
			return s.interruptedResult(start, startOffset, cmdID), ctx.Err()
		default:
		}
		if _, err := s.ptmx.Write([]byte{command[i]}); err != nil {
			return Result{}, err
		}
		if delay > 0 && i < len(command)-1 {
			select {
			case <-time.After(delay):
			case <-intr.ch:
				return s.interruptedResult(start, startOffset, cmdID), nil
			case <-ctx.Done():
				return s.interruptedResult(start, startOffset, cmdID), ctx.Err()
			}
		}
	}

	if opts.Execute {
		if _, err := s.ptmx.Write([]byte{'\r'}); err != nil {
			return Result{}, err
		}
	}
	submitted := time.Now()

	if !opts.WaitForCompletion {
		return Result{Output: s.ring.Since(startOffset), Cwd: s.Cwd()}, nil
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.After(timeout)
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-intr.ch:
			return s.interruptedResult(start, startOffset, cmdID), nil
		case <-ctx.Done():
			return s.interruptedResult(start, startOffset, cmdID), ctx.Err()
		case <-deadline:
			return Result{
				TimedOut: true,
				Duration: time.Since(start),
				Output:   s.ring.Since(startOffset),
				Cwd:      s.Cwd(),
			}, nil
		case <-ticker.C:
			s.mu.Lock()
			lastPrompt := s.lastPromptAt
			s.mu.Unlock()
			elapsed := time.Since(start)
			if !lastPrompt.IsZero() && lastPrompt.After(submitted) && time.Since(lastPrompt) >= settleAfterPrompt {
				return Result{Duration: elapsed, Output: s.ring.Since(startOffset), Cwd: s.Cwd()}, nil
			}
			if time.Since(submitted) >= shapeMatchMinElapsed && fingerprint.LooksLikePrompt(s.ring.Tail(100)) {
				return Result{Duration: elapsed, Output: s.ring.Since(startOffset), Cwd: s.Cwd()}, nil
			}
		}
	}
}

func (s *Session) interruptedResult(start time.Time, startOffset int64, cmdID string) Result {
	if cmdID != "" {
		s.mu.Lock()
		if s.inFlightCmdID == cmdID {
			s.inFlightCmdID = ""
			s.inFlightCmd = ""
		}
		s.mu.Unlock()
	}
	return Result{
		Interrupted: true,
		Duration:    time.Since(start),
		Output:      s.ring.Since(startOffset),
		Cwd:         s.Cwd(),
	}
}

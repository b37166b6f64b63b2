// Package arbiter implements the Session Arbiter (component C):
// mediates a human typist and an autonomous agent writing to a single
// PTY, tracks working directory via OSC-7, detects shell-prompt
// boundaries, and exposes a correctness-preserving "agent types, waits,
// and reports" call. See SPEC_FULL.md §4.1.
package arbiter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/termai-core/termai/internal/config"
	"github.com/termai-core/termai/internal/fingerprint"
	"github.com/termai-core/termai/internal/historystore"
	"github.com/termai-core/termai/internal/vterm"
)

// EventKind is the closed set of lifecycle events a Session emits.
type EventKind string

const (
	EventOutput     EventKind = "output"
	EventCwdChanged EventKind = "cwd-changed"
	EventInterrupt  EventKind = "interrupted"
	EventUserAbort  EventKind = "user-abort"
	EventExit       EventKind = "exit"
)

// Event is one Session lifecycle notification. Fields not relevant to
// Kind are left zero.
type Event struct {
	Kind     EventKind
	Output   []byte
	Cwd      string
	ExitCode int
}

// Options configures Open.
type Options struct {
	Shell string // defaults to cfg.DefaultShell, then $SHELL, then /bin/sh
	Cwd   string
	Cols  uint16
	Rows  uint16

	Config  *config.Config
	Logger  *slog.Logger
	History *historystore.Store // optional; nil disables Command History wiring
	UseVTE  bool                // optional reconnect-snapshot side channel
}

// WriteAgentOptions configures WriteAgent.
type WriteAgentOptions struct {
	TypingDelay       time.Duration
	Execute           bool
	WaitForCompletion bool
	Timeout           time.Duration
}

// DefaultWriteAgentOptions mirrors the spec's stated defaults
// (execute=true, waitForCompletion=true).
func DefaultWriteAgentOptions() WriteAgentOptions {
	return WriteAgentOptions{Execute: true, WaitForCompletion: true, Timeout: 30 * time.Second}
}

// Result is what WriteAgent returns.
type Result struct {
	Interrupted bool
	TimedOut    bool
	Duration    time.Duration
	Output      []byte
	Cwd         string
}

// interruptSignal is a once-closeable channel used to preempt an
// in-flight WriteAgent call from either WriteUser or InterruptAgent.
type interruptSignal struct {
	ch   chan struct{}
	once sync.Once
}

func newInterruptSignal() *interruptSignal {
	return &interruptSignal{ch: make(chan struct{})}
}

func (s *interruptSignal) fire() {
	s.once.Do(func() { close(s.ch) })
}

// Session owns one PTY child process exclusively: one ring buffer, one
// cwd string, one agentActive flag, one lastPromptAt timestamp. See
// SPEC_FULL.md §3 "Session".
type Session struct {
	ID string

	logger *slog.Logger
	cfg    *config.Config

	ptmx  *os.File
	cmd   *exec.Cmd
	shell shellFamily

	ring *ring
	vt   *vterm.Buffer // optional reconnect side channel, never authoritative

	mu           sync.Mutex
	agentActive  bool
	agentIntr    *interruptSignal
	cwd          string
	lastPromptAt time.Time
	closed       bool
	exitCode     int

	subMu sync.Mutex
	subs  []chan Event

	history        *historystore.Store
	inFlightCmdID  string
	inFlightCmd    string

	done chan struct{}
}

// Open spawns a PTY child and begins streaming its output. It writes the
// shell-integration preamble for the detected shell family (enabling
// I-cwd) and then clears the screen so the setup lines are invisible.
func Open(opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Defaults()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shellPath := opts.Shell
	if shellPath == "" {
		shellPath = cfg.DefaultShell
	}
	if shellPath == "" {
		shellPath = os.Getenv("SHELL")
	}
	if shellPath == "" {
		shellPath = "/bin/sh"
	}

	cmd := exec.Command(shellPath)
	cmd.Env = buildChildEnv()
	if opts.Cwd != "" {
		cmd.Dir = opts.Cwd
	}

	cols, rows := opts.Cols, opts.Rows
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	s := &Session{
		ID:      uuid.NewString(),
		logger:  logger,
		cfg:     cfg,
		ptmx:    ptmx,
		cmd:     cmd,
		shell:   detectShellFamily(shellPath),
		ring:    newRing(cfg.RingBufferCap, cfg.RingBufferTrim),
		history: opts.History,
		cwd:     opts.Cwd,
		done:    make(chan struct{}),
	}
	if opts.UseVTE {
		s.vt = vterm.New(int(cols), int(rows))
	}

	if snippet := preamble(s.shell, cfg.ShellPreambleOverrides); snippet != "" {
		_, _ = ptmx.Write([]byte(snippet))
	} else {
		logger.Warn("arbiter: unrecognized shell family, cwd tracking disabled", "shell", shellPath)
	}

	go s.readLoop()
	go s.waitExit()

	return s, nil
}

func buildChildEnv() []string {
	env := os.Environ()
	env = append(env, "TERM=xterm-256color", "COLORTERM=truecolor")
	return env
}

// readLoop implements the output handling pipeline from §4.1: append to
// ring, emit to subscribers, scan OSC-7, examine for a prompt shape.
func (s *Session) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			s.ring.Write(chunk)
			if s.vt != nil {
				_, _ = s.vt.Write(chunk)
			}
			s.publish(Event{Kind: EventOutput, Output: chunk})
			s.scanForCwd(chunk)
			s.scanForPrompt()
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) scanForCwd(chunk []byte) {
	path, found := scanOSC7(chunk)
	if !found {
		return
	}
	s.mu.Lock()
	changed := path != s.cwd
	if changed {
		s.cwd = path
	}
	s.mu.Unlock()
	if changed {
		s.publish(Event{Kind: EventCwdChanged, Cwd: path})
	}
}

func (s *Session) scanForPrompt() {
	tail := s.ring.Tail(100)
	if !fingerprint.LooksLikePrompt(tail) {
		return
	}
	s.mu.Lock()
	s.lastPromptAt = time.Now()
	cmdID, cmd := s.inFlightCmdID, s.inFlightCmd
	s.inFlightCmdID = ""
	s.inFlightCmd = ""
	s.mu.Unlock()

	if cmdID != "" && s.history != nil {
		exitCode := extractExitCode(s.ring.Tail(200))
		patterns := matchErrorPatterns(cmd, s.ring.Tail(4096))
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.history.CloseCommand(ctx, cmdID, exitCode, patterns); err != nil {
			s.logger.Warn("arbiter: close command history record", "err", err)
		}
		cancel()
	}
}

func (s *Session) waitExit() {
	err := s.cmd.Wait()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	s.mu.Lock()
	s.closed = true
	s.exitCode = exitCode
	s.mu.Unlock()
	close(s.done)
	s.publish(Event{Kind: EventExit, ExitCode: exitCode})
}

// Subscribe registers ch to receive every Event the Session emits, in
// observation order. The caller must drain ch promptly — sends are
// non-blocking and a full channel simply drops the event, per §5's
// "subscribers must not block the Arbiter".
func (s *Session) Subscribe(ch chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, ch)
}

// Unsubscribe removes a previously registered channel.
func (s *Session) Unsubscribe(ch chan Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, c := range s.subs {
		if c == ch {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *Session) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// WriteUser enforces I-excl: if the agent is active, it is interrupted
// (ETX sent, agentActive cleared) before the human bytes are delivered.
func (s *Session) WriteUser(bytes []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	var intr *interruptSignal
	if s.agentActive {
		intr = s.agentIntr
		s.agentActive = false
		s.agentIntr = nil
	}
	s.mu.Unlock()

	if intr != nil {
		_, _ = s.ptmx.Write([]byte{0x03})
		intr.fire()
		s.publish(Event{Kind: EventUserAbort})
	}

	if _, err := s.ptmx.Write(bytes); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

// InterruptAgent flips agentActive to false and sends ETX, if an agent
// call is in flight. Idempotent.
func (s *Session) InterruptAgent() {
	s.mu.Lock()
	intr := s.agentIntr
	active := s.agentActive
	s.agentActive = false
	s.agentIntr = nil
	s.mu.Unlock()

	if !active || intr == nil {
		return
	}
	_, _ = s.ptmx.Write([]byte{0x03})
	intr.fire()
	s.publish(Event{Kind: EventInterrupt})
}

// Resize changes the terminal dimensions, best-effort.
func (s *Session) Resize(cols, rows uint16) {
	_ = pty.Setsize(s.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
	if s.vt != nil {
		s.vt.Resize(int(cols), int(rows))
	}
}

// OutputSince returns the last ≤ maxLines lines of the ring.
func (s *Session) OutputSince(maxLines int) []string {
	return s.ring.Lines(maxLines)
}

// Cwd returns the last value learned from shell integration.
func (s *Session) Cwd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

// Snapshot returns a reconnect-ready ANSI payload built from the
// side-channel VTerm, independent of OutputSince/the byte ring. Returns
// nil if the session was not opened with UseVTE.
func (s *Session) Snapshot() []byte {
	if s.vt == nil {
		return nil
	}
	return s.vt.Snapshot()
}

// Closed reports whether the PTY child has exited.
func (s *Session) Closed() (closed bool, exitCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed, s.exitCode
}

// Close terminates the session's child process and releases resources.
func (s *Session) Close() error {
	s.InterruptAgent()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	if s.vt != nil {
		_ = s.vt.Close()
	}
	return s.ptmx.Close()
}

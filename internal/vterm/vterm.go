// Package vterm implements the Reconnect Snapshot side channel
// (component H): a headless terminal emulator that mirrors a Session's
// PTY output well enough to hand a late-attaching client one ANSI
// payload — scrollback plus the current screen plus cursor state —
// instead of replaying the raw byte ring from the beginning. It never
// feeds back into OSC-7/prompt detection; Session treats it as a
// side channel that may be absent (UseVTE=false) without affecting
// any other invariant.
package vterm

import (
	"fmt"
	"strings"
	"sync"

	uv "github.com/charmbracelet/ultraviolet"
	"github.com/charmbracelet/x/vt"
)

// scrollbackCapacity bounds how many scrolled-off lines Buffer retains
// before evicting the oldest. Generous enough to cover a long-running
// shell session without unbounded growth.
const scrollbackCapacity = 50000

// Buffer wraps a charmbracelet/x/vt emulator with a ring of lines
// scrolled out of the visible grid, so a reconnecting client can be
// handed real history instead of just the current screen. All methods
// are safe for concurrent use; the emulator's own callbacks fire
// synchronously inside Write, under the same lock.
type Buffer struct {
	emu *vt.Emulator

	mu           sync.Mutex
	scrollback   []string // ring of rendered lines evicted from the grid
	head         int      // next write slot in the ring
	filled       int      // number of valid entries (<= len(scrollback))
	inAltScreen  bool     // alt-screen apps (pagers, editors) don't contribute scrollback
	cursorHidden bool
	cols, rows   int
}

// New creates a Buffer sized to cols x rows. Session opens one per PTY
// only when UseVTE is set; most flows never touch this package.
func New(cols, rows int) *Buffer {
	b := &Buffer{
		emu:        vt.NewEmulator(cols, rows),
		scrollback: make([]string, scrollbackCapacity),
		cols:       cols,
		rows:       rows,
	}
	b.emu.SetCallbacks(vt.Callbacks{
		ScrollOut:        b.onScrollOut,
		ScrollbackClear:  b.onScrollbackClear,
		AltScreen:        func(on bool) { b.inAltScreen = on },
		CursorVisibility: func(visible bool) { b.cursorHidden = !visible },
	})
	return b
}

// onScrollOut runs under mu (called from within Write). Alt-screen
// content (full-screen editors, pagers) never enters scrollback: it is
// transient by nature and would just be noise on reconnect.
func (b *Buffer) onScrollOut(lines []uv.Line) {
	if b.inAltScreen {
		return
	}
	for _, line := range lines {
		b.pushLine(line.Render())
	}
}

func (b *Buffer) pushLine(rendered string) {
	if b.filled == len(b.scrollback) {
		b.scrollback[b.head] = "" // release for GC before overwrite
	}
	b.scrollback[b.head] = rendered
	b.head = (b.head + 1) % len(b.scrollback)
	if b.filled < len(b.scrollback) {
		b.filled++
	}
}

func (b *Buffer) onScrollbackClear() {
	for i := range b.scrollback {
		b.scrollback[i] = ""
	}
	b.filled, b.head = 0, 0
}

// Write feeds raw PTY bytes to the emulator, same stream the byte ring
// in Session sees.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.emu.Write(p)
}

// Resize must track whatever the PTY itself was resized to, or the
// emulator's line-wrap decisions will drift from the real screen.
func (b *Buffer) Resize(cols, rows int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emu.Resize(cols, rows)
	b.cols, b.rows = cols, rows
}

// Snapshot renders one reconnect payload: retained scrollback, padding
// to push it into the client's own scrollback region, a full repaint of
// the current grid, and the cursor's position and visibility. The
// result is plain ANSI any terminal emulator can consume directly —
// there is no termai-specific framing to strip back out.
func (b *Buffer) Snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out strings.Builder

	lines := b.orderedScrollback()
	for _, line := range lines {
		out.WriteString(line)
		out.WriteString("\r\n")
	}
	if len(lines) > 0 {
		for range b.rows - 1 {
			out.WriteByte('\n')
		}
	}

	out.WriteString("\x1b[m\x1b[H")
	out.WriteString(b.emu.Render())

	pos := b.emu.CursorPosition()
	fmt.Fprintf(&out, "\x1b[%d;%dH", pos.Y+1, pos.X+1)

	if b.cursorHidden {
		out.WriteString("\x1b[?25l")
	} else {
		out.WriteString("\x1b[?25h")
	}

	return []byte(out.String())
}

// ScrollbackLen reports how many scrollback lines are currently
// retained, mostly useful for tests and diagnostics.
func (b *Buffer) ScrollbackLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filled
}

// Close releases the emulator's resources. Safe to call once the owning
// Session is closing.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.emu.Close()
}

// orderedScrollback returns the retained lines oldest-first. Caller
// must hold mu.
func (b *Buffer) orderedScrollback() []string {
	if b.filled == 0 {
		return nil
	}
	lines := make([]string, b.filled)
	start := (b.head - b.filled + len(b.scrollback)) % len(b.scrollback)
	for i := 0; i < b.filled; i++ {
		lines[i] = b.scrollback[(start+i)%len(b.scrollback)]
	}
	return lines
}

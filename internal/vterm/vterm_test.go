package vterm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/x/vt"
)

func TestBufferBasicOutput(t *testing.T) {
	b := New(80, 24)
	defer b.Close()

	b.Write([]byte("hello world"))
	snap := b.Snapshot()
	if !strings.Contains(string(snap), "hello world") {
		t.Errorf("snapshot missing basic output, got:\n%s", snap)
	}
}

func TestBufferScrollbackCapture(t *testing.T) {
	b := New(80, 10)
	defer b.Close()

	// Write 50 lines to a 10-row terminal — each \r\n at the bottom scrolls.
	// First scroll happens at line 9's \r\n, last at line 49's \r\n = 41 scrolls.
	for i := range 50 {
		b.Write([]byte(fmt.Sprintf("line %d\r\n", i)))
	}

	if got := b.ScrollbackLen(); got != 41 {
		t.Errorf("scrollback len = %d, want 41", got)
	}
}

func TestBufferScrollbackRingWrap(t *testing.T) {
	b := New(80, 10)
	defer b.Close()

	// Write enough lines to exceed the ring cap.
	total := scrollbackCapacity + 10000
	for i := range total {
		b.Write([]byte(fmt.Sprintf("line %06d\r\n", i)))
	}

	if got := b.ScrollbackLen(); got != scrollbackCapacity {
		t.Errorf("scrollback len = %d, want %d (ring cap)", got, scrollbackCapacity)
	}

	snap := string(b.Snapshot())
	if strings.Contains(snap, "line 009990") {
		t.Error("snapshot should not contain line 009990 (dropped by ring)")
	}
	if !strings.Contains(snap, "line 009991") {
		t.Error("snapshot should contain line 009991 (oldest surviving)")
	}
}

func TestBufferANSIColors(t *testing.T) {
	b := New(80, 10)
	defer b.Close()

	for i := range 15 {
		b.Write([]byte(fmt.Sprintf("\x1b[31mred line %d\x1b[m\r\n", i)))
	}

	snap := string(b.Snapshot())
	if !strings.Contains(snap, "\x1b[31m") {
		t.Error("snapshot missing color SGR in scrollback")
	}
}

func TestBufferCursorPosition(t *testing.T) {
	b := New(80, 24)
	defer b.Close()

	b.Write([]byte("\x1b[5;10H"))
	snap := string(b.Snapshot())
	if !strings.Contains(snap, "\x1b[5;10H") {
		t.Errorf("snapshot missing cursor restore at row 5 col 10, got:\n%s", snap)
	}
}

func TestBufferScreenClearKeepsScrollback(t *testing.T) {
	b := New(80, 10)
	defer b.Close()

	for i := range 20 {
		b.Write([]byte(fmt.Sprintf("line %d\r\n", i)))
	}
	before := b.ScrollbackLen()

	b.Write([]byte("\x1b[2J")) // clears the grid, not scrollback

	if got := b.ScrollbackLen(); got != before {
		t.Errorf("ESC[2J changed scrollback len from %d to %d", before, got)
	}
}

func TestBufferScrollbackClear(t *testing.T) {
	b := New(80, 10)
	defer b.Close()

	for i := range 20 {
		b.Write([]byte(fmt.Sprintf("line %d\r\n", i)))
	}
	if b.ScrollbackLen() == 0 {
		t.Fatal("scrollback should have lines before clear")
	}

	b.Write([]byte("\x1b[3J")) // ESC[3J clears scrollback

	if got := b.ScrollbackLen(); got != 0 {
		t.Errorf("scrollback len after ESC[3J = %d, want 0", got)
	}
}

func TestBufferFullReset(t *testing.T) {
	b := New(80, 10)
	defer b.Close()

	for i := range 20 {
		b.Write([]byte(fmt.Sprintf("line %d\r\n", i)))
	}
	if b.ScrollbackLen() == 0 {
		t.Fatal("scrollback should have lines before reset")
	}

	b.Write([]byte("\x1bc")) // ESC c (RIS) clears everything

	if got := b.ScrollbackLen(); got != 0 {
		t.Errorf("scrollback len after ESC c = %d, want 0", got)
	}
}

func TestBufferAltScreenExcludedFromScrollback(t *testing.T) {
	b := New(80, 10)
	defer b.Close()

	for i := range 15 {
		b.Write([]byte(fmt.Sprintf("line %d\r\n", i)))
	}
	before := b.ScrollbackLen()

	b.Write([]byte("\x1b[?1049h")) // enter alt screen (e.g. a pager)
	for i := range 20 {
		b.Write([]byte(fmt.Sprintf("alt %d\r\n", i)))
	}
	if got := b.ScrollbackLen(); got != before {
		t.Errorf("alt screen scrollback = %d, want %d (unchanged)", got, before)
	}

	b.Write([]byte("\x1b[?1049l")) // exit alt screen
	if got := b.ScrollbackLen(); got != before {
		t.Errorf("after alt screen exit scrollback = %d, want %d", got, before)
	}
}

func TestBufferResize(t *testing.T) {
	b := New(80, 24)
	defer b.Close()

	b.Write([]byte("before resize\r\n"))
	b.Resize(120, 40)
	b.Write([]byte("after resize"))

	snap := string(b.Snapshot())
	if !strings.Contains(snap, "before resize") {
		t.Error("snapshot missing content from before resize")
	}
	if !strings.Contains(snap, "after resize") {
		t.Error("snapshot missing content from after resize")
	}
}

func TestBufferCursorVisibility(t *testing.T) {
	b := New(80, 24)
	defer b.Close()

	b.Write([]byte("\x1b[?25l"))
	snap := string(b.Snapshot())
	if !strings.Contains(snap, "\x1b[?25l") {
		t.Error("snapshot should contain cursor hide when cursor is hidden")
	}

	b.Write([]byte("\x1b[?25h"))
	snap = string(b.Snapshot())
	if !strings.Contains(snap, "\x1b[?25h") {
		t.Error("snapshot should contain cursor show when cursor is visible")
	}
}

func TestBufferRoundTrip(t *testing.T) {
	b1 := New(80, 24)
	defer b1.Close()

	for i := range 40 {
		b1.Write([]byte(fmt.Sprintf("line %02d: some content here\r\n", i)))
	}
	b1.Write([]byte("\x1b[5;10Hcursor here"))

	snap := b1.Snapshot()

	b2 := New(80, 24)
	defer b2.Close()
	b2.Write(snap)

	b1.mu.Lock()
	render1 := b1.emu.Render()
	b1.mu.Unlock()

	b2.mu.Lock()
	render2 := b2.emu.Render()
	b2.mu.Unlock()

	if render1 != render2 {
		t.Errorf("grid mismatch after round-trip\n--- b1 ---\n%s\n--- b2 ---\n%s", render1, render2)
	}
}

func TestBufferMultiLineScroll(t *testing.T) {
	b := New(80, 5)
	defer b.Close()

	var buf strings.Builder
	for i := range 20 {
		fmt.Fprintf(&buf, "bulk line %d\r\n", i)
	}
	b.Write([]byte(buf.String()))

	if got := b.ScrollbackLen(); got == 0 {
		t.Error("expected scrollback lines after bulk write")
	}
}

func TestBufferEmptySnapshot(t *testing.T) {
	b := New(80, 24)
	defer b.Close()

	snap := b.Snapshot()
	if len(snap) == 0 {
		t.Error("empty Buffer snapshot should not be zero-length")
	}
	s := string(snap)
	if !strings.Contains(s, "\x1b[H") {
		t.Error("snapshot missing home cursor")
	}
	if !strings.Contains(s, "\x1b[?25h") {
		t.Error("snapshot missing cursor visibility restore")
	}
}

func TestBufferSnapshotFormat(t *testing.T) {
	b := New(80, 5)
	defer b.Close()

	for i := range 10 {
		b.Write([]byte(fmt.Sprintf("line %d\r\n", i)))
	}

	snap := string(b.Snapshot())
	if !strings.Contains(snap, "\x1b[m\x1b[H") {
		t.Error("snapshot missing style reset + home cursor sequence")
	}
}

func TestBufferConcurrentWriteResize(t *testing.T) {
	b := New(80, 24)
	defer b.Close()

	done := make(chan struct{})

	go func() {
		for i := range 1000 {
			b.Write([]byte(fmt.Sprintf("line %d\r\n", i)))
		}
		close(done)
	}()

	for range 100 {
		b.Resize(81, 25)
		b.Resize(80, 24)
	}

	<-done

	snap := b.Snapshot()
	if len(snap) == 0 {
		t.Error("snapshot should not be empty after concurrent writes")
	}
}

// TestBufferSnapshotGridMatchesEmulator verifies the snapshot grid section
// matches what the underlying emulator renders.
func TestBufferSnapshotGridMatchesEmulator(t *testing.T) {
	b := New(40, 10)
	defer b.Close()

	b.Write([]byte("row 1 content\r\n"))
	b.Write([]byte("row 2 content\r\n"))
	b.Write([]byte("\x1b[31mcolored row 3\x1b[m"))

	b.mu.Lock()
	gridRender := b.emu.Render()
	b.mu.Unlock()

	snap := string(b.Snapshot())
	if !strings.Contains(snap, gridRender) {
		t.Errorf("snapshot doesn't contain exact grid render\n--- grid ---\n%q\n--- snap ---\n%q", gridRender, snap)
	}
}

// TestBufferWithPlainEmulator feeds a snapshot to a bare upstream
// emulator and checks it reconstructs a sane grid, the same thing a
// reconnecting client's own terminal emulator would do.
func TestBufferWithPlainEmulator(t *testing.T) {
	b := New(80, 24)
	defer b.Close()

	for i := range 30 {
		b.Write([]byte(fmt.Sprintf("history line %d\r\n", i)))
	}
	b.Write([]byte("current prompt $ "))

	snap := b.Snapshot()

	emu := vt.NewEmulator(80, 24)
	defer emu.Close()
	emu.Write(snap)

	grid := emu.Render()
	if !strings.Contains(grid, "current prompt $") {
		t.Errorf("replayed grid missing prompt content:\n%s", grid)
	}
}

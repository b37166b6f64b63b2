package arbiter

import (
	"bytes"
	"testing"
)

func TestRing_WriteAndBytes(t *testing.T) {
	r := newRing(100, 50)
	r.Write([]byte("hello "))
	r.Write([]byte("world"))
	if got := string(r.Bytes()); got != "hello world" {
		t.Fatalf("Bytes() = %q, want %q", got, "hello world")
	}
	if r.Len() != 11 {
		t.Fatalf("Len() = %d, want 11", r.Len())
	}
}

func TestRing_TrimsOnOverflow(t *testing.T) {
	r := newRing(10, 4)
	r.Write([]byte("0123456789")) // exactly cap, no trim yet
	if len(r.Bytes()) != 10 {
		t.Fatalf("expected no trim at exactly cap, got %d bytes", len(r.Bytes()))
	}
	r.Write([]byte("X")) // now 11 > cap(10), trims to trimTo(4)
	got := r.Bytes()
	if len(got) != 4 {
		t.Fatalf("expected trimmed length 4, got %d (%q)", len(got), got)
	}
	if string(got) != "789X" {
		t.Fatalf("expected suffix-retaining trim \"789X\", got %q", got)
	}
}

func TestRing_SinceClampsToRetainedWindow(t *testing.T) {
	r := newRing(10, 4)
	r.Write([]byte("0123456789"))
	r.Write([]byte("X")) // trims to "789X", trimmed=7

	// Asking for bytes from before the retained window still returns
	// only what's retained, never an error or reordering.
	if got := string(r.Since(0)); got != "789X" {
		t.Fatalf("Since(0) = %q, want %q", got, "789X")
	}
	if got := string(r.Since(8)); got != "89X" {
		t.Fatalf("Since(8) = %q, want %q", got, "89X")
	}
	if got := r.Since(100); got != nil {
		t.Fatalf("Since(100) = %q, want nil", got)
	}
}

func TestRing_Tail(t *testing.T) {
	r := newRing(100, 50)
	r.Write([]byte("abcdefgh"))
	if got := string(r.Tail(3)); got != "fgh" {
		t.Fatalf("Tail(3) = %q, want %q", got, "fgh")
	}
	if got := string(r.Tail(1000)); got != "abcdefgh" {
		t.Fatalf("Tail(huge) = %q, want full buffer", got)
	}
}

func TestRing_LinesOldestFirstClamped(t *testing.T) {
	r := newRing(1000, 500)
	r.Write([]byte("one\ntwo\nthree\nfour"))
	lines := r.Lines(2)
	want := []string{"three", "four"}
	if len(lines) != len(want) {
		t.Fatalf("Lines(2) = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("Lines(2)[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestRing_EmptyIsSafe(t *testing.T) {
	r := newRing(10, 5)
	if got := r.Bytes(); got != nil && len(got) != 0 {
		t.Fatalf("expected empty Bytes(), got %q", got)
	}
	if got := r.Tail(5); got != nil {
		t.Fatalf("expected nil Tail() on empty ring, got %q", got)
	}
	if got := r.Lines(5); got != nil {
		t.Fatalf("expected nil Lines() on empty ring, got %v", got)
	}
}

func TestRing_DefaultsAppliedForInvalidArgs(t *testing.T) {
	r := newRing(0, 0)
	if r.cap != 500_000 || r.trimTo != 250_000 {
		t.Fatalf("expected default cap/trimTo, got cap=%d trimTo=%d", r.cap, r.trimTo)
	}
	r2 := newRing(100, 100) // trimTo >= cap is invalid
	if r2.trimTo != 50 {
		t.Fatalf("expected trimTo fallback to cap/2, got %d", r2.trimTo)
	}
}

func TestRing_NoReorderingAcrossTrim(t *testing.T) {
	r := newRing(20, 10)
	var all bytes.Buffer
	for i := 0; i < 30; i++ {
		b := []byte{byte('a' + i%26)}
		all.Write(b)
		r.Write(b)
	}
	// The 21st write trims to the last 10 bytes; the 9 writes after it
	// grow the buffer back to 19 without exceeding cap again.
	want := all.Bytes()[len(all.Bytes())-19:]
	if got := r.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("Bytes() = %q, want retained suffix %q", got, want)
	}
}

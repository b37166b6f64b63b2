package arbiter

import "sync"

// ring is the Session's output-history byte buffer (I-buffer). It
// retains the most recent bytes up to cap; once exceeded it truncates to
// trimTo bytes, discarding the oldest prefix without reordering — a
// plain suffix-retaining buffer, deliberately simpler than a cursor/
// backpressure replay log because OutputSince is pull-only and has no
// concurrent slow readers to protect against.
type ring struct {
	mu      sync.Mutex
	buf     []byte
	written int64 // total bytes ever written, for offset-based reads
	trimmed int64 // bytes discarded from the front

	cap    int
	trimTo int
}

func newRing(cap, trimTo int) *ring {
	if cap <= 0 {
		cap = 500_000
	}
	if trimTo <= 0 || trimTo >= cap {
		trimTo = cap / 2
	}
	return &ring{cap: cap, trimTo: trimTo}
}

// Write appends p, trimming the front if the buffer now exceeds cap.
func (r *ring) Write(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, p...)
	r.written += int64(len(p))
	if len(r.buf) > r.cap {
		cut := len(r.buf) - r.trimTo
		r.trimmed += int64(cut)
		r.buf = append([]byte(nil), r.buf[cut:]...)
	}
}

// Bytes returns a copy of the full retained buffer.
func (r *ring) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.buf...)
}

// Len returns the current absolute write offset (total bytes written).
func (r *ring) Len() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Since returns every retained byte written at or after absolute offset
// start. If start predates the retained window, it returns from the
// earliest retained byte instead (I-buffer never reorders, but it can't
// conjure trimmed bytes back into existence).
func (r *ring) Since(start int64) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	rel := start - r.trimmed
	if rel < 0 {
		rel = 0
	}
	if int(rel) >= len(r.buf) {
		return nil
	}
	return append([]byte(nil), r.buf[rel:]...)
}

// Tail returns at most the last n bytes of the retained buffer.
func (r *ring) Tail(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || len(r.buf) == 0 {
		return nil
	}
	if n > len(r.buf) {
		n = len(r.buf)
	}
	return append([]byte(nil), r.buf[len(r.buf)-n:]...)
}

// Lines returns the last maxLines newline-delimited lines of the
// retained buffer, oldest first.
func (r *ring) Lines(maxLines int) []string {
	r.mu.Lock()
	buf := append([]byte(nil), r.buf...)
	r.mu.Unlock()

	if len(buf) == 0 {
		return nil
	}
	var lines []string
	start := 0
	for i, b := range buf {
		if b == '\n' {
			lines = append(lines, string(buf[start:i]))
			start = i + 1
		}
	}
	if start < len(buf) {
		lines = append(lines, string(buf[start:]))
	}
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}

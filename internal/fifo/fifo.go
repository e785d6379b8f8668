// Package fifo implements the terminal input queue.
//
// The queue is filled from the receive path (the UART interrupt on hardware,
// a reader goroutine on a development host) and drained by the shell and by
// the getc ABI callback. When full, pushing a byte evicts the oldest one.
package fifo

import (
	"github.com/reglet-dev/h7-kernel/internal/critical"
)

// DefaultSize is the input queue capacity used when none is configured.
const DefaultSize = 256

// Queue is a bounded byte ring guarded by a critical section.
type Queue struct {
	cs   *critical.Section
	buf  []byte
	size int
	r    int
	w    int
}

// New creates a queue holding at most size bytes. A nil section gets a
// private one.
func New(cs *critical.Section, size int) *Queue {
	if size <= 0 {
		size = DefaultSize
	}
	if cs == nil {
		cs = &critical.Section{}
	}
	return &Queue{cs: cs, buf: make([]byte, size)}
}

// Push appends b, overwriting the oldest byte when the queue is full.
func (q *Queue) Push(b byte) {
	q.cs.Do(func() {
		if q.size == len(q.buf) {
			q.r = (q.r + 1) % len(q.buf)
		} else {
			q.size++
		}
		q.buf[q.w] = b
		q.w = (q.w + 1) % len(q.buf)
	})
}

// Pop removes and returns the oldest byte. It never blocks.
func (q *Queue) Pop() (b byte, ok bool) {
	q.cs.Do(func() {
		if q.size == 0 {
			return
		}
		b, ok = q.buf[q.r], true
		q.r = (q.r + 1) % len(q.buf)
		q.size--
	})
	return b, ok
}

// Len returns the number of queued bytes.
func (q *Queue) Len() (n int) {
	q.cs.Do(func() { n = q.size })
	return n
}

// Clear drops everything queued.
func (q *Queue) Clear() {
	q.cs.Do(func() {
		q.r, q.w, q.size = 0, 0, 0
	})
}

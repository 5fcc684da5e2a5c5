// Package ringbuffer implements the fixed-capacity byte queue that sits between
// a bursty storage collaborator and a fixed-rate sample clock.
//
// A RingBuffer has exactly one producer and one consumer and performs no
// locking: both roles are expected to run on the same execution context. No
// memory is allocated after New.
package ringbuffer

import (
	"errors"
)

var ErrInvalidCapacity = errors.New("ring buffer capacity must be positive")

type RingBuffer struct {
	buf   []byte
	read  int // index of the oldest unread byte
	write int // index of the next byte to fill
	count int // bytes held, 0 <= count <= len(buf)
}

func New(capacity int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	return &RingBuffer{buf: make([]byte, capacity)}, nil
}

func (b *RingBuffer) Cap() int {
	return len(b.buf)
}

func (b *RingBuffer) AvailableForRead() int {
	return b.count
}

func (b *RingBuffer) AvailableForWrite() int {
	return len(b.buf) - b.count
}

// Push copies as many bytes of p as fit and returns how many were accepted.
// Unread data is never overwritten.
func (b *RingBuffer) Push(p []byte) int {
	first, second := b.Reserve(len(p))
	n := copy(first, p)
	n += copy(second, p[n:])
	b.Commit(n)
	return n
}

// Pop moves up to len(p) of the oldest bytes into p and removes them.
func (b *RingBuffer) Pop(p []byte) int {
	first, second := b.Peek(len(p))
	n := copy(p, first)
	n += copy(p[n:], second)
	b.Discard(n)
	return n
}

// Peek returns up to n unread bytes without consuming them. The bytes are
// returned as two slices because they may wrap around the end of the buffer;
// second is empty when they do not. The slices alias the buffer and are only
// valid until the next Commit.
func (b *RingBuffer) Peek(n int) (first, second []byte) {
	n = min(max(n, 0), b.count)
	end := b.read + n
	if end <= len(b.buf) {
		return b.buf[b.read:end], nil
	}
	return b.buf[b.read:], b.buf[:end-len(b.buf)]
}

// Discard drops up to n of the oldest bytes and returns how many were dropped.
func (b *RingBuffer) Discard(n int) int {
	n = min(max(n, 0), b.count)
	b.read = (b.read + n) % len(b.buf)
	b.count -= n
	return n
}

// Reserve returns up to n bytes of free space, split in two slices when the
// space wraps. Nothing becomes readable until Commit.
func (b *RingBuffer) Reserve(n int) (first, second []byte) {
	n = min(max(n, 0), len(b.buf)-b.count)
	end := b.write + n
	if end <= len(b.buf) {
		return b.buf[b.write:end], nil
	}
	return b.buf[b.write:], b.buf[:end-len(b.buf)]
}

// Commit makes up to n bytes previously handed out by Reserve readable and
// returns how many were committed.
func (b *RingBuffer) Commit(n int) int {
	n = min(max(n, 0), len(b.buf)-b.count)
	b.write = (b.write + n) % len(b.buf)
	b.count += n
	return n
}

// Reset empties the buffer without releasing its memory.
func (b *RingBuffer) Reset() {
	b.read, b.write, b.count = 0, 0, 0
}

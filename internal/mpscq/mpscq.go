// Package mpscq implements the many-producer/single-consumer
// blocked-allocator queue of spec.md §4.2, grounded on
// original_source/cwNbMpScQueue.cpp.
//
// Memory is a fixed list of pre-allocated blocks. Producers allocate
// space inside a block by atomically fetch-adding its write index; when
// a block overruns, the producer marks it full and retries the next
// block. A successful allocation is linked into a single MPSC list with
// the canonical two-step enqueue: atomically exchange the head, then
// publish the predecessor's next pointer. The single consumer walks the
// list with Get/Advance/Peek and is the only thread allowed to reset a
// drained full block back to empty (the reclamation point).
package mpscq

import (
	"sync/atomic"

	"github.com/larkecw/sfengine/internal/engerr"
)

type node struct {
	next  atomic.Pointer[node]
	block *block
	blob  []byte
}

type block struct {
	buf      []byte
	index    atomic.Uint64
	fullFlag atomic.Bool
	eleN     atomic.Int64
	next     *block
}

// Queue is a many-producer/single-consumer blob queue.
type Queue struct {
	blocks *block

	cleanBlkN atomic.Int64

	stub *node
	head atomic.Pointer[node]
	tail *node // consumer-owned, not atomic
	peek *node // consumer-owned
}

// New allocates a queue of blkN blocks, each blkByteN bytes, each sized
// to hold several blobs' worth of node overhead plus payload.
func New(blkN, blkByteN int) *Queue {
	q := &Queue{}
	q.stub = &node{}
	q.head.Store(q.stub)
	q.tail = q.stub

	var prev *block
	for i := 0; i < blkN; i++ {
		b := &block{buf: make([]byte, blkByteN)}
		b.next = prev
		prev = b
	}
	q.blocks = prev
	return q
}

// clean scans for drained full blocks and resets them to empty. Only the
// consumer may call this — it is the reclamation point.
func (q *Queue) clean() {
	for b := q.blocks; b != nil; b = b.next {
		if b.fullFlag.Load() {
			if b.eleN.Load() <= 0 {
				q.cleanBlkN.Add(-1)
				b.eleN.Store(0)
				b.index.Store(0)
				b.fullFlag.Store(false)
			}
		}
	}
}

// Push enqueues a copy of blob. Any number of goroutines may call Push
// concurrently. It returns engerr.BufTooSmall if no block has room.
func (q *Queue) Push(blob []byte) error {
	for b := q.blocks; b != nil; b = b.next {
		if b.fullFlag.Load() {
			continue
		}

		need := uint64(len(blob))
		idx := b.index.Add(need) - need

		if idx+need > uint64(len(b.buf)) {
			q.cleanBlkN.Add(1)
			b.fullFlag.Store(true)
			continue
		}

		n := &node{block: b, blob: append([]byte{}, blob...)}
		b.eleN.Add(1)

		prev := q.head.Swap(n)
		prev.next.Store(n)
		return nil
	}
	return engerr.New(engerr.BufTooSmall, "mpscq: overflow, all blocks full")
}

// Get returns the next unconsumed blob without advancing, or nil if the
// queue is empty. Consumer-only.
func (q *Queue) Get() []byte {
	n := q.tail.next.Load()
	if n == nil {
		return nil
	}
	return n.blob
}

// Advance consumes and returns the next blob, or nil if empty. Runs the
// reclamation sweep afterward. Consumer-only.
func (q *Queue) Advance() []byte {
	next := q.tail.next.Load()
	if next != nil {
		q.tail = next
		next.block.eleN.Add(-1)
	}
	if q.cleanBlkN.Load() > 0 {
		q.clean()
	}
	if next == nil {
		return nil
	}
	return next.blob
}

// Peek walks the queue without consuming, returning successive blobs on
// repeated calls until nil. Consumer-only.
func (q *Queue) Peek() []byte {
	n := q.peek
	if n == nil {
		n = q.tail.next.Load()
	}
	if n == nil {
		return nil
	}
	q.peek = n.next.Load()
	return n.blob
}

// ResetPeek rewinds Peek to start again from the current tail.
func (q *Queue) ResetPeek() { q.peek = nil }

// IsEmpty reports whether there is nothing left to consume.
func (q *Queue) IsEmpty() bool { return q.tail.next.Load() == nil }

// Count sums the live element counts across all blocks. Approximate
// under concurrent pushes, exact once producers are quiesced.
func (q *Queue) Count() int {
	n := 0
	for b := q.blocks; b != nil; b = b.next {
		n += int(b.eleN.Load())
	}
	return n
}

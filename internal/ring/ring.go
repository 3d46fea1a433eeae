// Package ring implements a lock-free single-producer/single-consumer
// byte ring (spec.md §4.1). The producer never blocks; a write that does
// not fit returns engerr.BufTooSmall. The consumer's CopyOut atomically
// drains everything available up to the caller's buffer size.
//
// Empty is encoded as r == w, so the write pointer may never be advanced
// to equal the read pointer: usable capacity is bufByteN-1, matching
// original_source/cwSpScBuf.cpp.
package ring

import (
	"sync/atomic"

	"github.com/larkecw/sfengine/internal/engerr"
)

// Ring is a fixed-capacity SPSC byte ring.
type Ring struct {
	buf []byte
	n   uint64 // capacity, len(buf)
	w   atomic.Uint64
	r   atomic.Uint64
}

// New allocates a ring with room for bufByteN-1 usable bytes.
func New(bufByteN int) *Ring {
	if bufByteN < 2 {
		bufByteN = 2
	}
	return &Ring{buf: make([]byte, bufByteN), n: uint64(bufByteN)}
}

// fullCount returns the number of bytes currently queued, given a
// snapshot of r and w.
func (g *Ring) fullCount(r, w uint64) int {
	if r == w {
		return 0
	}
	if r < w {
		return int(w - r)
	}
	return int(g.n - (r - w))
}

// FullByteCount returns a snapshot of the number of queued bytes.
func (g *Ring) FullByteCount() int {
	r := g.r.Load()
	w := g.w.Load()
	return g.fullCount(r, w)
}

// CopyIn appends p to the ring. It never blocks: if p does not fit it
// returns engerr.BufTooSmall and writes nothing.
func (g *Ring) CopyIn(p []byte) error {
	w := g.w.Load()
	r := g.r.Load()
	return g.copyInImpl(p, r, w)
}

func (g *Ring) copyInImpl(p []byte, r, w uint64) error {
	e := g.n
	var n0, n1 uint64

	if r <= w {
		space := e - w
		if uint64(len(p)) <= space {
			n0 = uint64(len(p))
			if w+n0 == r+e && r == 0 {
				// writing exactly to the end while r sits at 0 would make
				// the new w equal r (mod e) -- that collides with empty.
				return engerr.New(engerr.BufTooSmall, "ring: overflow, %d bytes requested", len(p))
			}
		} else {
			n0 = space
			n1 = uint64(len(p)) - n0
			if n1 >= r {
				return engerr.New(engerr.BufTooSmall, "ring: overflow, %d bytes requested", len(p))
			}
		}
	} else {
		if uint64(len(p)) < r-w {
			n0 = uint64(len(p))
		} else {
			return engerr.New(engerr.BufTooSmall, "ring: overflow, %d bytes requested", len(p))
		}
	}

	copy(g.buf[w:w+n0], p[:n0])
	w1 := w + n0
	if n1 > 0 {
		copy(g.buf[0:n1], p[n0:n0+n1])
		w1 = n1
	}
	if w1 == e {
		w1 = 0
	}
	g.w.Store(w1)
	return nil
}

// CopyOut drains up to len(p) bytes into p and returns the count copied.
// It returns 0 when the ring is empty. If more bytes are queued than fit
// in p it returns engerr.BufTooSmall without consuming anything.
func (g *Ring) CopyOut(p []byte) (int, error) {
	r := g.r.Load()
	w := g.w.Load()
	e := g.n

	if r == w {
		return 0, nil
	}

	var n0, n1 uint64
	if r < w {
		n0 = w - r
	} else {
		n0 = e - r
		n1 = w
	}

	if n0+n1 > uint64(len(p)) {
		return 0, engerr.New(engerr.BufTooSmall, "ring: return buffer too small, have %d need %d", len(p), n0+n1)
	}

	copy(p[:n0], g.buf[r:r+n0])
	if n1 > 0 {
		copy(p[n0:n0+n1], g.buf[0:n1])
	}

	r1 := r + n0
	if n1 > 0 {
		r1 = n1
	}
	if r1 == e {
		r1 = 0
	}
	g.r.Store(r1)

	return int(n0 + n1), nil
}

// Cap returns the usable capacity (bufByteN-1).
func (g *Ring) Cap() int { return int(g.n) - 1 }

// Package poly implements the polyphonic subnet mechanics of spec.md
// §4.6 ("poly") and §5: replicating an internal network into count
// independent voice networks and executing them either serially or
// across a worker-thread pool.
package poly

import (
	"time"

	"github.com/larkecw/sfengine/internal/engerr"
	"github.com/larkecw/sfengine/internal/pool"
	"github.com/larkecw/sfengine/internal/proc"
)

// VoiceBuilder constructs the idx'th voice network. It is called once
// per voice during VoiceSet construction.
type VoiceBuilder func(idx int) (*proc.Network, error)

// VoiceSet owns count independent voice networks linked via
// proc.Network.PolyLink, and runs their per-cycle Exec either serially
// or across a worker pool (spec.md §4.6, §5 "Scheduling model").
//
// Per-voice subnetworks are isolated: worker i touches only voice i's
// procs and variables, so the only cross-voice shared mutable state
// during Exec is the pool's own atomic counters.
type VoiceSet struct {
	Voices []*proc.Network

	parallel bool
	p        pool.Pool
	timeout  time.Duration
}

// NewVoiceSet builds count voices via build and links them together.
func NewVoiceSet(count int, build VoiceBuilder) (*VoiceSet, error) {
	vs := &VoiceSet{Voices: make([]*proc.Network, count)}
	for i := 0; i < count; i++ {
		n, err := build(i)
		if err != nil {
			return nil, engerr.Wrap(engerr.InvalidState, err, "poly: voice %d build failed", i)
		}
		vs.Voices[i] = n
	}
	for i, v := range vs.Voices {
		v.PolyLink = append([]*proc.Network(nil), vs.Voices...)
		_ = i
	}
	return vs, nil
}

// EnableParallel switches Exec to dispatch across a worker pool of
// threadCnt workers instead of running voices serially in the audio
// thread. futex selects the futex pool flavour over the condvar one.
func (vs *VoiceSet) EnableParallel(threadCnt int, futex bool, timeout time.Duration) {
	vs.parallel = true
	vs.timeout = timeout
	if futex {
		vs.p = pool.NewFutexPool(threadCnt)
	} else {
		vs.p = pool.NewCondPool(threadCnt)
	}
}

// DisableParallel reverts to serial execution and releases pool workers.
func (vs *VoiceSet) DisableParallel() {
	vs.parallel = false
	if vs.p != nil {
		vs.p.Destroy()
		vs.p = nil
	}
}

// Build runs Create on every voice network.
func (vs *VoiceSet) Build() error {
	for i, v := range vs.Voices {
		if err := v.Build(); err != nil {
			return engerr.Wrap(engerr.InvalidState, err, "poly: voice %d build failed", i)
		}
	}
	return nil
}

// ExecCycle runs one cycle across every voice. In serial mode it simply
// loops; in parallel mode it submits one task per voice to the pool and
// blocks until all complete or the timeout elapses, per spec.md §5
// "the audio thread submits a batch of voice tasks and waits until all
// complete before continuing the cycle". A pool-run timeout is a logged
// overrun, not a fatal error: the cycle is aborted for this block.
func (vs *VoiceSet) ExecCycle() error {
	if !vs.parallel {
		for _, v := range vs.Voices {
			if err := v.ExecCycle(); err != nil {
				return err
			}
		}
		return nil
	}

	tasks := make([]pool.Task, len(vs.Voices))
	errs := make([]error, len(vs.Voices))
	for i, v := range vs.Voices {
		i, v := i, v
		tasks[i] = pool.Task{Func: func() {
			errs[i] = v.ExecCycle()
		}}
	}

	if ok := vs.p.Run(tasks, vs.timeout); !ok {
		return engerr.New(engerr.Timeout, "poly: voice batch exceeded %s", vs.timeout)
	}

	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// Teardown runs Destroy on every voice network, in reverse voice order.
func (vs *VoiceSet) Teardown() error {
	var firstErr error
	for i := len(vs.Voices) - 1; i >= 0; i-- {
		if err := vs.Voices[i].Teardown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

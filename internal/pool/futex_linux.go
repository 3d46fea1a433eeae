//go:build linux

package pool

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

const (
	opIdle int32 = 0
	opRun  int32 = 1
	opExit int32 = 2
)

// FutexPool is the futex-backed flavour of §4.3: workerN worker
// goroutines park on a shared futex word; Run publishes a task batch,
// wakes every worker, and each worker claims tasks by fetch-adding a
// shared index until the batch is drained. The last worker to finish
// sets the app futex and wakes the submitting goroutine.
type FutexPool struct {
	workerN int

	threadFutex uint32 // worker parking word
	appFutex    uint32 // submitter parking word

	op int32

	tasks       []Task
	doneCnt     int32
	nextTaskIdx int32
	taskN       int32

	wg chan struct{} // each worker sends once on exit; Destroy receives workerN
}

// NewFutexPool starts workerN worker goroutines.
func NewFutexPool(workerN int) *FutexPool {
	p := &FutexPool{
		workerN: workerN,
		wg:      make(chan struct{}),
	}
	atomic.StoreInt32(&p.op, opIdle)

	startedCh := make(chan struct{}, workerN)
	go func() {
		for i := 0; i < workerN; i++ {
			go p.workerLoop(startedCh)
		}
		for i := 0; i < workerN; i++ {
			<-startedCh
		}
	}()

	return p
}

func futexWait(addr *uint32, val uint32, timeout *unix.Timespec) {
	for {
		if atomic.LoadUint32(addr) != val {
			return
		}
		_, err := unix.Futex(addr, unix.FUTEX_WAIT, int32(val), timeout, nil, 0)
		if err != nil && err != unix.EAGAIN && err != unix.EINTR && err != unix.ETIMEDOUT {
			return
		}
		if timeout != nil {
			return
		}
		if atomic.LoadUint32(addr) != val {
			return
		}
	}
}

func futexWake(addr *uint32, n int) {
	unix.Futex(addr, unix.FUTEX_WAKE, int32(n), nil, nil, 0)
}

func (p *FutexPool) workerLoop(started chan struct{}) {
	started <- struct{}{}
	defer func() {
		p.wg <- struct{}{}
	}()

	exited := 0
	for {
		futexWait(&p.threadFutex, 0, nil)

		switch atomic.LoadInt32(&p.op) {
		case opExit:
			exited++
			return
		case opRun:
			taskN := atomic.LoadInt32(&p.taskN)
			for {
				idx := atomic.AddInt32(&p.nextTaskIdx, 1) - 1
				if idx >= taskN {
					break
				}
				t := &p.tasks[idx]
				runTaskSafely(t)
				if atomic.AddInt32(&p.doneCnt, 1) == taskN {
					atomic.StoreUint32(&p.appFutex, 1)
					futexWake(&p.appFutex, 1)
				}
			}
		}
		atomic.StoreUint32(&p.threadFutex, 0)
	}
}

// Run submits tasks and blocks until the batch completes or timeout
// elapses.
func (p *FutexPool) Run(tasks []Task, timeout time.Duration) bool {
	p.tasks = tasks
	atomic.StoreInt32(&p.doneCnt, 0)
	atomic.StoreInt32(&p.nextTaskIdx, 0)
	atomic.StoreInt32(&p.taskN, int32(len(tasks)))
	atomic.StoreUint32(&p.appFutex, 0)
	atomic.StoreInt32(&p.op, opRun)

	atomic.StoreUint32(&p.threadFutex, 1)
	futexWake(&p.threadFutex, p.workerN)

	if len(tasks) == 0 {
		return true
	}

	deadline := time.Now().Add(timeout)
	for atomic.LoadUint32(&p.appFutex) == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		step := remaining
		if step > 5*time.Millisecond {
			step = 5 * time.Millisecond
		}
		ts := unix.NsecToTimespec(step.Nanoseconds())
		futexWait(&p.appFutex, 0, &ts)
	}
	return true
}

// Destroy wakes all workers with the exit op and waits for them to stop.
func (p *FutexPool) Destroy() {
	atomic.StoreInt32(&p.op, opExit)
	atomic.StoreUint32(&p.threadFutex, 1)
	futexWake(&p.threadFutex, p.workerN)
	for i := 0; i < p.workerN; i++ {
		<-p.wg
	}
}

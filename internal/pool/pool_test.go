package pool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testPoolRunsEveryTaskOnce(t *testing.T, newPool func(int) Pool) {
	const workerN = 4
	const taskN = workerN * 10 // §8: taskN <= 10*workerN

	p := newPool(workerN)
	defer p.Destroy()

	var counters [taskN]int32
	tasks := make([]Task, taskN)
	for i := range tasks {
		i := i
		tasks[i] = Task{Func: func() {
			atomic.AddInt32(&counters[i], 1)
		}}
	}

	ok := p.Run(tasks, time.Second)
	require.True(t, ok)

	for i, c := range counters {
		assert.Equal(t, int32(1), c, "task %d ran %d times", i, c)
	}
}

func TestCondPoolRunsEveryTaskOnce(t *testing.T) {
	testPoolRunsEveryTaskOnce(t, func(n int) Pool { return NewCondPool(n) })
}

func TestFutexPoolRunsEveryTaskOnce(t *testing.T) {
	testPoolRunsEveryTaskOnce(t, func(n int) Pool { return NewFutexPool(n) })
}

func TestCondPoolMultipleBatches(t *testing.T) {
	p := NewCondPool(3)
	defer p.Destroy()

	for batch := 0; batch < 20; batch++ {
		var n int32
		tasks := make([]Task, 7)
		for i := range tasks {
			tasks[i] = Task{Func: func() { atomic.AddInt32(&n, 1) }}
		}
		ok := p.Run(tasks, time.Second)
		require.True(t, ok)
		assert.Equal(t, int32(7), n)
	}
}

func TestCondPoolEmptyBatch(t *testing.T) {
	p := NewCondPool(2)
	defer p.Destroy()
	ok := p.Run(nil, time.Second)
	assert.True(t, ok)
}

func TestCondPoolTimeout(t *testing.T) {
	p := NewCondPool(1)
	defer p.Destroy()

	tasks := []Task{
		{Func: func() { time.Sleep(100 * time.Millisecond) }},
		{Func: func() {}},
	}
	ok := p.Run(tasks, 5*time.Millisecond)
	assert.False(t, ok)
}

// TestCondPoolRunsEveryTaskExactlyOnceProperty checks §8's "every
// dispatched task runs exactly once" property across varying worker and
// task counts, including task counts that don't divide evenly across
// workers.
func TestCondPoolRunsEveryTaskExactlyOnceProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		workerN := rapid.IntRange(1, 8).Draw(rt, "workerN")
		taskN := rapid.IntRange(0, 50).Draw(rt, "taskN")

		p := NewCondPool(workerN)
		defer p.Destroy()

		counters := make([]int32, taskN)
		tasks := make([]Task, taskN)
		for i := range tasks {
			i := i
			tasks[i] = Task{Func: func() { atomic.AddInt32(&counters[i], 1) }}
		}

		ok := p.Run(tasks, time.Second)
		require.True(rt, ok)
		for i, c := range counters {
			assert.Equal(rt, int32(1), c, "task %d ran %d times", i, c)
		}
	})
}

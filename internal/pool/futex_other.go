//go:build !linux

package pool

// FutexPool is unavailable outside linux (unix.Futex has no portable
// equivalent); it degrades to the condvar flavour so callers compiled
// for other platforms still get a working pool with the identical
// Run/Destroy contract.
type FutexPool struct {
	*CondPool
}

// NewFutexPool returns a condvar-backed pool on non-linux platforms.
func NewFutexPool(workerN int) *FutexPool {
	return &FutexPool{CondPool: NewCondPool(workerN)}
}

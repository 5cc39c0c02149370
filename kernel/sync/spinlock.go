// Package sync provides the spinlock used to serialize access to the memory
// management structures.
package sync

import (
	"runtime"
	"sync/atomic"
)

var (
	// yieldFn is invoked as a pipeline relax hint after a number of failed
	// acquisition attempts. Tests and the hosted build use runtime.Gosched.
	yieldFn = runtime.Gosched
)

// attemptsBeforeYielding is the number of compare-and-swap attempts that
// Acquire performs before invoking yieldFn.
const attemptsBeforeYielding = 64

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available. Interrupt handlers that may interrupt a
// task holding the lock must use TryToAcquire.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	acquireSpinlock(&l.state, attemptsBeforeYielding)
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.CompareAndSwapUint32(&l.state, 0, 1)
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// acquireSpinlock spins on a compare-and-swap of state until it manages to
// flip it from 0 to 1.
func acquireSpinlock(state *uint32, attemptsBeforeYielding uint32) {
	for attempts := uint32(0); ; attempts++ {
		if atomic.LoadUint32(state) == 0 && atomic.CompareAndSwapUint32(state, 0, 1) {
			return
		}

		if attempts == attemptsBeforeYielding {
			attempts = 0
			if yieldFn != nil {
				yieldFn()
			}
		}
	}
}

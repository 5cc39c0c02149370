package sync

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

func TestSpinlock(t *testing.T) {
	// Substitute the yieldFn with runtime.Gosched to avoid deadlocks while testing
	defer func(origYieldFn func()) { yieldFn = origYieldFn }(yieldFn)
	yieldFn = runtime.Gosched

	var (
		sl         Spinlock
		wg         sync.WaitGroup
		numWorkers = 10
	)

	sl.Acquire()

	if sl.TryToAcquire() != false {
		t.Error("expected TryToAcquire to return false when lock is held")
	}

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func(worker int) {
			sl.Acquire()
			sl.Release()
			wg.Done()
		}(i)
	}

	<-time.After(100 * time.Millisecond)
	sl.Release()
	wg.Wait()

	if !sl.TryToAcquire() {
		t.Fatal("expected TryToAcquire to succeed once all workers released the lock")
	}
	sl.Release()
}

func TestSpinlockMutualExclusion(t *testing.T) {
	var (
		sl         Spinlock
		wg         sync.WaitGroup
		counter    int
		numWorkers = 8
		numIters   = 1000
	)

	defer func(origYieldFn func()) { yieldFn = origYieldFn }(yieldFn)
	yieldFn = runtime.Gosched

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < numIters; j++ {
				sl.Acquire()
				counter++
				sl.Release()
			}
		}()
	}
	wg.Wait()

	if exp := numWorkers * numIters; counter != exp {
		t.Fatalf("expected counter to be %d; got %d", exp, counter)
	}
}

func TestSpinlockYieldsWhileContended(t *testing.T) {
	defer func(origYieldFn func()) { yieldFn = origYieldFn }(yieldFn)

	var sl Spinlock
	sl.Acquire()

	yieldCount := 0
	yieldFn = func() {
		yieldCount++
		if yieldCount == 2 {
			sl.Release()
		}
	}

	// The lock gets released by the second relax hint so this call returns.
	sl.Acquire()

	if exp := 2; yieldCount != exp {
		t.Fatalf("expected yieldFn to be called %d times; got %d", exp, yieldCount)
	}
}

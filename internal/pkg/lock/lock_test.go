package lock

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryLockerExcludesSecondHolder(t *testing.T) {
	l := NewMemoryLocker(time.Minute)

	release, ok := l.TryLock(context.Background(), "create", 42)
	if !ok {
		t.Fatal("expected first TryLock to succeed")
	}

	if _, ok := l.TryLock(context.Background(), "create", 42); ok {
		t.Fatal("expected second TryLock on same key to fail")
	}

	// Different operation class or booking id is an independent lock.
	if r2, ok := l.TryLock(context.Background(), "cancel", 42); !ok {
		t.Fatal("expected lock for different operation to succeed")
	} else {
		r2()
	}
	if r3, ok := l.TryLock(context.Background(), "create", 43); !ok {
		t.Fatal("expected lock for different booking to succeed")
	} else {
		r3()
	}

	release()
	if r4, ok := l.TryLock(context.Background(), "create", 42); !ok {
		t.Fatal("expected TryLock to succeed after release")
	} else {
		r4()
	}
}

func TestMemoryLockerExpiry(t *testing.T) {
	l := NewMemoryLocker(10 * time.Second)
	base := time.Now()
	l.nowFn = func() time.Time { return base }

	if _, ok := l.TryLock(context.Background(), "create", 1); !ok {
		t.Fatal("expected first TryLock to succeed")
	}

	// Holder crashed: release never called. Past the TTL the lock must
	// be acquirable again.
	l.nowFn = func() time.Time { return base.Add(11 * time.Second) }
	if _, ok := l.TryLock(context.Background(), "create", 1); !ok {
		t.Fatal("expected TryLock to succeed after TTL expiry")
	}
}

func TestMemoryLockerLateReleaseKeepsNewHolder(t *testing.T) {
	l := NewMemoryLocker(10 * time.Second)
	base := time.Now()
	l.nowFn = func() time.Time { return base }

	releaseA, ok := l.TryLock(context.Background(), "create", 1)
	if !ok {
		t.Fatal("expected first TryLock to succeed")
	}

	// The first holder outlives its TTL and a second holder takes over.
	l.nowFn = func() time.Time { return base.Add(11 * time.Second) }
	if _, ok := l.TryLock(context.Background(), "create", 1); !ok {
		t.Fatal("expected TryLock to succeed after TTL expiry")
	}

	// The late release belongs to an expired lease and must not free the
	// second holder's lock.
	releaseA()
	if _, ok := l.TryLock(context.Background(), "create", 1); ok {
		t.Fatal("late release of an expired lease freed a live lock")
	}
}

func TestMemoryLockerConcurrentAcquire(t *testing.T) {
	l := NewMemoryLocker(time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := l.TryLock(context.Background(), "create", 7); ok {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if acquired != 1 {
		t.Fatalf("expected exactly one goroutine to acquire the lock, got %d", acquired)
	}
}

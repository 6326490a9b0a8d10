package services

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newManualLockManager(ttl time.Duration) (*SlotLockManager, *time.Time) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	m := &SlotLockManager{
		locks: make(map[string]slotLock),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	m.now = func() time.Time { return now }
	return m, &now
}

func TestAcquireIsExclusive(t *testing.T) {
	m, _ := newManualLockManager(5 * time.Second)
	key := SlotKey(uuid.New(), monday, 9*60)

	assert.True(t, m.Acquire(key, "req-1"))
	assert.False(t, m.Acquire(key, "req-2"))

	// Same holder may re-acquire.
	assert.True(t, m.Acquire(key, "req-1"))

	// A different slot is unaffected.
	assert.True(t, m.Acquire(SlotKey(uuid.New(), monday, 9*60), "req-2"))
}

func TestReleaseOnlyByHolder(t *testing.T) {
	m, _ := newManualLockManager(5 * time.Second)
	key := SlotKey(uuid.New(), monday, 9*60)

	assert.True(t, m.Acquire(key, "req-1"))
	m.Release(key, "req-2")
	assert.False(t, m.Acquire(key, "req-2"), "foreign release must not free the lock")

	m.Release(key, "req-1")
	assert.True(t, m.Acquire(key, "req-2"))
}

func TestLockExpires(t *testing.T) {
	m, now := newManualLockManager(5 * time.Second)
	key := SlotKey(uuid.New(), monday, 9*60)

	assert.True(t, m.Acquire(key, "req-1"))
	assert.False(t, m.Acquire(key, "req-2"))

	*now = now.Add(6 * time.Second)
	assert.True(t, m.Acquire(key, "req-2"), "expired lock is up for grabs")
}

func TestAcquireAllIsAtomic(t *testing.T) {
	m, _ := newManualLockManager(5 * time.Second)
	expert := uuid.New()

	// 09:00-11:00 and 10:00-11:00 share the 10:00 buckets.
	long := SlotSpanKeys(expert, monday, 9*60, 120)
	short := SlotSpanKeys(expert, monday, 10*60, 60)

	assert.True(t, m.AcquireAll(long, "req-1"))
	assert.False(t, m.AcquireAll(short, "req-2"))

	// The failed attempt must not have grabbed any of its keys.
	m.ReleaseAll(long, "req-1")
	assert.True(t, m.AcquireAll(short, "req-2"))

	// Disjoint spans do not contend.
	assert.True(t, m.AcquireAll(SlotSpanKeys(expert, monday, 14*60, 60), "req-3"))
}

func TestSlotSpanKeysCoverOverlaps(t *testing.T) {
	expert := uuid.New()

	a := SlotSpanKeys(expert, monday, 9*60, 120)
	assert.Len(t, a, 8)

	// Any one-minute overlap shares a bucket, whatever the alignment.
	b := SlotSpanKeys(expert, monday, 10*60+55, 30)
	shared := make(map[string]bool, len(a))
	for _, key := range a {
		shared[key] = true
	}
	overlap := false
	for _, key := range b {
		if shared[key] {
			overlap = true
		}
	}
	assert.True(t, overlap)
}

func TestConcurrentAcquireHasSingleWinner(t *testing.T) {
	m := NewSlotLockManager(5 * time.Second)
	defer m.Stop()
	key := SlotKey(uuid.New(), monday, 9*60)

	const contenders = 100
	var winners int64
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Acquire(key, uuid.NewString()) {
				atomic.AddInt64(&winners, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), winners)
}

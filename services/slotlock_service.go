package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SlotLockManager hands out short-lived exclusive ownership of a
// (expert, date, startTime) key so two concurrent booking attempts for
// the same slot cannot both reach the ledger. Acquire never queues: the
// loser is told immediately and surfaces SlotUnavailable to the caller.
//
// Locks are held only across validate+post+persist, a few seconds at
// most, and auto-expire so a crashed attempt cannot wedge a slot.
type SlotLockManager struct {
	mu    sync.Mutex
	locks map[string]slotLock
	ttl   time.Duration
	stop  chan struct{}

	now func() time.Time
}

type slotLock struct {
	holder    string
	expiresAt time.Time
}

func NewSlotLockManager(ttl time.Duration) *SlotLockManager {
	m := &SlotLockManager{
		locks: make(map[string]slotLock),
		ttl:   ttl,
		stop:  make(chan struct{}),
		now:   time.Now,
	}
	go m.janitor()
	return m
}

// SlotKey builds the lock key for a concrete expert-slot.
func SlotKey(expertID uuid.UUID, date time.Time, startMinute int) string {
	return fmt.Sprintf("%s|%s|%d", expertID, DateOnly(date).Format("2006-01-02"), startMinute)
}

// Locks are bucketed in 15-minute steps. Two sessions that overlap by
// even a single minute share at least one bucket, so their bookings
// contend no matter where each one starts.
const lockBucketMinutes = 15

// SlotSpanKeys returns the lock keys for every bucket the span
// [startMinute, startMinute+durationMinutes) touches.
func SlotSpanKeys(expertID uuid.UUID, date time.Time, startMinute, durationMinutes int) []string {
	first := startMinute - startMinute%lockBucketMinutes
	var keys []string
	for b := first; b < startMinute+durationMinutes; b += lockBucketMinutes {
		keys = append(keys, SlotKey(expertID, date, b))
	}
	return keys
}

// Acquire takes the key for the manager's TTL. Exactly one holder wins;
// everyone else gets false immediately. Re-acquiring with the same
// requestID extends the lease.
func (m *SlotLockManager) Acquire(key, requestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.locks[key]; ok && l.holder != requestID && m.now().Before(l.expiresAt) {
		return false
	}
	m.locks[key] = slotLock{holder: requestID, expiresAt: m.now().Add(m.ttl)}
	return true
}

// AcquireAll takes every key or none of them. The whole check-and-grab
// runs under one critical section, so two overlapping spans can never
// interleave their acquisitions and both succeed.
func (m *SlotLockManager) AcquireAll(keys []string, requestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, key := range keys {
		if l, ok := m.locks[key]; ok && l.holder != requestID && now.Before(l.expiresAt) {
			return false
		}
	}
	expiresAt := now.Add(m.ttl)
	for _, key := range keys {
		m.locks[key] = slotLock{holder: requestID, expiresAt: expiresAt}
	}
	return true
}

// ReleaseAll drops every key requestID still holds.
func (m *SlotLockManager) ReleaseAll(keys []string, requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		if l, ok := m.locks[key]; ok && l.holder == requestID {
			delete(m.locks, key)
		}
	}
}

// Release drops the lock if requestID still holds it; it never releases
// someone else's lock.
func (m *SlotLockManager) Release(key, requestID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.locks[key]; ok && l.holder == requestID {
		delete(m.locks, key)
	}
}

func (m *SlotLockManager) Stop() {
	close(m.stop)
}

func (m *SlotLockManager) janitor() {
	interval := m.ttl
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for key, l := range m.locks {
				if !now.Before(l.expiresAt) {
					delete(m.locks, key)
				}
			}
			m.mu.Unlock()
		}
	}
}

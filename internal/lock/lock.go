// SPDX-License-Identifier: MIT

// Package lock implements the processing-lock manager that prevents two
// operations from racing on the same track: a per-(track, operation)
// exclusivity lock backed by the store's atomic SetNX, plus a per-user
// concurrency cap across all tracks that user currently holds a lock on.
package lock

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/sectify/streamvault/internal/audit"
	"github.com/sectify/streamvault/internal/errs"
	"github.com/sectify/streamvault/internal/metrics"
	"github.com/sectify/streamvault/internal/store"
	"golang.org/x/sync/semaphore"
)

const (
	lockKeyPrefix = "lock:data:"
	userKeyPrefix = "lock:user:"

	// DefaultTimeout bounds how long a lock is held before it is treated as
	// orphaned and a subsequent Acquire may reclaim it.
	DefaultTimeout = 30 * time.Minute

	// DefaultMaxWait bounds how long Acquire waits for a busy per-track
	// mutex before failing with Timeout.
	DefaultMaxWait = 60 * time.Second

	pollInterval = time.Second
)

// Data describes a held processing lock.
type Data struct {
	TrackID   string    `json:"track_id"`
	UserID    string    `json:"user_id"`
	Operation string    `json:"operation"`
	ProcessID string    `json:"process_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Manager grants and releases processing locks.
type Manager struct {
	Store                store.KV
	MasterSecret         string
	MaxConcurrentPerUser int
	Timeout              time.Duration
	// MaxWait bounds how long Acquire waits on the per-track mutex before
	// giving up with Timeout, independent of any deadline on the caller's
	// context.
	MaxWait time.Duration
	Audit   *audit.Logger

	// keyLocks holds a *semaphore.Weighted per (track, operation) key,
	// serializing the in-process check-then-set race before it ever
	// reaches the shared store, the same role the reference
	// implementation's per-track asyncio.Lock plays.
	keyLocks sync.Map
}

// NewManager constructs a lock Manager. maxWait bounds how long Acquire
// waits for a busy per-track mutex before failing with Timeout; a
// non-positive value uses DefaultMaxWait.
func NewManager(kv store.KV, masterSecret string, maxConcurrentPerUser int, timeout, maxWait time.Duration, auditLogger *audit.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Manager{
		Store:                kv,
		MasterSecret:         masterSecret,
		MaxConcurrentPerUser: maxConcurrentPerUser,
		Timeout:              timeout,
		MaxWait:              maxWait,
		Audit:                auditLogger,
	}
}

func (m *Manager) keySemaphore(key string) *semaphore.Weighted {
	sem, _ := m.keyLocks.LoadOrStore(key, semaphore.NewWeighted(1))
	return sem.(*semaphore.Weighted)
}

func lockKey(trackID, operation string) string {
	return lockKeyPrefix + trackID + ":" + operation
}

func userLockKey(userID, trackID, operation string) string {
	return userKeyPrefix + userID + ":" + trackID + ":" + operation
}

// Acquire grants an exclusive processing lock for (trackID, operation) to
// userID. It fails with TooManyRequests if the user is already at their
// concurrency cap, with Timeout if the per-track mutex is still held by
// another in-process caller after MaxWait, and with Conflict if the track
// is already locked in the store — by the same user (duplicate
// submission) or by someone else. The returned release func must be
// called exactly once to free the lock; it is safe to defer immediately
// after a successful Acquire.
func (m *Manager) Acquire(ctx context.Context, trackID, userID, operation string) (*Data, func() error, error) {
	if m.MaxConcurrentPerUser > 0 {
		count := len(m.Store.Keys(userKeyPrefix + userID + ":"))
		if count >= m.MaxConcurrentPerUser {
			return nil, nil, errs.New(errs.TooManyRequests, "too many concurrent processing operations for this user")
		}
	}

	key := lockKey(trackID, operation)

	waitCtx, cancel := context.WithTimeout(ctx, m.MaxWait)
	defer cancel()

	sem := m.keySemaphore(key)
	if err := sem.Acquire(waitCtx, 1); err != nil {
		return nil, nil, errs.Wrap(errs.Timeout, "timed out waiting for per-track lock", err)
	}
	defer sem.Release(1)

	existing, ok := m.get(key)
	if ok {
		metrics.RecordLockConflict(operation)
		if existing.UserID == userID {
			return nil, nil, errs.New(errs.Conflict, "track is already being processed by you")
		}
		if m.Audit != nil {
			m.Audit.LockConflict(userID, trackID, operation, existing.UserID)
		}
		return nil, nil, errs.New(errs.Conflict, "track is currently being processed by another operation")
	}

	processID, err := m.generateProcessID(trackID, userID, operation)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	data := &Data{
		TrackID:   trackID,
		UserID:    userID,
		Operation: operation,
		ProcessID: processID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.Timeout),
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, nil, errs.Wrap(errs.Internal, "failed to encode lock data", err)
	}

	if !m.Store.SetNX(key, string(encoded), m.Timeout) {
		metrics.RecordLockConflict(operation)
		if m.Audit != nil {
			m.Audit.LockConflict(userID, trackID, operation, "unknown")
		}
		return nil, nil, errs.New(errs.Conflict, "track is currently being processed by another operation")
	}
	m.Store.Set(userLockKey(userID, trackID, operation), trackID, m.Timeout)
	metrics.RecordLockAcquired(operation)

	if m.Audit != nil {
		m.Audit.Log(audit.Event{
			Type:     audit.EventLockAcquired,
			Actor:    userID,
			Action:   operation,
			Resource: trackID,
			Result:   "granted",
		})
	}

	released := false
	release := func() error {
		if released {
			return nil
		}
		released = true
		return m.release(data)
	}

	return data, release, nil
}

func (m *Manager) release(data *Data) error {
	m.Store.Delete(lockKey(data.TrackID, data.Operation))
	m.Store.Delete(userLockKey(data.UserID, data.TrackID, data.Operation))

	if m.Audit != nil {
		m.Audit.Log(audit.Event{
			Type:     audit.EventLockReleased,
			Actor:    data.UserID,
			Action:   data.Operation,
			Resource: data.TrackID,
			Result:   "released",
		})
	}
	return nil
}

// Status returns the lock currently held on trackID for operation, if any.
func (m *Manager) Status(ctx context.Context, trackID, operation string) (*Data, bool) {
	return m.get(lockKey(trackID, operation))
}

// UserLockCount reports how many locks userID currently holds.
func (m *Manager) UserLockCount(ctx context.Context, userID string) int {
	return len(m.Store.Keys(userKeyPrefix + userID + ":"))
}

// ForceReleaseUser is an admin override that releases every lock held by
// userID regardless of which track or operation it covers, returning the
// number of locks released.
func (m *Manager) ForceReleaseUser(ctx context.Context, actor, userID string) (int, error) {
	keys := m.Store.Keys(userKeyPrefix + userID + ":")
	released := 0
	for _, uk := range keys {
		raw, ok := m.Store.Get(uk)
		if !ok {
			continue
		}
		trackID, ok := raw.(string)
		if !ok {
			continue
		}
		rest := strings.TrimPrefix(uk, userKeyPrefix+userID+":")
		rest = strings.TrimPrefix(rest, trackID+":")
		operation := rest

		m.Store.Delete(lockKey(trackID, operation))
		m.Store.Delete(uk)
		released++
	}

	if released > 0 {
		metrics.RecordLockForceReleased()
	}
	if m.Audit != nil {
		m.Audit.LockForceReleased(actor, userID, released)
	}
	return released, nil
}

// WaitForCompletion blocks until no lock is held on trackID for any
// operation, or maxWait elapses. It returns true if the track became free,
// false on timeout.
func (m *Manager) WaitForCompletion(ctx context.Context, trackID string, maxWait time.Duration) bool {
	start := time.Now()
	deadline := start.Add(maxWait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if !m.trackLocked(trackID) {
			metrics.ObserveLockWait(time.Since(start).Seconds())
			return true
		}
		if time.Now().After(deadline) {
			metrics.ObserveLockWait(time.Since(start).Seconds())
			return false
		}
		select {
		case <-ctx.Done():
			metrics.ObserveLockWait(time.Since(start).Seconds())
			return false
		case <-ticker.C:
		}
	}
}

func (m *Manager) trackLocked(trackID string) bool {
	for _, key := range m.Store.Keys(lockKeyPrefix + trackID + ":") {
		if _, ok := m.get(key); ok {
			return true
		}
	}
	return false
}

// Sweep is a defensive pass over lock records: the store's own TTL
// already evicts expired locks, but a store migration or clock skew can
// leave an orphaned record behind, so Sweep removes anything past its
// ExpiresAt. It returns the count removed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	keys := m.Store.Keys(lockKeyPrefix)
	removed := 0
	for _, key := range keys {
		data, ok := m.get(key)
		if !ok {
			continue
		}
		if time.Now().After(data.ExpiresAt) {
			m.Store.Delete(key)
			m.Store.Delete(userLockKey(data.UserID, data.TrackID, data.Operation))
			removed++
		}
	}
	return removed, nil
}

func (m *Manager) get(key string) (*Data, bool) {
	raw, ok := m.Store.Get(key)
	if !ok {
		return nil, false
	}
	encoded, ok := raw.(string)
	if !ok {
		return nil, false
	}
	var data Data
	if err := json.Unmarshal([]byte(encoded), &data); err != nil {
		return nil, false
	}
	return &data, true
}

func (m *Manager) generateProcessID(trackID, userID, operation string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", errs.Wrap(errs.Internal, "failed to generate process id entropy", err)
	}
	h := sha256.New()
	h.Write([]byte(trackID))
	h.Write([]byte(userID))
	h.Write([]byte(operation))
	h.Write(nonce)
	h.Write([]byte(m.MasterSecret))
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

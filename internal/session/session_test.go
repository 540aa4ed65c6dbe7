// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sectify/streamvault/internal/audit"
	"github.com/sectify/streamvault/internal/errs"
	"github.com/sectify/streamvault/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(maxSessions int) *Manager {
	kv := store.NewMemoryStore(0)
	return NewManager(kv, "test-secret", time.Hour, maxSessions, audit.NewLogger())
}

func TestCreate_AssignsUniqueID(t *testing.T) {
	m := newTestManager(5)
	ctx := context.Background()

	s1, err := m.Create(ctx, "user-1", "203.0.113.1", "ua-1", "fp-1")
	require.NoError(t, err)
	s2, err := m.Create(ctx, "user-1", "203.0.113.1", "ua-1", "fp-1")
	require.NoError(t, err)

	assert.NotEqual(t, s1.ID, s2.ID)
}

func TestCreate_EvictsOldestWhenAtCap(t *testing.T) {
	m := newTestManager(2)
	ctx := context.Background()

	s1, err := m.Create(ctx, "user-1", "203.0.113.1", "ua", "fp")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = m.Create(ctx, "user-1", "203.0.113.1", "ua", "fp")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = m.Create(ctx, "user-1", "203.0.113.1", "ua", "fp")
	require.NoError(t, err)

	count, err := m.UserSessionCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "cap of 2 should hold after 3 creations")

	_, err = m.Validate(ctx, s1.ID, "203.0.113.1", "ua")
	require.Error(t, err, "oldest session should have been evicted")
}

func TestValidate_Success(t *testing.T) {
	m := newTestManager(5)
	ctx := context.Background()

	s, err := m.Create(ctx, "user-1", "203.0.113.1", "my-agent", "fp")
	require.NoError(t, err)

	validated, err := m.Validate(ctx, s.ID, "203.0.113.1", "my-agent")
	require.NoError(t, err)
	assert.Equal(t, 2, validated.AccessCount)
}

func TestValidate_MobileIPToleranceAllowed(t *testing.T) {
	m := newTestManager(5)
	ctx := context.Background()

	s, err := m.Create(ctx, "user-1", "203.0.113.1", "ua", "fp")
	require.NoError(t, err)

	_, err = m.Validate(ctx, s.ID, "203.0.113.250", "ua")
	assert.NoError(t, err)
}

func TestValidate_DifferentSubnetRejected(t *testing.T) {
	m := newTestManager(5)
	ctx := context.Background()

	s, err := m.Create(ctx, "user-1", "203.0.113.1", "ua", "fp")
	require.NoError(t, err)

	_, err = m.Validate(ctx, s.ID, "198.51.100.1", "ua")
	require.Error(t, err)
	assert.Equal(t, errs.Forbidden, errs.Classify(err))
}

func TestValidate_UserAgentMismatchIsNonFatal(t *testing.T) {
	m := newTestManager(5)
	ctx := context.Background()

	s, err := m.Create(ctx, "user-1", "203.0.113.1", "original-agent", "fp")
	require.NoError(t, err)

	validated, err := m.Validate(ctx, s.ID, "203.0.113.1", "different-agent")
	assert.NoError(t, err)
	assert.NotNil(t, validated)
}

func TestValidate_RevokedSessionRejected(t *testing.T) {
	m := newTestManager(5)
	ctx := context.Background()

	s, err := m.Create(ctx, "user-1", "203.0.113.1", "ua", "fp")
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, s.ID, "user_requested"))

	_, err = m.Validate(ctx, s.ID, "203.0.113.1", "ua")
	require.Error(t, err)
	assert.Equal(t, errs.Unauthenticated, errs.Classify(err))
}

func TestValidate_UnknownSessionRejected(t *testing.T) {
	m := newTestManager(5)
	_, err := m.Validate(context.Background(), "nonexistent", "203.0.113.1", "ua")
	require.Error(t, err)
	assert.Equal(t, errs.Unauthenticated, errs.Classify(err))
}

func TestValidate_SlidesExpirationNearExpiry(t *testing.T) {
	m := newTestManager(5)
	m.TTL = time.Hour
	ctx := context.Background()

	s, err := m.Create(ctx, "user-1", "203.0.113.1", "ua", "fp")
	require.NoError(t, err)

	// Force the session close to expiry to trigger sliding renewal.
	s.ExpiresAt = time.Now().Add(1 * time.Minute)
	require.NoError(t, m.persist(s, time.Until(s.ExpiresAt)))

	validated, err := m.Validate(ctx, s.ID, "203.0.113.1", "ua")
	require.NoError(t, err)
	assert.True(t, validated.ExpiresAt.After(time.Now().Add(30*time.Minute)))
}

func TestRevokeAll_ExemptsCurrentSession(t *testing.T) {
	m := newTestManager(5)
	ctx := context.Background()

	s1, err := m.Create(ctx, "user-1", "203.0.113.1", "ua", "fp")
	require.NoError(t, err)
	s2, err := m.Create(ctx, "user-1", "203.0.113.1", "ua", "fp")
	require.NoError(t, err)

	require.NoError(t, m.RevokeAll(ctx, "user-1", s2.ID, "logout_everywhere_else"))

	_, err = m.Validate(ctx, s1.ID, "203.0.113.1", "ua")
	require.Error(t, err)

	_, err = m.Validate(ctx, s2.ID, "203.0.113.1", "ua")
	assert.NoError(t, err)
}

func TestInfo_StripsDeviceFingerprint(t *testing.T) {
	m := newTestManager(5)
	ctx := context.Background()

	s, err := m.Create(ctx, "user-1", "203.0.113.1", "ua", "super-secret-fingerprint")
	require.NoError(t, err)

	info, err := m.Info(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, info.ID)

	encoded, err := json.Marshal(info)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "super-secret-fingerprint")
}

func TestSweep_PurgesOldRevokedRecords(t *testing.T) {
	m := newTestManager(5)
	ctx := context.Background()

	s, err := m.Create(ctx, "user-1", "203.0.113.1", "ua", "fp")
	require.NoError(t, err)
	require.NoError(t, m.Revoke(ctx, s.ID, "test"))

	_, ok := m.Store.Get(revokedKeyPrefix + s.ID)
	require.True(t, ok, "revoked record should still exist within retention")

	purged, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, purged, "record is not yet past the retention window")

	// Backdate the revoked record past the retention window and sweep again.
	raw, _ := m.Store.Get(revokedKeyPrefix + s.ID)
	encoded := raw.(string)
	var revoked Session
	require.NoError(t, json.Unmarshal([]byte(encoded), &revoked))
	revoked.RevokedAt = time.Now().Add(-25 * time.Hour)
	encodedBack, err := json.Marshal(&revoked)
	require.NoError(t, err)
	m.Store.Set(revokedKeyPrefix+s.ID, string(encodedBack), revokedRetention)

	purged, err = m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
}

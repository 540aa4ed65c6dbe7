// SPDX-License-Identifier: MIT

package authz

import (
	"context"
	"testing"
	"time"

	"github.com/sectify/streamvault/internal/errs"
	"github.com/sectify/streamvault/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	tracks map[string]Track
}

func (f *fakeLookup) Lookup(ctx context.Context, trackID string) (Track, bool, error) {
	t, ok := f.tracks[trackID]
	return t, ok, nil
}

func newTestService() (*Service, *fakeLookup) {
	lookup := &fakeLookup{tracks: map[string]Track{
		"public-1":  {ID: "public-1", OwnerID: "owner-1", Public: true},
		"private-1": {ID: "private-1", OwnerID: "owner-1", Public: false},
	}}
	kv := store.NewMemoryStore(0)
	return NewService(lookup, kv, "test-master-secret"), lookup
}

func TestCheckAccess_PublicTrackReadableByAnyone(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CheckAccess(context.Background(), "public-1", OpRead, "anyone", false)
	assert.NoError(t, err)
}

func TestCheckAccess_PrivateTrackDeniesAnonymous(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CheckAccess(context.Background(), "private-1", OpRead, "", false)
	require.Error(t, err)
	assert.Equal(t, errs.Unauthenticated, errs.Classify(err))
}

func TestCheckAccess_PrivateTrackDeniesOtherUser(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CheckAccess(context.Background(), "private-1", OpRead, "someone-else", true)
	require.Error(t, err)
	assert.Equal(t, errs.Forbidden, errs.Classify(err))
}

func TestCheckAccess_OwnerCanReadAndWrite(t *testing.T) {
	svc, _ := newTestService()
	assert.NoError(t, svc.CheckAccess(context.Background(), "private-1", OpRead, "owner-1", true))
	assert.NoError(t, svc.CheckAccess(context.Background(), "private-1", OpWrite, "owner-1", true))
	assert.NoError(t, svc.CheckAccess(context.Background(), "private-1", OpDelete, "owner-1", true))
}

func TestCheckAccess_NonOwnerCannotWritePublicTrack(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CheckAccess(context.Background(), "public-1", OpWrite, "someone-else", true)
	require.Error(t, err)
	assert.Equal(t, errs.Forbidden, errs.Classify(err))
}

func TestCheckAccess_UnknownTrackIsNotFound(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CheckAccess(context.Background(), "missing", OpRead, "anyone", false)
	require.Error(t, err)
	assert.Equal(t, errs.NotFound, errs.Classify(err))
}

func TestCheckAccess_UnknownOperationDenied(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CheckAccess(context.Background(), "public-1", Operation("destroy"), "owner-1", true)
	require.Error(t, err)
}

func TestMintAndValidateToken(t *testing.T) {
	svc, _ := newTestService()
	token, err := svc.MintToken(context.Background(), "public-1", "owner-1", "203.0.113.5")
	require.NoError(t, err)
	require.Len(t, token, 32)

	err = svc.ValidateToken(context.Background(), token, "public-1", "203.0.113.5")
	assert.NoError(t, err)
}

func TestValidateToken_WrongTrackRejected(t *testing.T) {
	svc, _ := newTestService()
	token, err := svc.MintToken(context.Background(), "public-1", "owner-1", "203.0.113.5")
	require.NoError(t, err)

	err = svc.ValidateToken(context.Background(), token, "private-1", "203.0.113.5")
	require.Error(t, err)
	assert.Equal(t, errs.Forbidden, errs.Classify(err))
}

func TestValidateToken_MobileIPToleranceAllowsLastOctetChange(t *testing.T) {
	svc, _ := newTestService()
	token, err := svc.MintToken(context.Background(), "public-1", "owner-1", "203.0.113.5")
	require.NoError(t, err)

	err = svc.ValidateToken(context.Background(), token, "public-1", "203.0.113.200")
	assert.NoError(t, err)
}

func TestValidateToken_DifferentSubnetRejected(t *testing.T) {
	svc, _ := newTestService()
	token, err := svc.MintToken(context.Background(), "public-1", "owner-1", "203.0.113.5")
	require.NoError(t, err)

	err = svc.ValidateToken(context.Background(), token, "public-1", "198.51.100.5")
	require.Error(t, err)
}

func TestValidateToken_UnknownTokenRejected(t *testing.T) {
	svc, _ := newTestService()
	err := svc.ValidateToken(context.Background(), "does-not-exist", "public-1", "203.0.113.5")
	require.Error(t, err)
	assert.Equal(t, errs.Unauthenticated, errs.Classify(err))
}

func TestValidateToken_ExpiredTokenRejected(t *testing.T) {
	svc, _ := newTestService()
	kv := svc.Store
	data := `{"track_id":"public-1","user_id":"owner-1","remote_addr":"203.0.113.5","expires_at":"2000-01-01T00:00:00Z"}`
	kv.Set("authz:token:expiredtoken0000000000000000000", data, time.Minute)

	err := svc.ValidateToken(context.Background(), "expiredtoken0000000000000000000", "public-1", "203.0.113.5")
	require.Error(t, err)
	assert.Equal(t, errs.Unauthenticated, errs.Classify(err))
}

func TestWatermarkID_IsUniquePerCall(t *testing.T) {
	id1 := WatermarkID("track-1", "user-1", "secret")
	id2 := WatermarkID("track-1", "user-1", "secret")
	assert.NotEqual(t, id1, id2, "watermark ids include random salt")
	assert.Contains(t, id1, "track-1_")
}

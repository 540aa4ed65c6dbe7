// SPDX-License-Identifier: MIT

package tokens

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sectify/streamvault/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReq(remoteAddr, rangeHeader string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/segment.ts", nil)
	r.RemoteAddr = remoteAddr
	if rangeHeader != "" {
		r.Header.Set("Range", rangeHeader)
	}
	return r
}

func TestMintAndVerify_RoundTrip(t *testing.T) {
	tok, err := Mint("secret", "track-1", "", "", time.Minute)
	require.NoError(t, err)

	r := newReq("203.0.113.5:443", "")
	assert.NoError(t, Verify("secret", tok, "track-1", r))
}

func TestVerify_WrongTrackRejected(t *testing.T) {
	tok, err := Mint("secret", "track-1", "", "", time.Minute)
	require.NoError(t, err)

	r := newReq("203.0.113.5:443", "")
	err = Verify("secret", tok, "track-2", r)
	require.Error(t, err)
	assert.Equal(t, errs.Forbidden, errs.Classify(err))
}

func TestVerify_WrongSecretRejected(t *testing.T) {
	tok, err := Mint("secret", "track-1", "", "", time.Minute)
	require.NoError(t, err)

	r := newReq("203.0.113.5:443", "")
	err = Verify("other-secret", tok, "track-1", r)
	require.Error(t, err)
	assert.Equal(t, errs.Unauthenticated, errs.Classify(err))
}

func TestVerify_ExpiredTokenRejected(t *testing.T) {
	tok, err := Mint("secret", "track-1", "", "", -time.Minute)
	require.NoError(t, err)

	r := newReq("203.0.113.5:443", "")
	err = Verify("secret", tok, "track-1", r)
	require.Error(t, err)
	assert.Equal(t, errs.Unauthenticated, errs.Classify(err))
}

func TestVerify_IPBindingEnforced(t *testing.T) {
	tok, err := Mint("secret", "track-1", "203.0.113.5", "", time.Minute)
	require.NoError(t, err)

	ok := newReq("203.0.113.5:1234", "")
	assert.NoError(t, Verify("secret", tok, "track-1", ok))

	mismatched := newReq("198.51.100.9:1234", "")
	err = Verify("secret", tok, "track-1", mismatched)
	require.Error(t, err)
	assert.Equal(t, errs.Forbidden, errs.Classify(err))
}

func TestVerify_RangeBindingEnforced(t *testing.T) {
	tok, err := Mint("secret", "track-1", "", "bytes=0-1023", time.Minute)
	require.NoError(t, err)

	r := newReq("203.0.113.5:443", "bytes=1024-2047")
	err = Verify("secret", tok, "track-1", r)
	require.Error(t, err)
	assert.Equal(t, errs.Forbidden, errs.Classify(err))
}

func TestVerify_NoBindingAllowsAnyClient(t *testing.T) {
	tok, err := Mint("secret", "track-1", "", "", time.Minute)
	require.NoError(t, err)

	r := newReq("198.51.100.9:1234", "")
	assert.NoError(t, Verify("secret", tok, "track-1", r))
}

func TestMint_DefaultsTTLWhenNonPositive(t *testing.T) {
	tok, err := Mint("secret", "track-1", "", "", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
}

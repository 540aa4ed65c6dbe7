// SPDX-License-Identifier: MIT

package errs

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_HTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		Unauthenticated:  401,
		Forbidden:        403,
		NotFound:         404,
		Conflict:         409,
		TooManyRequests:  429,
		Timeout:          408,
		PayloadTooLarge:  413,
		Validation:       400,
		WeakKey:          400,
		IntegrityFailure: 422,
		MalformedBlob:    400,
		Internal:         500,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), kind.String())
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Internal, Classify(nil))
	assert.Equal(t, Internal, Classify(errors.New("plain")))

	wrapped := Wrap(Forbidden, "not your track", errors.New("owner mismatch"))
	assert.Equal(t, Forbidden, Classify(wrapped))

	doubleWrapped := errors.New("outer context")
	_ = doubleWrapped
	assert.ErrorIs(t, wrapped, wrapped.Cause)
}

func TestDisclose_Production(t *testing.T) {
	err := Wrap(IntegrityFailure, "HMAC mismatch on blob xyz", errors.New("mac"))
	assert.Equal(t, "content failed integrity verification", Disclose(err, true))
	assert.Equal(t, "HMAC mismatch on blob xyz", Disclose(err, false))
}

func TestDisclose_PlainError(t *testing.T) {
	err := errors.New("unexpected nil pointer")
	assert.Equal(t, "internal server error", Disclose(err, true))
	assert.Equal(t, "internal server error", Disclose(err, false))
}

func TestWrite_ProblemJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := New(NotFound, "track not found")
	Write(rec, err, true, "/tracks/123", "err-abc")

	assert.Equal(t, 404, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":404`)
	assert.Contains(t, rec.Body.String(), `"error_id":"err-abc"`)
}

func TestClientIP_PrefersRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "203.0.113.9")
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	r.RemoteAddr = "10.0.0.2:5555"

	assert.Equal(t, "203.0.113.9", ClientIP(r))
}

func TestClientIP_FallsBackToForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	r.RemoteAddr = "10.0.0.2:5555"

	assert.Equal(t, "198.51.100.1", ClientIP(r))
}

func TestClientIP_FallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.2:5555"

	assert.Equal(t, "10.0.0.2", ClientIP(r))
}

func TestSuspicionIndicators(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", "sh")
	indicators := SuspicionIndicators(r)
	assert.Contains(t, indicators, "short_ua")
	assert.Contains(t, indicators, "missing_accept")

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.Header.Set("User-Agent", "Mozilla/5.0 Googlebot crawler")
	r2.Header.Set("Accept", "*/*")
	indicators2 := SuspicionIndicators(r2)
	assert.Contains(t, indicators2, "bot_ua")
	assert.NotContains(t, indicators2, "missing_accept")

	r3 := httptest.NewRequest(http.MethodGet, "/", nil)
	r3.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; normal browser)")
	r3.Header.Set("Accept", "text/html")
	assert.Empty(t, SuspicionIndicators(r3))
}

// SPDX-License-Identifier: MIT

// Package tokens mints and verifies the short-lived signed URL tokens that
// gate direct access to HLS segment files, independent of the session and
// access-token mechanisms in internal/session and internal/authz.
package tokens

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sectify/streamvault/internal/errs"
)

// DefaultTTL is the signed URL token lifetime used when a caller does not
// specify one: long enough to cover one segment fetch, short enough that a
// leaked URL is useless within minutes.
const DefaultTTL = 2 * time.Minute

// claims is the JWT payload for a signed URL token. IP and Range are
// optional binding constraints: when set at mint time, Verify requires an
// exact match at verification time.
type claims struct {
	TrackID string `json:"track_id"`
	IP      string `json:"ip,omitempty"`
	Range   string `json:"range,omitempty"`
	jwt.RegisteredClaims
}

// Mint signs a token scoped to trackID, valid for ttl. If ip or rangeHeader
// are non-empty, Verify will require the request presenting the token to
// match them exactly.
func Mint(secret, trackID, ip, rangeHeader string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	c := claims{
		TrackID: trackID,
		IP:      ip,
		Range:   rangeHeader,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errs.Wrap(errs.Internal, "failed to sign url token", err)
	}
	return signed, nil
}

// Verify parses and validates tokenString against secret, then checks
// that it is scoped to trackID and, if the token carries an IP or Range
// binding, that r matches it. A bad signature or expiry maps to
// Unauthenticated; a mismatched binding maps to Forbidden.
func Verify(secret, tokenString, trackID string, r *http.Request) error {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return errs.Wrap(errs.Unauthenticated, "invalid or expired url token", err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok {
		return errs.New(errs.Internal, "url token claims malformed")
	}

	if c.TrackID != trackID {
		return errs.New(errs.Forbidden, "url token not valid for this track")
	}
	if c.IP != "" && c.IP != errs.ClientIP(r) {
		return errs.New(errs.Forbidden, "url token not valid for this client address")
	}
	if c.Range != "" && c.Range != r.Header.Get("Range") {
		return errs.New(errs.Forbidden, "url token not valid for this range request")
	}

	return nil
}

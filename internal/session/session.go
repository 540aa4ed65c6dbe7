// SPDX-License-Identifier: MIT

// Package session implements the multi-session-per-user manager: session
// creation with oldest-first eviction once a user is at their session cap,
// validation with IP mobile-tolerance and non-fatal user-agent checks, and
// explicit or cap-triggered revocation retained for audit.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/sectify/streamvault/internal/audit"
	"github.com/sectify/streamvault/internal/errs"
	"github.com/sectify/streamvault/internal/log"
	"github.com/sectify/streamvault/internal/metrics"
	"github.com/sectify/streamvault/internal/store"
)

const (
	dataKeyPrefix    = "session:data:"
	userKeyPrefix    = "session:user:"
	revokedKeyPrefix = "session:revoked:"

	// slideThreshold is how close to expiry a session must be before
	// Validate renews its TTL, so an active user is never logged out
	// mid-stream.
	slideThreshold = 30 * time.Minute

	// revokedRetention is how long a revoked session's record is kept
	// around (under revokedKeyPrefix) for audit and forensics.
	revokedRetention = 24 * time.Hour
)

// Session is the record the manager persists for an authenticated client.
type Session struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	IP                string    `json:"ip"`
	UserAgentHash     string    `json:"user_agent_hash"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	LastAccessed      time.Time `json:"last_accessed"`
	AccessCount       int       `json:"access_count"`
	ExpiresAt         time.Time `json:"expires_at"`
	Revoked           bool      `json:"revoked"`
	RevokedAt         time.Time `json:"revoked_at,omitempty"`
	RevokeReason      string    `json:"revoke_reason,omitempty"`
}

// Info is Session with DeviceFingerprint redacted, safe to return to a
// client inspecting their own session list.
type Info struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	IP            string    `json:"ip"`
	CreatedAt     time.Time `json:"created_at"`
	LastAccessed  time.Time `json:"last_accessed"`
	AccessCount   int       `json:"access_count"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Manager issues and validates sessions, enforcing a per-user cap.
type Manager struct {
	Store              store.KV
	MasterSecret       string
	TTL                time.Duration
	MaxSessionsPerUser int
	Audit              *audit.Logger
}

// NewManager constructs a session Manager.
func NewManager(kv store.KV, masterSecret string, ttl time.Duration, maxSessionsPerUser int, auditLogger *audit.Logger) *Manager {
	return &Manager{
		Store:              kv,
		MasterSecret:       masterSecret,
		TTL:                ttl,
		MaxSessionsPerUser: maxSessionsPerUser,
		Audit:              auditLogger,
	}
}

// Create issues a new session for userID, evicting the user's oldest
// session first if they are already at MaxSessionsPerUser.
func (m *Manager) Create(ctx context.Context, userID, ip, userAgent, deviceFingerprint string) (*Session, error) {
	existing, err := m.userSessions(userID)
	if err != nil {
		return nil, err
	}

	evicted := ""
	if len(existing) >= m.MaxSessionsPerUser && m.MaxSessionsPerUser > 0 {
		oldest := existing[0]
		for _, s := range existing[1:] {
			if s.CreatedAt.Before(oldest.CreatedAt) {
				oldest = s
			}
		}
		if err := m.revoke(ctx, &oldest, "session_limit_exceeded"); err != nil {
			return nil, err
		}
		evicted = oldest.ID
		metrics.RecordSessionEvicted()
	}

	id, err := m.newSessionID(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		ID:            id,
		UserID:        userID,
		IP:            ip,
		UserAgentHash: uaHash(userAgent),
		DeviceFingerprint: deviceFingerprint,
		CreatedAt:     now,
		LastAccessed:  now,
		AccessCount:   1,
		ExpiresAt:     now.Add(m.TTL),
	}

	if err := m.persist(sess, m.TTL); err != nil {
		return nil, err
	}
	m.Store.Set(userIndexKey(userID, id), id, m.TTL)

	if m.Audit != nil {
		m.Audit.SessionCreated(userID, id, evicted)
	}
	metrics.RecordSessionCreated()

	return sess, nil
}

// Validate looks up sessionID, rejecting it if missing, revoked, or
// expired. A mismatched remote address beyond mobile tolerance is
// rejected; a mismatched user agent is logged but not fatal. On success,
// access bookkeeping is updated and the session's TTL slides forward if
// it is close to expiring.
func (m *Manager) Validate(ctx context.Context, sessionID, ip, userAgent string) (*Session, error) {
	sess, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}

	if sess.Revoked {
		return nil, errs.New(errs.Unauthenticated, "session has been revoked")
	}
	if time.Now().After(sess.ExpiresAt) {
		return nil, errs.New(errs.Unauthenticated, "session has expired")
	}
	if !addrTolerant(sess.IP, ip) {
		return nil, errs.New(errs.Forbidden, "session remote address mismatch")
	}
	if sess.UserAgentHash != uaHash(userAgent) {
		if m.Audit != nil {
			m.Audit.SessionUAMismatch(sess.UserID, sess.ID, ip)
		}
		metrics.RecordSessionUAMismatch()
		log.WithComponent("session").Warn().
			Str("session_id", sess.ID).
			Msg("user agent hash mismatch on session validation")
	}

	sess.LastAccessed = time.Now()
	sess.AccessCount++

	ttl := time.Until(sess.ExpiresAt)
	if ttl < slideThreshold {
		sess.ExpiresAt = time.Now().Add(m.TTL)
		ttl = m.TTL
	}

	if err := m.persist(sess, ttl); err != nil {
		return nil, err
	}
	m.Store.Set(userIndexKey(sess.UserID, sess.ID), sess.ID, ttl)

	return sess, nil
}

// Revoke explicitly invalidates a session, retaining its record (marked
// revoked) for revokedRetention so it remains visible to an audit.
func (m *Manager) Revoke(ctx context.Context, sessionID, reason string) error {
	sess, err := m.get(sessionID)
	if err != nil {
		return err
	}
	return m.revoke(ctx, sess, reason)
}

// RevokeAll revokes every session belonging to userID, except the one
// named by exceptSessionID (use "" to revoke all of them).
func (m *Manager) RevokeAll(ctx context.Context, userID, exceptSessionID, reason string) error {
	sessions, err := m.userSessions(userID)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if s.ID == exceptSessionID {
			continue
		}
		sess := s
		if err := m.revoke(ctx, &sess, reason); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) revoke(ctx context.Context, sess *Session, reason string) error {
	sess.Revoked = true
	sess.RevokedAt = time.Now()
	sess.RevokeReason = reason

	m.Store.Delete(userIndexKey(sess.UserID, sess.ID))
	m.Store.Delete(dataKeyPrefix + sess.ID)

	encoded, err := json.Marshal(sess)
	if err != nil {
		return errs.Wrap(errs.Internal, "failed to encode revoked session", err)
	}
	m.Store.Set(revokedKeyPrefix+sess.ID, string(encoded), revokedRetention)

	if m.Audit != nil {
		m.Audit.SessionRevoked(sess.UserID, sess.ID, reason)
	}
	metrics.RecordSessionRevoked(reason)
	return nil
}

// Info returns a client-safe view of sessionID, with DeviceFingerprint
// stripped.
func (m *Manager) Info(ctx context.Context, sessionID string) (*Info, error) {
	sess, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	return &Info{
		ID:           sess.ID,
		UserID:       sess.UserID,
		IP:           sess.IP,
		CreatedAt:    sess.CreatedAt,
		LastAccessed: sess.LastAccessed,
		AccessCount:  sess.AccessCount,
		ExpiresAt:    sess.ExpiresAt,
	}, nil
}

// UserSessionCount returns how many live sessions userID currently holds.
func (m *Manager) UserSessionCount(ctx context.Context, userID string) (int, error) {
	sessions, err := m.userSessions(userID)
	if err != nil {
		return 0, err
	}
	return len(sessions), nil
}

// Sweep purges revoked-session records older than revokedRetention. Live
// session expiry is already handled by the underlying store's own TTL;
// Sweep only needs to account for records that outlive that mechanism
// (e.g. a store migration that dropped TTL metadata).
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	keys := m.Store.Keys(revokedKeyPrefix)
	purged := 0
	for _, key := range keys {
		raw, ok := m.Store.Get(key)
		if !ok {
			continue
		}
		encoded, ok := raw.(string)
		if !ok {
			continue
		}
		var sess Session
		if err := json.Unmarshal([]byte(encoded), &sess); err != nil {
			continue
		}
		if time.Since(sess.RevokedAt) > revokedRetention {
			m.Store.Delete(key)
			purged++
		}
	}
	return purged, nil
}

func (m *Manager) get(sessionID string) (*Session, error) {
	raw, ok := m.Store.Get(dataKeyPrefix + sessionID)
	if !ok {
		return nil, errs.New(errs.Unauthenticated, "session not found or expired")
	}
	encoded, ok := raw.(string)
	if !ok {
		return nil, errs.New(errs.Internal, "session payload malformed")
	}
	var sess Session
	if err := json.Unmarshal([]byte(encoded), &sess); err != nil {
		return nil, errs.Wrap(errs.Internal, "failed to decode session", err)
	}
	return &sess, nil
}

func (m *Manager) persist(sess *Session, ttl time.Duration) error {
	encoded, err := json.Marshal(sess)
	if err != nil {
		return errs.Wrap(errs.Internal, "failed to encode session", err)
	}
	m.Store.Set(dataKeyPrefix+sess.ID, string(encoded), ttl)
	return nil
}

func (m *Manager) userSessions(userID string) ([]Session, error) {
	keys := m.Store.Keys(userIndexKey(userID, ""))
	sessions := make([]Session, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimPrefix(key, userIndexKey(userID, ""))
		sess, err := m.get(id)
		if err != nil {
			continue
		}
		sessions = append(sessions, *sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (m *Manager) newSessionID(userID string) (string, error) {
	entropy := make([]byte, 16)
	if _, err := rand.Read(entropy); err != nil {
		return "", errs.Wrap(errs.Internal, "failed to generate session entropy", err)
	}
	h := sha256.New()
	h.Write(entropy)
	h.Write([]byte(userID))
	h.Write([]byte(m.MasterSecret))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func userIndexKey(userID, sessionID string) string {
	return userKeyPrefix + userID + ":" + sessionID
}

func uaHash(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])[:16]
}

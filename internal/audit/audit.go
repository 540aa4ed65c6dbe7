// SPDX-License-Identifier: MIT

// Package audit provides structured audit logging for security-sensitive operations.
// It follows the WHO/WHAT/WHEN pattern for compliance and forensics.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sectify/streamvault/internal/log"
)

// EventType represents the type of audit event.
type EventType string

const (
	// Access-control events (C5)
	EventAccessGranted EventType = "access.granted"
	EventAccessDenied  EventType = "access.denied"
	EventAccessAnon    EventType = "access.unauthenticated"

	// Session events (C6)
	EventSessionCreated EventType = "session.created"
	EventSessionEvicted EventType = "session.evicted"
	EventSessionRevoked EventType = "session.revoked"
	EventSessionExpired EventType = "session.expired"
	EventSessionUAMismatch EventType = "session.ua_mismatch"

	// Processing-lock events (C8)
	EventLockAcquired EventType = "lock.acquired"
	EventLockConflict EventType = "lock.conflict"
	EventLockReleased EventType = "lock.released"
	EventLockForceReleased EventType = "lock.force_released"

	// Signed URL token events (C7)
	EventTokenIssued   EventType = "token.issued"
	EventTokenRejected EventType = "token.rejected"

	// Cipher / integrity events (C1-C3)
	EventIntegrityFailure EventType = "cipher.integrity_failure"
	EventWeakKeyRejected  EventType = "cipher.weak_key_rejected"
	EventChaosWarning     EventType = "cipher.chaos_parameter_warning"

	// HLS cleanup events (C9)
	EventSweepCompleted EventType = "hls.sweep_completed"
)

// Event represents a structured audit event.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	Type       EventType         `json:"type"`
	Actor      string            `json:"actor"`             // WHO: user id, IP, or "system"
	Action     string            `json:"action"`            // WHAT: human-readable action description
	Resource   string            `json:"resource"`          // Resource affected (e.g., track id, session id)
	Result     string            `json:"result"`            // success, failure, denied
	RemoteAddr string            `json:"remote_addr"`       // Client IP address
	UserAgent  string            `json:"user_agent"`        // Client user agent
	RequestID  string            `json:"request_id"`        // Correlation ID
	Details    map[string]string `json:"details,omitempty"` // Additional context
}

// Logger provides audit logging functionality.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new audit logger with a dedicated "audit" component.
func NewLogger() *Logger {
	auditLogger := log.WithComponent("audit").With().
		Str("log_type", "audit").
		Logger()

	return &Logger{
		logger: auditLogger,
	}
}

// Log writes an audit event to the audit log.
func (l *Logger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	logEvent := l.logger.Info().
		Time("timestamp", event.Timestamp).
		Str("event_type", string(event.Type)).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("resource", event.Resource).
		Str("result", event.Result)

	if event.RemoteAddr != "" {
		logEvent.Str("remote_addr", event.RemoteAddr)
	}
	if event.UserAgent != "" {
		logEvent.Str("user_agent", event.UserAgent)
	}
	if event.RequestID != "" {
		logEvent.Str("request_id", event.RequestID)
	}

	for key, value := range event.Details {
		logEvent.Str(key, value)
	}

	logEvent.Msg("audit event")
}

// LogFromContext logs an audit event, filling request metadata from ctx when
// the event does not already carry it (set by an upstream request middleware).
func (l *Logger) LogFromContext(ctx context.Context, event Event) {
	if event.RequestID == "" {
		if reqID := ctx.Value("request_id"); reqID != nil {
			if id, ok := reqID.(string); ok {
				event.RequestID = id
			}
		}
	}

	if event.RemoteAddr == "" {
		if addr := ctx.Value("remote_addr"); addr != nil {
			if ip, ok := addr.(string); ok {
				event.RemoteAddr = ip
			}
		}
	}

	if event.UserAgent == "" {
		if ua := ctx.Value("user_agent"); ua != nil {
			if agent, ok := ua.(string); ok {
				event.UserAgent = agent
			}
		}
	}

	l.Log(event)
}

// AccessGranted logs a successful per-track access check.
func (l *Logger) AccessGranted(userID, trackID, operation string) {
	l.Log(Event{
		Type:     EventAccessGranted,
		Actor:    userID,
		Action:   "granted " + operation + " access",
		Resource: trackID,
		Result:   "success",
	})
}

// AccessDenied logs a forbidden per-track access check.
func (l *Logger) AccessDenied(userID, trackID, operation, reason string) {
	l.Log(Event{
		Type:     EventAccessDenied,
		Actor:    userID,
		Action:   "denied " + operation + " access",
		Resource: trackID,
		Result:   "denied",
		Details: map[string]string{
			"reason": reason,
		},
	})
}

// SessionCreated logs a new session, noting any eviction that made room for it.
func (l *Logger) SessionCreated(userID, sessionID string, evicted string) {
	details := map[string]string{}
	if evicted != "" {
		details["evicted_session"] = evicted
	}
	l.Log(Event{
		Type:     EventSessionCreated,
		Actor:    userID,
		Action:   "created session",
		Resource: sessionID,
		Result:   "success",
		Details:  details,
	})
}

// SessionRevoked logs an explicit session revocation.
func (l *Logger) SessionRevoked(userID, sessionID, reason string) {
	l.Log(Event{
		Type:     EventSessionRevoked,
		Actor:    userID,
		Action:   "revoked session",
		Resource: sessionID,
		Result:   "success",
		Details: map[string]string{
			"reason": reason,
		},
	})
}

// SessionUAMismatch logs a non-fatal user-agent hash mismatch on a validated session.
func (l *Logger) SessionUAMismatch(userID, sessionID, remoteAddr string) {
	l.Log(Event{
		Type:       EventSessionUAMismatch,
		Actor:      userID,
		Action:     "user agent mismatch on session validation",
		Resource:   sessionID,
		Result:     "allowed",
		RemoteAddr: remoteAddr,
	})
}

// LockConflict logs a processing-lock acquisition that was refused because a
// conflicting lock was already held.
func (l *Logger) LockConflict(userID, trackID, operation, heldBy string) {
	l.Log(Event{
		Type:     EventLockConflict,
		Actor:    userID,
		Action:   "lock conflict on " + operation,
		Resource: trackID,
		Result:   "denied",
		Details: map[string]string{
			"held_by": heldBy,
		},
	})
}

// LockForceReleased logs an administrative override that released a user's locks.
func (l *Logger) LockForceReleased(actor, targetUserID string, count int) {
	l.Log(Event{
		Type:     EventLockForceReleased,
		Actor:    actor,
		Action:   "force released processing locks",
		Resource: targetUserID,
		Result:   "success",
		Details: map[string]string{
			"count": formatInt(count),
		},
	})
}

// TokenRejected logs a signed URL token that failed verification.
func (l *Logger) TokenRejected(remoteAddr, trackID, reason string) {
	l.Log(Event{
		Type:       EventTokenRejected,
		Actor:      remoteAddr,
		Action:     "rejected signed url token",
		Resource:   trackID,
		Result:     "denied",
		RemoteAddr: remoteAddr,
		Details: map[string]string{
			"reason": reason,
		},
	})
}

// IntegrityFailure logs a MAC verification failure during decryption.
func (l *Logger) IntegrityFailure(actor, trackID string) {
	l.Log(Event{
		Type:     EventIntegrityFailure,
		Actor:    actor,
		Action:   "ciphertext failed integrity check",
		Resource: trackID,
		Result:   "failure",
	})
}

// ChaosWarning logs an out-of-range chaos parameter detected before encryption.
func (l *Logger) ChaosWarning(actor string, findings []string) {
	l.Log(Event{
		Type:     EventChaosWarning,
		Actor:    actor,
		Action:   "chaos parameter sanity check flagged values",
		Resource: "cipher",
		Result:   "warning",
		Details: map[string]string{
			"findings": join(findings),
		},
	})
}

// SweepCompleted logs an HLS segment sweep pass.
func (l *Logger) SweepCompleted(filesRemoved, dirsRemoved int) {
	l.Log(Event{
		Type:     EventSweepCompleted,
		Actor:    "system",
		Action:   "completed hls segment sweep",
		Resource: "hls",
		Result:   "success",
		Details: map[string]string{
			"files_removed": formatInt(filesRemoved),
			"dirs_removed":  formatInt(dirsRemoved),
		},
	})
}

// Helper functions

func join(strs []string) string {
	result := ""
	for i, s := range strs {
		if i > 0 {
			result += ","
		}
		result += s
	}
	return result
}

func formatInt(i int) string {
	return formatInt64(int64(i))
}

func formatInt64(i int64) string {
	if i == 0 {
		return "0"
	}

	neg := i < 0
	if neg {
		i = -i
	}

	var buf [20]byte
	pos := len(buf)

	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}

	if neg {
		pos--
		buf[pos] = '-'
	}

	return string(buf[pos:])
}

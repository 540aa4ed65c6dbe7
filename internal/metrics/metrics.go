// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics collection for the session,
// lock, cipher, audio-protection, and HLS-sweep components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics (C6)
	sessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamvault_sessions_created_total",
		Help: "Total number of sessions created",
	})

	sessionsEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamvault_sessions_evicted_total",
		Help: "Total number of sessions evicted to make room under the per-user cap",
	})

	sessionsRevokedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamvault_sessions_revoked_total",
		Help: "Total number of sessions revoked, by reason",
	}, []string{"reason"})

	sessionUAMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamvault_session_ua_mismatch_total",
		Help: "Total number of sessions validated with a mismatched user agent hash",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamvault_sessions_active",
		Help: "Approximate number of currently live sessions",
	})

	// Lock metrics (C8)
	lockAcquiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamvault_lock_acquired_total",
		Help: "Total number of processing locks granted, by operation",
	}, []string{"operation"})

	lockConflictTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamvault_lock_conflict_total",
		Help: "Total number of processing lock acquisitions rejected due to conflict, by operation",
	}, []string{"operation"})

	lockForceReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamvault_lock_force_released_total",
		Help: "Total number of locks removed by an admin force-release",
	})

	lockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamvault_lock_wait_seconds",
		Help:    "Time spent waiting for a processing lock to free up",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	})

	// Cipher metrics (C1-C3)
	cipherEncryptTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamvault_cipher_encrypt_total",
		Help: "Total number of encrypt operations, by outcome",
	}, []string{"outcome"}) // outcome=success|weak_key|oversized|error

	cipherDecryptTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamvault_cipher_decrypt_total",
		Help: "Total number of decrypt operations, by outcome",
	}, []string{"outcome"}) // outcome=success|integrity_failure|malformed|oversized

	cipherChaosWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamvault_cipher_chaos_warnings_total",
		Help: "Total number of times chaos parameter analysis flagged an out-of-range lattice state",
	})

	// Audio protection metrics (C4)
	audioprotectDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamvault_audioprotect_duration_seconds",
		Help:    "Duration of file encrypt/decrypt operations",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"operation", "mode"}) // operation=encrypt|decrypt

	audioprotectBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamvault_audioprotect_bytes_processed_total",
		Help: "Total bytes processed by file encrypt/decrypt operations",
	}, []string{"operation"})

	// HLS sweep metrics (C9)
	hlsSweepFilesRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamvault_hls_sweep_files_removed_total",
		Help: "Total number of aged HLS segments removed",
	})

	hlsSweepDirsRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamvault_hls_sweep_dirs_removed_total",
		Help: "Total number of empty HLS directories removed",
	})
)

// RecordSessionCreated increments the sessions-created counter.
func RecordSessionCreated() { sessionsCreatedTotal.Inc() }

// RecordSessionEvicted increments the sessions-evicted counter.
func RecordSessionEvicted() { sessionsEvictedTotal.Inc() }

// RecordSessionRevoked increments the sessions-revoked counter for reason.
func RecordSessionRevoked(reason string) { sessionsRevokedTotal.WithLabelValues(reason).Inc() }

// RecordSessionUAMismatch increments the user-agent mismatch counter.
func RecordSessionUAMismatch() { sessionUAMismatchTotal.Inc() }

// SetActiveSessions sets the approximate live-session gauge.
func SetActiveSessions(n int) { sessionsActive.Set(float64(n)) }

// RecordLockAcquired increments the lock-acquired counter for operation.
func RecordLockAcquired(operation string) { lockAcquiredTotal.WithLabelValues(operation).Inc() }

// RecordLockConflict increments the lock-conflict counter for operation.
func RecordLockConflict(operation string) { lockConflictTotal.WithLabelValues(operation).Inc() }

// RecordLockForceReleased increments the force-release counter.
func RecordLockForceReleased() { lockForceReleasedTotal.Inc() }

// ObserveLockWait records how long a caller waited for a lock to free up.
func ObserveLockWait(seconds float64) { lockWaitSeconds.Observe(seconds) }

// RecordCipherEncrypt increments the encrypt counter for outcome.
func RecordCipherEncrypt(outcome string) { cipherEncryptTotal.WithLabelValues(outcome).Inc() }

// RecordCipherDecrypt increments the decrypt counter for outcome.
func RecordCipherDecrypt(outcome string) { cipherDecryptTotal.WithLabelValues(outcome).Inc() }

// RecordChaosWarning increments the chaos-parameter-warning counter.
func RecordChaosWarning() { cipherChaosWarningsTotal.Inc() }

// ObserveAudioProtectDuration records how long an encrypt/decrypt file
// operation took for a given performance mode.
func ObserveAudioProtectDuration(operation, mode string, seconds float64) {
	audioprotectDurationSeconds.WithLabelValues(operation, mode).Observe(seconds)
}

// AddAudioProtectBytes adds n bytes to the processed-bytes counter for operation.
func AddAudioProtectBytes(operation string, n int) {
	audioprotectBytesProcessed.WithLabelValues(operation).Add(float64(n))
}

// RecordHLSSweep adds filesRemoved and dirsRemoved to their respective counters.
func RecordHLSSweep(filesRemoved, dirsRemoved int) {
	hlsSweepFilesRemovedTotal.Add(float64(filesRemoved))
	hlsSweepDirsRemovedTotal.Add(float64(dirsRemoved))
}

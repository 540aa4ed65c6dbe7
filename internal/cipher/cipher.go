// SPDX-License-Identifier: MIT

package cipher

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/sectify/streamvault/internal/errs"
	"github.com/sectify/streamvault/internal/log"
	"github.com/sectify/streamvault/internal/metrics"
)

const (
	saltSize = 32
	macSize  = 32

	// MaxPlaintextSize bounds the payload Encrypt/Decrypt will process in a
	// single call, matching the reference implementation's 50MB cap.
	MaxPlaintextSize = 50 * 1024 * 1024

	minKeyLength = 12
)

// Encrypt produces an encrypt-then-MAC blob: a random 32-byte salt, a
// 32-byte HMAC-SHA256 tag over salt||ciphertext, and the XOR-keystream
// ciphertext, concatenated in that order. It runs AnalyzeChaosParameters on
// the derived lattice state and logs a warning for any finding, then
// proceeds with encryption.
func Encrypt(plaintext []byte, password string, mode PerformanceMode) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		metrics.RecordCipherEncrypt("error")
		return nil, errs.Wrap(errs.Internal, "failed to generate salt", err)
	}

	masterKey := DeriveMasterKey(password, salt, mode)
	if report := AnalyzeChaosParameters(DeriveCMLState(masterKey, mode)); !report.Sound() {
		log.WithComponent("cipher").Warn().
			Strs("findings", report.Findings).
			Msg("chaos parameter sanity check flagged values; proceeding")
	}
	keystream := Keystream(masterKey, mode, len(plaintext))

	ciphertext := make([]byte, len(plaintext))
	for i := range plaintext {
		ciphertext[i] = plaintext[i] ^ keystream[i]
	}

	mac := computeMAC(password, salt, ciphertext, mode)

	blob := make([]byte, 0, saltSize+macSize+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, mac...)
	blob = append(blob, ciphertext...)
	metrics.RecordCipherEncrypt("success")
	return blob, nil
}

// Decrypt verifies the MAC of blob in constant time, then recovers the
// plaintext from the recorded salt and mode. It returns an
// errs.IntegrityFailure error if the MAC does not match, and never
// attempts to decrypt a blob whose authenticity could not be verified.
func Decrypt(blob []byte, password string, mode PerformanceMode) ([]byte, error) {
	if len(blob) < saltSize+macSize {
		metrics.RecordCipherDecrypt("malformed")
		return nil, errs.New(errs.MalformedBlob, "ciphertext blob shorter than salt+mac header")
	}

	salt := blob[:saltSize]
	mac := blob[saltSize : saltSize+macSize]
	ciphertext := blob[saltSize+macSize:]

	expected := computeMAC(password, salt, ciphertext, mode)
	if !hmac.Equal(mac, expected) {
		metrics.RecordCipherDecrypt("integrity_failure")
		return nil, errs.New(errs.IntegrityFailure, "ciphertext failed MAC verification")
	}

	masterKey := DeriveMasterKey(password, salt, mode)
	keystream := Keystream(masterKey, mode, len(ciphertext))

	plaintext := make([]byte, len(ciphertext))
	for i := range ciphertext {
		plaintext[i] = ciphertext[i] ^ keystream[i]
	}
	metrics.RecordCipherDecrypt("success")
	return plaintext, nil
}

func computeMAC(password string, salt, ciphertext []byte, mode PerformanceMode) []byte {
	hmacKey := DeriveHMACKey(password, salt, mode)
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(salt)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

// ValidateKeyStrength reports whether password is at least 12 characters
// long and contains at least 3 of the 4 character classes: lowercase,
// uppercase, digit, and special character.
func ValidateKeyStrength(password string) bool {
	if len(password) < minKeyLength {
		return false
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune("!@#$%^&*()-_=+[]{};:,.<>/?\\|~`'\"", r):
			hasSpecial = true
		}
	}

	classes := 0
	for _, ok := range []bool{hasLower, hasUpper, hasDigit, hasSpecial} {
		if ok {
			classes++
		}
	}
	return classes >= 3
}

// EncryptValidated wraps Encrypt with the key-strength and payload-size
// gates the reference implementation applies before touching the cipher
// core.
func EncryptValidated(plaintext []byte, password string, mode PerformanceMode) ([]byte, error) {
	if !ValidateKeyStrength(password) {
		metrics.RecordCipherEncrypt("weak_key")
		return nil, errs.New(errs.WeakKey, "password does not meet minimum strength requirements")
	}
	if len(plaintext) > MaxPlaintextSize {
		metrics.RecordCipherEncrypt("oversized")
		return nil, errs.New(errs.PayloadTooLarge, fmt.Sprintf("plaintext exceeds maximum size of %d bytes", MaxPlaintextSize))
	}
	return Encrypt(plaintext, password, mode)
}

// DecryptValidated wraps Decrypt with the same payload-size gate applied
// to the ciphertext blob.
func DecryptValidated(blob []byte, password string, mode PerformanceMode) ([]byte, error) {
	if len(blob) > MaxPlaintextSize+saltSize+macSize {
		metrics.RecordCipherDecrypt("oversized")
		return nil, errs.New(errs.PayloadTooLarge, fmt.Sprintf("ciphertext exceeds maximum size of %d bytes", MaxPlaintextSize))
	}
	return Decrypt(blob, password, mode)
}

// ChaosReport surfaces out-of-range chaos parameters detected before
// encryption, so a caller can log or reject on it instead of the warning
// disappearing into a log line no one reads.
type ChaosReport struct {
	Findings []string
}

// Sound reports whether no parameter fell outside its expected range.
func (r ChaosReport) Sound() bool {
	return len(r.Findings) == 0
}

// AnalyzeChaosParameters inspects a derived lattice state for parameter
// combinations known to weaken the keystream: growth rates outside the
// chaotic regime [3.57, 4.0], initial values too close to the map's fixed
// points (<=0.05 or >=0.95), or coupling strength outside [0.05, 0.5].
// It never rejects on its own; callers decide whether a finding is fatal.
func AnalyzeChaosParameters(state CMLState) ChaosReport {
	var findings []string

	for _, r := range state.R {
		if r < 3.57 || r > 4.0 {
			findings = append(findings, "r_out_of_chaotic_range")
			break
		}
	}
	for _, x := range state.X {
		if x <= 0.05 || x >= 0.95 {
			findings = append(findings, "x_near_fixed_point")
			break
		}
	}
	if state.Epsilon < 0.05 || state.Epsilon > 0.5 {
		findings = append(findings, "epsilon_out_of_range")
	}

	if len(findings) > 0 {
		metrics.RecordChaosWarning()
	}

	return ChaosReport{Findings: findings}
}

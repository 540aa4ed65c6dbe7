// SPDX-License-Identifier: MIT

package cipher

import (
	"crypto/sha256"
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/pbkdf2"
)

const (
	masterKeyLength = 64
	hmacKeyLength   = 32
	hmacSaltSuffix  = "HMAC_DERIVE"

	domainInitState = "CML_INIT_STATE"
	domainParams    = "CML_PARAMETERS"
	domainCoupling  = "CML_COUPLING"

	trackProtectionIterations = 50000
	trackProtectionKeyLength  = 32
	trackProtectionSaltPrefix = "audio_protection:"
)

// DeriveMasterKey stretches password with PBKDF2-HMAC-SHA256 under salt,
// at the iteration count demanded by mode, into a 64-byte master key that
// seeds the lattice state.
func DeriveMasterKey(password string, salt []byte, mode PerformanceMode) []byte {
	p := mode.params()
	return pbkdf2.Key([]byte(password), salt, p.PBKDF2Iterations, masterKeyLength, sha256.New)
}

// DeriveHMACKey stretches password under a salt distinguished from the
// master-key salt by the "HMAC_DERIVE" suffix, producing the key used to
// authenticate ciphertext. Deriving it from the same password rather than
// from the master key keeps the MAC key independent of keystream state.
func DeriveHMACKey(password string, salt []byte, mode PerformanceMode) []byte {
	p := mode.params()
	hmacSalt := append(append([]byte{}, salt...), []byte(hmacSaltSuffix)...)
	return pbkdf2.Key([]byte(password), hmacSalt, p.PBKDF2Iterations, hmacKeyLength, sha256.New)
}

// deriveSubkey derives a 32-byte domain-separated subkey from masterKey
// using masterKey as a BLAKE2b MAC key over the domain label. This gives
// each of the lattice's three parameter families (initial state, r
// parameters, coupling strength) an independent, reproducible subkey
// without a second pass over the password.
func deriveSubkey(masterKey []byte, domain string) []byte {
	h, err := blake2b.New256(masterKey)
	if err != nil {
		// masterKey is always <= 64 bytes (blake2b-256's max key size),
		// so this can only fail on a programming error.
		panic("cipher: invalid blake2b key size: " + err.Error())
	}
	h.Write([]byte(domain))
	return h.Sum(nil)
}

// CMLState holds the derived lattice parameters: per-cell initial values,
// per-cell growth rates, and the shared coupling strength.
type CMLState struct {
	X       []float64
	R       []float64
	Epsilon float64
}

// DeriveCMLState expands masterKey into the lattice's initial state, one
// (x, r) pair per lattice cell plus a shared coupling coefficient, sized
// for mode's lattice size.
func DeriveCMLState(masterKey []byte, mode PerformanceMode) CMLState {
	p := mode.params()

	xKey := deriveSubkey(masterKey, domainInitState)
	rKey := deriveSubkey(masterKey, domainParams)
	epsKey := deriveSubkey(masterKey, domainCoupling)

	x := make([]float64, p.LatticeSize)
	r := make([]float64, p.LatticeSize)
	for i := 0; i < p.LatticeSize; i++ {
		xs := binary.BigEndian.Uint16(xKey[2*i : 2*i+2])
		rs := binary.BigEndian.Uint16(rKey[2*i : 2*i+2])
		x[i] = 0.1 + (float64(xs)/65535.0)*0.8
		r[i] = 3.8 + (float64(rs)/65535.0)*0.2
	}

	q := binary.BigEndian.Uint32(epsKey[0:4])
	epsilon := 0.1 + (float64(q)/float64(1<<32-1))*0.3

	return CMLState{X: x, R: r, Epsilon: epsilon}
}

// DeriveTrackKey derives a per-track protection key from a master secret,
// salted by the track id so that compromising one track's key reveals
// nothing about another's. It mirrors the audio-protection key used to
// wrap per-file encryption independent of any per-request session secret.
func DeriveTrackKey(masterSecret, trackID string) []byte {
	salt := sha256.Sum256([]byte(trackProtectionSaltPrefix + trackID))
	return pbkdf2.Key([]byte(masterSecret), salt[:], trackProtectionIterations, trackProtectionKeyLength, sha256.New)
}

// SPDX-License-Identifier: MIT

// Package audioprotect is the per-file facade over internal/cipher: it
// derives a per-track key, encrypts or decrypts an audio file on disk, and
// publishes progress as it goes. It never reads the environment itself;
// master secret and performance mode are supplied by the caller.
package audioprotect

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/sectify/streamvault/internal/cipher"
	"github.com/sectify/streamvault/internal/errs"
	"github.com/sectify/streamvault/internal/log"
	"github.com/sectify/streamvault/internal/metrics"
	"github.com/sectify/streamvault/internal/progress"
)

// EncryptedSuffix marks a file on disk as the protected form of an
// original audio file.
const EncryptedSuffix = ".encrypted"

// SupportedFormats lists the source audio extensions this package will
// protect. Anything else is rejected before any I/O happens.
var SupportedFormats = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
}

const sha256ChunkSize = 4096

// Result describes the outcome of an encrypt or decrypt operation.
type Result struct {
	OutputPath string
	SHA256     string
}

// Protector encrypts and decrypts audio files under a master secret and a
// fixed PerformanceMode.
type Protector struct {
	MasterSecret string
	Mode         cipher.PerformanceMode
	Tracker      *progress.Tracker
}

// NewProtector constructs a Protector. tracker may be nil, in which case
// progress is computed but never published.
func NewProtector(masterSecret string, mode cipher.PerformanceMode, tracker *progress.Tracker) *Protector {
	return &Protector{MasterSecret: masterSecret, Mode: mode, Tracker: tracker}
}

func (p *Protector) publish(trackID, operation string, percent int, stage string) {
	if p.Tracker == nil {
		return
	}
	p.Tracker.Publish(trackID+":"+operation, percent, stage)
}

func (p *Protector) trackKey(trackID string) string {
	return base64.StdEncoding.EncodeToString(cipher.DeriveTrackKey(p.MasterSecret, trackID))
}

// EncryptFile encrypts srcPath in place of a new "<srcPath>.encrypted"
// file, using a tempfile-then-rename so a reader never observes a
// partially written encrypted file.
func (p *Protector) EncryptFile(ctx context.Context, trackID, srcPath string) (Result, error) {
	start := time.Now()
	ext := strings.ToLower(filepath.Ext(srcPath))
	if !SupportedFormats[ext] {
		return Result{}, errs.New(errs.Validation, "unsupported audio format: "+ext)
	}

	p.publish(trackID, "encrypt", 0, "reading_source")

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return Result{}, errs.Wrap(errs.Internal, "failed to read source file", err)
	}
	defer func() {
		metrics.ObserveAudioProtectDuration("encrypt", p.Mode.String(), time.Since(start).Seconds())
	}()
	metrics.AddAudioProtectBytes("encrypt", len(data))

	p.publish(trackID, "encrypt", 10, "hashing_source")
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	p.publish(trackID, "encrypt", 20, "deriving_key")
	key := p.trackKey(trackID)

	p.publish(trackID, "encrypt", 30, "evolving_lattice")
	blob, err := cipher.EncryptValidated(data, key, p.Mode)
	if err != nil {
		return Result{}, err
	}

	p.publish(trackID, "encrypt", 90, "writing_output")
	dstPath := srcPath + EncryptedSuffix
	if err := atomicWrite(dstPath, blob); err != nil {
		return Result{}, errs.Wrap(errs.Internal, "failed to write encrypted file", err)
	}

	p.publish(trackID, "encrypt", 100, "done")
	return Result{OutputPath: dstPath, SHA256: checksum}, nil
}

// DecryptFile decrypts srcPath (expected to end in EncryptedSuffix) back to
// its original name, verifying the integrity of the result against
// expectedSHA256 when it is non-empty.
func (p *Protector) DecryptFile(ctx context.Context, trackID, srcPath, expectedSHA256 string) (Result, error) {
	start := time.Now()
	if !IsEncrypted(srcPath) {
		return Result{}, errs.New(errs.Validation, "source file is not a recognized encrypted file")
	}

	p.publish(trackID, "decrypt", 0, "reading_source")
	blob, err := os.ReadFile(srcPath)
	if err != nil {
		return Result{}, errs.Wrap(errs.Internal, "failed to read encrypted file", err)
	}
	defer func() {
		metrics.ObserveAudioProtectDuration("decrypt", p.Mode.String(), time.Since(start).Seconds())
	}()
	metrics.AddAudioProtectBytes("decrypt", len(blob))

	p.publish(trackID, "decrypt", 20, "deriving_key")
	key := p.trackKey(trackID)

	p.publish(trackID, "decrypt", 30, "verifying_and_decrypting")
	plaintext, err := cipher.DecryptValidated(blob, key, p.Mode)
	if err != nil {
		return Result{}, err
	}

	sum := sha256.Sum256(plaintext)
	checksum := hex.EncodeToString(sum[:])
	if expectedSHA256 != "" && checksum != expectedSHA256 {
		log.WithComponent("audioprotect").Warn().
			Str("track_id", trackID).
			Msg("decrypted content checksum mismatch")
		return Result{}, errs.New(errs.IntegrityFailure, "decrypted content does not match recorded checksum")
	}

	p.publish(trackID, "decrypt", 90, "writing_output")
	dstPath := OriginalName(srcPath)
	if err := atomicWrite(dstPath, plaintext); err != nil {
		return Result{}, errs.Wrap(errs.Internal, "failed to write decrypted file", err)
	}

	p.publish(trackID, "decrypt", 100, "done")
	return Result{OutputPath: dstPath, SHA256: checksum}, nil
}

// IsEncrypted reports whether path carries the encrypted-file suffix.
func IsEncrypted(path string) bool {
	return strings.HasSuffix(path, EncryptedSuffix)
}

// OriginalName strips the encrypted-file suffix from path, returning path
// unchanged if it is not present.
func OriginalName(path string) string {
	return strings.TrimSuffix(path, EncryptedSuffix)
}

// CalculateFileSHA256 hashes a file from disk in fixed-size chunks, so
// large files never need to be loaded in full just to be checksummed.
func CalculateFileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errs.Wrap(errs.Internal, "failed to open file for hashing", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, sha256ChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errs.Wrap(errs.Internal, "failed to read file for hashing", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// atomicWrite durably writes data to dstPath: renameio handles temp file
// creation, fsync, atomic rename, and temp file cleanup on error, so a
// process crash never leaves a half-written or lost file at dstPath.
func atomicWrite(dstPath string, data []byte) error {
	pendingFile, err := renameio.NewPendingFile(dstPath, renameio.WithPermissions(0o600))
	if err != nil {
		return err
	}
	defer pendingFile.Cleanup()

	if _, err := pendingFile.Write(data); err != nil {
		return err
	}
	return pendingFile.CloseAtomicallyReplace()
}

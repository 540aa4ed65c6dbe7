// SPDX-License-Identifier: MIT

// Package hlssweep periodically deletes aged HLS segment files from disk,
// preserving playlists and keys, and removes directories left empty by
// that deletion.
package hlssweep

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sectify/streamvault/internal/audit"
	"github.com/sectify/streamvault/internal/log"
	"github.com/sectify/streamvault/internal/metrics"
	"golang.org/x/sync/errgroup"
)

const segmentExt = ".ts"

// DefaultInterval is how often a Sweeper checks for aged segments when the
// caller does not specify one.
const DefaultInterval = 2 * time.Minute

// DefaultMaxAge is how old a segment must be before Sweep deletes it.
const DefaultMaxAge = 10 * time.Minute

// Sweeper removes aged .ts segments under Root, leaving .m3u8 and .key
// files untouched, and prunes directories left empty by that removal.
type Sweeper struct {
	Root     string
	MaxAge   time.Duration
	Interval time.Duration
	Audit    *audit.Logger
}

// NewSweeper constructs a Sweeper rooted at dir.
func NewSweeper(dir string, maxAge, interval time.Duration, auditLogger *audit.Logger) *Sweeper {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{Root: dir, MaxAge: maxAge, Interval: interval, Audit: auditLogger}
}

// Run starts the periodic sweep loop under g, stopping when ctx is
// cancelled. It performs one sweep immediately, then one per Interval.
func (s *Sweeper) Run(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		logger := log.WithComponent("hlssweep")
		logger.Info().Str("root", s.Root).Dur("max_age", s.MaxAge).Dur("interval", s.Interval).
			Msg("starting hls segment sweep loop")

		if _, _, err := s.Sweep(); err != nil {
			logger.Error().Err(err).Msg("initial hls sweep failed")
		}

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				filesRemoved, dirsRemoved, err := s.Sweep()
				if err != nil {
					logger.Error().Err(err).Msg("hls sweep failed")
					continue
				}
				if filesRemoved > 0 || dirsRemoved > 0 {
					metrics.RecordHLSSweep(filesRemoved, dirsRemoved)
					if s.Audit != nil {
						s.Audit.SweepCompleted(filesRemoved, dirsRemoved)
					}
				}
			}
		}
	})
}

// Sweep performs a single bottom-up pass: it deletes segment files older
// than MaxAge, then removes directories (other than Root itself) left
// empty by that deletion. It returns how many files and directories were
// removed.
func (s *Sweeper) Sweep() (filesRemoved, dirsRemoved int, err error) {
	logger := log.WithComponent("hlssweep")
	now := time.Now()

	var dirs []string
	walkErr := filepath.Walk(s.Root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return nil
			}
			return walkErr
		}
		if info.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		if filepath.Ext(path) != segmentExt {
			return nil
		}
		if now.Sub(info.ModTime()) <= s.MaxAge {
			return nil
		}
		if removeErr := os.Remove(path); removeErr != nil {
			if !os.IsNotExist(removeErr) {
				logger.Error().Err(removeErr).Str("path", path).Msg("failed to remove aged segment")
			}
			return nil
		}
		filesRemoved++
		logger.Debug().Str("path", path).Msg("removed aged segment")
		return nil
	})
	if walkErr != nil {
		return filesRemoved, dirsRemoved, walkErr
	}

	// Process directories deepest-first so a child emptied this pass can
	// cause its now-empty parent to be removed in the same sweep.
	for i := len(dirs) - 1; i >= 0; i-- {
		dir := dirs[i]
		if dir == s.Root {
			continue
		}
		entries, readErr := os.ReadDir(dir)
		if readErr != nil {
			continue
		}
		if len(entries) > 0 {
			continue
		}
		if removeErr := os.Remove(dir); removeErr != nil {
			continue
		}
		dirsRemoved++
		logger.Debug().Str("path", dir).Msg("removed empty hls directory")
	}

	return filesRemoved, dirsRemoved, nil
}

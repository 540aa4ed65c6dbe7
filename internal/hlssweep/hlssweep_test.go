// SPDX-License-Identifier: MIT

package hlssweep

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
	if age > 0 {
		old := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, old, old))
	}
}

func TestSweep_RemovesOnlyAgedSegments(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "old.ts"), 20*time.Minute)
	touch(t, filepath.Join(root, "new.ts"), 0)

	s := NewSweeper(root, 10*time.Minute, time.Minute, nil)
	filesRemoved, _, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, filesRemoved)

	_, err = os.Stat(filepath.Join(root, "old.ts"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "new.ts"))
	assert.NoError(t, err)
}

func TestSweep_PreservesPlaylistsAndKeys(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "segment.ts"), 20*time.Minute)
	touch(t, filepath.Join(root, "playlist.m3u8"), 20*time.Minute)
	touch(t, filepath.Join(root, "stream.key"), 20*time.Minute)

	s := NewSweeper(root, 10*time.Minute, time.Minute, nil)
	filesRemoved, _, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, filesRemoved)

	_, err = os.Stat(filepath.Join(root, "playlist.m3u8"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "stream.key"))
	assert.NoError(t, err)
}

func TestSweep_RemovesEmptyDirectoriesButNotRoot(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "track-1")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	touch(t, filepath.Join(sub, "segment.ts"), 20*time.Minute)

	s := NewSweeper(root, 10*time.Minute, time.Minute, nil)
	filesRemoved, dirsRemoved, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, filesRemoved)
	assert.Equal(t, 1, dirsRemoved)

	_, err = os.Stat(sub)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(root)
	assert.NoError(t, err, "root directory itself must never be removed")
}

func TestSweep_LeavesNonEmptyDirectoriesAlone(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "track-1")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	touch(t, filepath.Join(sub, "segment.ts"), 20*time.Minute)
	touch(t, filepath.Join(sub, "playlist.m3u8"), 20*time.Minute)

	s := NewSweeper(root, 10*time.Minute, time.Minute, nil)
	_, dirsRemoved, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 0, dirsRemoved)

	_, err = os.Stat(sub)
	assert.NoError(t, err)
}

func TestSweep_ToleratesMissingRoot(t *testing.T) {
	s := NewSweeper(filepath.Join(t.TempDir(), "does-not-exist"), 10*time.Minute, time.Minute, nil)
	filesRemoved, dirsRemoved, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 0, filesRemoved)
	assert.Equal(t, 0, dirsRemoved)
}

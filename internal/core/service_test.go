package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSaveUpload(t *testing.T) {
	t.Run("stores under uploads dir with unique prefix", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		a, err := svc.SaveUpload("rides.csv", strings.NewReader("data\n1\n"))
		require.NoError(t, err)
		b, err := svc.SaveUpload("rides.csv", strings.NewReader("data\n2\n"))
		require.NoError(t, err)

		require.NotEqual(t, a.Filepath, b.Filepath)
		require.Equal(t, "rides.csv", a.Filename)
		require.Equal(t, int64(7), a.FileSize)
		require.FileExists(t, a.Filepath)
	})

	t.Run("rejects unsupported extension", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.SaveUpload("report.pdf", strings.NewReader("x"))
		require.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		dir := t.TempDir()
		svc, err := NewService(newFakeLogStore(), &fakeRecordStore{}, dir, WithMaxFileSize(10))
		require.NoError(t, err)

		_, err = svc.SaveUpload("big.csv", strings.NewReader("0123456789TOO_LONG"))
		require.ErrorIs(t, err, ErrFileTooLarge)

		// Nothing may be left behind in the staging directory.
		entries, readErr := os.ReadDir(dir)
		require.NoError(t, readErr)
		require.Empty(t, entries)
	})

	t.Run("accepts file exactly at limit", func(t *testing.T) {
		logs := newFakeLogStore()
		svc, err := NewService(logs, &fakeRecordStore{}, t.TempDir(), WithMaxFileSize(10))
		require.NoError(t, err)

		staged, err := svc.SaveUpload("ok.csv", strings.NewReader("0123456789"))
		require.NoError(t, err)
		require.Equal(t, int64(10), staged.FileSize)
	})

	t.Run("sanitizes hostile filenames", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		staged, err := svc.SaveUpload("../../etc/passwd.csv", strings.NewReader("data\n1\n"))
		require.NoError(t, err)
		require.Equal(t, "passwd.csv", staged.Filename)
		require.NotContains(t, staged.Filepath, "..")
	})
}

func TestResolveStagedPath(t *testing.T) {
	svc, _, _ := newTestService(t)
	staged, err := svc.SaveUpload("rides.csv", strings.NewReader("data\n1\n"))
	require.NoError(t, err)

	t.Run("staged file resolves", func(t *testing.T) {
		abs, err := svc.resolveStagedPath(staged.Filepath)
		require.NoError(t, err)
		require.True(t, filepath.IsAbs(abs))
	})

	t.Run("path outside staging rejected", func(t *testing.T) {
		outside := filepath.Join(t.TempDir(), "other.csv")
		require.NoError(t, os.WriteFile(outside, []byte("data\n1\n"), 0o644))

		_, err := svc.resolveStagedPath(outside)
		require.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("traversal out of staging rejected", func(t *testing.T) {
		_, err := svc.resolveStagedPath(filepath.Join(svc.uploadsDir, "..", "escape.csv"))
		require.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("missing file rejected", func(t *testing.T) {
		_, err := svc.resolveStagedPath(filepath.Join(svc.uploadsDir, "nope.csv"))
		require.ErrorIs(t, err, ErrFileNotFound)
	})
}

func TestCleanupOldFiles(t *testing.T) {
	svc, _, _ := newTestService(t)

	old, err := svc.SaveUpload("old.csv", strings.NewReader("data\n1\n"))
	require.NoError(t, err)
	fresh, err := svc.SaveUpload("fresh.csv", strings.NewReader("data\n1\n"))
	require.NoError(t, err)

	stale := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(old.Filepath, stale, stale))

	removed, err := svc.CleanupOldFiles(7)
	require.NoError(t, err)

	require.Equal(t, 1, removed)
	require.NoFileExists(t, old.Filepath)
	require.FileExists(t, fresh.Filepath)
}

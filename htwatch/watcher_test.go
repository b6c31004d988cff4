package htwatch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kardianos/htpasswd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStore(t *testing.T, path string, users ...string) {
	t.Helper()
	s := htpasswd.New()
	for _, u := range users {
		h, err := htpasswd.ParseHash("{SHA}" + u)
		require.NoError(t, err)
		require.NoError(t, s.SetHash(u, h))
	}
	require.NoError(t, htpasswd.WriteFile(path, s))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRequiresFile(t *testing.T) {
	_, err := New(Config{Path: filepath.Join(t.TempDir(), "missing"), Logger: quietLogger()})
	assert.ErrorIs(t, err, htpasswd.ErrNotFound)

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestReloadKeepsLastGood(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users")
	writeStore(t, path, "alice")

	var logs bytes.Buffer
	w, err := New(Config{Path: path, Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	require.NoError(t, err)
	defer w.Close()

	_, ok := w.Lookup("alice")
	assert.True(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("broken line\n"), 0600))
	err = w.Reload()
	assert.ErrorIs(t, err, htpasswd.ErrMalformedLine)
	assert.Equal(t, []string{"alice"}, w.Current().Users())
	assert.Contains(t, logs.String(), "htpasswd reload failed")

	writeStore(t, path, "alice", "bob")
	require.NoError(t, w.Reload())
	assert.Equal(t, []string{"alice", "bob"}, w.Current().Users())
}

func TestCurrentIsCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users")
	writeStore(t, path, "alice")

	w, err := New(Config{Path: path, Logger: quietLogger()})
	require.NoError(t, err)
	defer w.Close()

	c := w.Current()
	c.Remove("alice")
	_, ok := w.Lookup("alice")
	assert.True(t, ok)
}

func TestRunPicksUpAtomicRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users")
	writeStore(t, path, "alice")

	var reloads atomic.Int32
	w, err := New(Config{
		Path:     path,
		Logger:   quietLogger(),
		OnReload: func(*htpasswd.Store) { reloads.Add(1) },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Unrelated files in the same directory are ignored.
	writeStore(t, filepath.Join(filepath.Dir(path), "other"), "mallory")
	writeStore(t, path, "alice", "bob")

	require.Eventually(t, func() bool {
		_, ok := w.Lookup("bob")
		return ok
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return reloads.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	_, ok := w.Lookup("mallory")
	assert.False(t, ok)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled), "Run returned %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

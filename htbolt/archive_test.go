package htbolt

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kardianos/htpasswd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(Config{Path: filepath.Join(t.TempDir(), "db", "archive.db")})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func testStore(t *testing.T) *htpasswd.Store {
	t.Helper()
	s, err := htpasswd.NewWithConfig(htpasswd.HashConfig{Cost: htpasswd.MinCost})
	require.NoError(t, err)
	require.NoError(t, s.Set("zed", "z"))
	legacy, err := htpasswd.ParseHash("$apr1$lZL6V/ci$eIMz/iKDkbtys/uU7LEK00")
	require.NoError(t, err)
	require.NoError(t, s.SetHash("amy", legacy))
	require.NoError(t, s.Set("mid", "m"))
	return s
}

func TestArchiveSaveLoad(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return fixed }
	t.Cleanup(func() { timeNow = time.Now })

	a := openTestArchive(t)
	s := testStore(t)
	require.NoError(t, a.Save("web", s))

	got, err := a.Load("web")
	require.NoError(t, err)
	assert.Equal(t, []string{"zed", "amy", "mid"}, got.Users())
	assert.Equal(t, htpasswd.Marshal(s), htpasswd.Marshal(got))
	assert.NoError(t, got.Verify("zed", "z"))

	h, ok := got.Get("amy")
	require.True(t, ok)
	assert.Equal(t, htpasswd.SchemeAPR1, h.Scheme())

	info, err := a.Info("web")
	require.NoError(t, err)
	assert.Equal(t, "web", info.Name)
	assert.Equal(t, 3, info.Count)
	assert.True(t, fixed.Equal(info.UpdatedAt), "UpdatedAt = %v", info.UpdatedAt)
}

func TestArchiveSaveReplaces(t *testing.T) {
	a := openTestArchive(t)
	s := testStore(t)
	require.NoError(t, a.Save("web", s))

	s.Remove("zed")
	require.NoError(t, s.Set("new", "n"))
	require.NoError(t, a.Save("web", s))

	got, err := a.Load("web")
	require.NoError(t, err)
	assert.Equal(t, []string{"amy", "mid", "new"}, got.Users())

	info, err := a.Info("web")
	require.NoError(t, err)
	assert.Equal(t, 3, info.Count)
}

func TestArchiveRealms(t *testing.T) {
	a := openTestArchive(t)
	s := testStore(t)

	names, err := a.Realms()
	require.NoError(t, err)
	assert.Empty(t, names)

	for _, r := range []string{"staging", "prod", "dev.local"} {
		require.NoError(t, a.Save(r, s))
	}
	names, err = a.Realms()
	require.NoError(t, err)
	assert.Equal(t, []string{"dev.local", "prod", "staging"}, names)

	require.NoError(t, a.Delete("prod"))
	require.NoError(t, a.Delete("prod"))
	names, err = a.Realms()
	require.NoError(t, err)
	assert.Equal(t, []string{"dev.local", "staging"}, names)

	_, err = a.Load("prod")
	assert.ErrorIs(t, err, ErrRealmNotFound)
	_, err = a.Info("prod")
	assert.ErrorIs(t, err, ErrRealmNotFound)
}

func TestArchiveEmptyRealm(t *testing.T) {
	a := openTestArchive(t)
	require.NoError(t, a.Save("empty", htpasswd.New()))

	got, err := a.Load("empty")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestArchiveInvalidRealm(t *testing.T) {
	a := openTestArchive(t)
	for _, r := range []string{"", "../etc", "-lead", "has space", string(make([]byte, 65))} {
		assert.ErrorIs(t, a.Save(r, htpasswd.New()), ErrInvalidRealm, "%q", r)
		_, err := a.Load(r)
		assert.ErrorIs(t, err, ErrInvalidRealm, "%q", r)
	}
}

func TestArchiveImportExport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.htpasswd")
	input := "# managed elsewhere\nolduser:{SHA}abcdef==\nweb:$apr1$lZL6V/ci$eIMz/iKDkbtys/uU7LEK00\n"
	require.NoError(t, os.WriteFile(src, []byte(input), 0600))

	a := openTestArchive(t)
	require.NoError(t, a.Import("legacy", src))

	dst := filepath.Join(dir, "out.htpasswd")
	require.NoError(t, a.Export("legacy", dst))
	out, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "olduser:{SHA}abcdef==\nweb:$apr1$lZL6V/ci$eIMz/iKDkbtys/uU7LEK00\n", string(out))

	assert.ErrorIs(t, a.Import("missing", filepath.Join(dir, "nope")), htpasswd.ErrNotFound)
	assert.ErrorIs(t, a.Export("missing", dst), ErrRealmNotFound)
}

func TestArchivePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	a, err := Open(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, a.Save("web", testStore(t)))
	require.NoError(t, a.Close())

	a, err = Open(Config{Path: path})
	require.NoError(t, err)
	defer a.Close()
	got, err := a.Load("web")
	require.NoError(t, err)
	assert.Equal(t, []string{"zed", "amy", "mid"}, got.Users())
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frartenzo/webeep-sync/internal/moodle"
)

type staticProvider struct{ token string }

func (p staticProvider) RequestToken(ctx context.Context) (string, error) {
	return p.token, nil
}

func TestNewWiresComponents(t *testing.T) {
	dir := t.TempDir()

	a, err := New(&Options{
		DataDir: dir,
		Auth:    staticProvider{token: "tok"},
		Tokens:  &moodle.MemoryTokenStore{},
	})
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Client)
	assert.NotNil(t, a.Index)
	assert.NotNil(t, a.Engine)
	assert.Equal(t, filepath.Join(dir, "settings.json"), a.Store.Path())
	assert.FileExists(t, filepath.Join(dir, "files.db"))
	assert.False(t, a.Client.LoggedIn())
}

func TestNewResolvesRelativeDataDir(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	a, err := New(&Options{
		DataDir: "data",
		Auth:    staticProvider{token: "tok"},
		Tokens:  &moodle.MemoryTokenStore{},
	})
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, filepath.IsAbs(a.DataDir))
	assert.Equal(t, "data", filepath.Base(a.DataDir))
	assert.DirExists(t, a.DataDir)
	assert.True(t, filepath.IsAbs(a.Store.Path()))
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	dir := t.TempDir()
	newInstance := func() *App {
		a, err := New(&Options{
			DataDir: dir,
			Auth:    staticProvider{token: "tok"},
			Tokens:  &moodle.MemoryTokenStore{},
		})
		require.NoError(t, err)
		t.Cleanup(func() { a.Close() })
		return a
	}

	first := NewDaemon(newInstance())
	locked, err := first.lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer first.lock.Unlock()

	second := NewDaemon(newInstance())
	err = second.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

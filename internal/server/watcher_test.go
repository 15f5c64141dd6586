package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LuisBuenanyo/eos-phone-home/internal/config"
)

func writeWatcherConfig(t *testing.T, path, level string) {
	t.Helper()
	content := "version: \"1.0\"\nlogging:\n  level: " + level + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestConfigWatcher_AppliesChangedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phone-home.yaml")
	writeWatcherConfig(t, path, "info")

	initial, err := config.Load(path)
	require.NoError(t, err)

	applied := make(chan *config.Config, 1)
	cw, err := NewConfigWatcher(path, initial, func(next *config.Config) error {
		applied <- next
		return nil
	})
	require.NoError(t, err)
	cw.debounceTime = 50 * time.Millisecond

	require.NoError(t, cw.Start(t.Context()))
	t.Cleanup(func() { require.NoError(t, cw.Stop()) })

	writeWatcherConfig(t, path, "debug")

	select {
	case next := <-applied:
		require.Equal(t, "debug", next.Logging.Level)
		require.Same(t, next, cw.Current())
	case <-time.After(5 * time.Second):
		t.Fatal("changed configuration was never applied")
	}
}

func TestConfigWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phone-home.yaml")
	writeWatcherConfig(t, path, "info")

	initial, err := config.Load(path)
	require.NoError(t, err)

	applied := make(chan *config.Config, 1)
	cw, err := NewConfigWatcher(path, initial, func(next *config.Config) error {
		applied <- next
		return nil
	})
	require.NoError(t, err)
	cw.debounceTime = 50 * time.Millisecond

	require.NoError(t, cw.Start(t.Context()))
	t.Cleanup(func() { require.NoError(t, cw.Stop()) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("unrelated"), 0o644))

	select {
	case <-applied:
		t.Fatal("unrelated file change triggered a reload")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestConfigWatcher_KeepsOldConfigOnBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phone-home.yaml")
	writeWatcherConfig(t, path, "info")

	initial, err := config.Load(path)
	require.NoError(t, err)

	applied := make(chan *config.Config, 1)
	cw, err := NewConfigWatcher(path, initial, func(next *config.Config) error {
		applied <- next
		return nil
	})
	require.NoError(t, err)
	cw.debounceTime = 50 * time.Millisecond

	require.NoError(t, cw.Start(t.Context()))
	t.Cleanup(func() { require.NoError(t, cw.Stop()) })

	require.NoError(t, os.WriteFile(path, []byte("{ this is not yaml"), 0o644))

	select {
	case <-applied:
		t.Fatal("broken configuration must not be applied")
	case <-time.After(500 * time.Millisecond):
	}
	require.Same(t, initial, cw.Current())
}

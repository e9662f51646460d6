package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stilch/stilch/core"
)

func TestWatcherSubmitsReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(path, []byte("gaps inner 5\n"), 0o644))

	events := make(chan core.Event, 4)
	w, err := Watch(path, func(ev core.Event) { events <- ev })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("gaps inner 12\n"), 0o644))

	select {
	case ev := <-events:
		reload, ok := ev.(core.ConfigReload)
		require.True(t, ok, "expected ConfigReload, got %T", ev)
		require.Equal(t, 12, reload.Snapshot.InnerGap)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload event arrived")
	}
}

func TestWatcherKeepsPreviousOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(path, []byte("gaps inner 5\n"), 0o644))

	events := make(chan core.Event, 4)
	w, err := Watch(path, func(ev core.Event) { events <- ev })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("gaps inner broken\n"), 0o644))

	select {
	case ev := <-events:
		t.Fatalf("broken config must not reach the engine, got %T", ev)
	case <-time.After(500 * time.Millisecond):
	}
}

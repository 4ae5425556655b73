package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForBuilds(t *testing.T, builds *atomic.Int32, want int32, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if builds.Load() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("builds = %d, want at least %d", builds.Load(), want)
}

func startWatcher(t *testing.T, w *Watcher) (context.CancelFunc, chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return cancel, done
}

func stopWatcher(t *testing.T, cancel context.CancelFunc, done chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRunBuildsOnStart(t *testing.T) {
	dir := t.TempDir()
	var builds atomic.Int32
	w := New([]string{dir}, func(context.Context) error {
		builds.Add(1)
		return nil
	}, 10*time.Millisecond, 0, quietLogger())

	cancel, done := startWatcher(t, w)
	waitForBuilds(t, &builds, 1, 2*time.Second)
	stopWatcher(t, cancel, done)
}

func TestRunRebuildsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	var builds atomic.Int32
	w := New([]string{dir}, func(context.Context) error {
		builds.Add(1)
		return nil
	}, 10*time.Millisecond, 0, quietLogger())

	cancel, done := startWatcher(t, w)
	defer stopWatcher(t, cancel, done)

	waitForBuilds(t, &builds, 1, 2*time.Second)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.md"), []byte("changed"), 0o600))
	waitForBuilds(t, &builds, 2, 3*time.Second)
}

func TestRunCoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	var builds atomic.Int32
	w := New([]string{dir}, func(context.Context) error {
		builds.Add(1)
		return nil
	}, 100*time.Millisecond, 0, quietLogger())

	cancel, done := startWatcher(t, w)
	defer stopWatcher(t, cancel, done)

	waitForBuilds(t, &builds, 1, 2*time.Second)
	for i := range 5 {
		name := filepath.Join(dir, "burst"+string(rune('a'+i))+".md")
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o600))
		time.Sleep(5 * time.Millisecond)
	}
	waitForBuilds(t, &builds, 2, 3*time.Second)

	// The burst must not fan out into one build per write.
	time.Sleep(300 * time.Millisecond)
	require.LessOrEqual(t, builds.Load(), int32(3))
}

func TestRunIgnoresEditorArtifacts(t *testing.T) {
	dir := t.TempDir()
	var builds atomic.Int32
	w := New([]string{dir}, func(context.Context) error {
		builds.Add(1)
		return nil
	}, 10*time.Millisecond, 0, quietLogger())

	cancel, done := startWatcher(t, w)
	defer stopWatcher(t, cancel, done)

	waitForBuilds(t, &builds, 1, 2*time.Second)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.md.swp"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o600))
	time.Sleep(500 * time.Millisecond)
	require.Equal(t, int32(1), builds.Load())
}

func TestRunBuildsNeverOverlap(t *testing.T) {
	dir := t.TempDir()
	var builds atomic.Int32
	var active atomic.Int32
	var overlapped atomic.Bool
	w := New([]string{dir}, func(context.Context) error {
		if active.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(80 * time.Millisecond)
		active.Add(-1)
		builds.Add(1)
		return nil
	}, 10*time.Millisecond, 0, quietLogger())

	cancel, done := startWatcher(t, w)
	defer stopWatcher(t, cancel, done)

	for i := range 10 {
		name := filepath.Join(dir, "file"+string(rune('a'+i))+".md")
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o600))
		time.Sleep(30 * time.Millisecond)
	}
	waitForBuilds(t, &builds, 2, 5*time.Second)
	require.False(t, overlapped.Load())
}

func TestRunPeriodicRebuild(t *testing.T) {
	dir := t.TempDir()
	var builds atomic.Int32
	w := New([]string{dir}, func(context.Context) error {
		builds.Add(1)
		return nil
	}, 10*time.Millisecond, 80*time.Millisecond, quietLogger())

	cancel, done := startWatcher(t, w)
	defer stopWatcher(t, cancel, done)

	// No file events at all, the scheduler alone has to drive rebuilds.
	waitForBuilds(t, &builds, 3, 3*time.Second)
}

func TestRunWatchesCreatedSubdirectories(t *testing.T) {
	dir := t.TempDir()
	var builds atomic.Int32
	w := New([]string{dir}, func(context.Context) error {
		builds.Add(1)
		return nil
	}, 10*time.Millisecond, 0, quietLogger())

	cancel, done := startWatcher(t, w)
	defer stopWatcher(t, cancel, done)

	waitForBuilds(t, &builds, 1, 2*time.Second)
	sub := filepath.Join(dir, "science")
	require.NoError(t, os.MkdirAll(sub, 0o700))
	waitForBuilds(t, &builds, 2, 3*time.Second)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "article.html"), []byte("x"), 0o600))
	waitForBuilds(t, &builds, 3, 3*time.Second)
}

func TestRunToleratesMissingRoot(t *testing.T) {
	dir := t.TempDir()
	var builds atomic.Int32
	w := New([]string{filepath.Join(dir, "static")}, func(context.Context) error {
		builds.Add(1)
		return nil
	}, 10*time.Millisecond, 0, quietLogger())

	cancel, done := startWatcher(t, w)
	waitForBuilds(t, &builds, 1, 2*time.Second)
	stopWatcher(t, cancel, done)
}

func TestShouldIgnoreEvent(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"content/page.md", false},
		{"content/.page.md.swp", true},
		{"content/page.md~", true},
		{"content/#page.md#", true},
		{"content/.hidden/file", false},
		{"Thumbs.db", true},
		{"templates/base.html", false},
	}
	for _, tc := range cases {
		if got := shouldIgnoreEvent(tc.path); got != tc.want {
			t.Errorf("shouldIgnoreEvent(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

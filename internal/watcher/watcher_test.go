package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestWatcherReportsNewDocument(t *testing.T) {
	dir := t.TempDir()
	events := make(chan string, 16)
	w := New([]string{dir}, nil, func(p string) { events <- p }, nil, zap.NewNop())
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "bulletin.txt")
	if err := os.WriteFile(path, []byte("new guidance"), 0600); err != nil {
		t.Fatal(err)
	}
	waitFor(t, events, path)
}

func TestWatcherIgnoresUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	events := make(chan string, 16)
	w := New([]string{dir}, nil, func(p string) { events <- p }, nil, zap.NewNop())
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "photo.png"), []byte{1, 2, 3}, 0600); err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(dir, "guide.md")
	if err := os.WriteFile(good, []byte("guide"), 0600); err != nil {
		t.Fatal(err)
	}

	// Only the markdown file should come through.
	waitFor(t, events, good)
	select {
	case p := <-events:
		t.Errorf("unexpected event for %s", p)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	events := make(chan string, 16)
	w := New([]string{dir}, []string{"pdf"}, func(p string) { events <- p }, nil, zap.NewNop())
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("text"), 0600); err != nil {
		t.Fatal(err)
	}
	select {
	case p := <-events:
		t.Errorf("unexpected event for %s", p)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherReportsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.txt")
	if err := os.WriteFile(path, []byte("guide"), 0600); err != nil {
		t.Fatal(err)
	}

	removed := make(chan string, 16)
	w := New([]string{dir}, nil, nil, func(p string) { removed <- p }, zap.NewNop())
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, removed, path)
}

func TestSyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "existing.txt")
	if err := os.WriteFile(path, []byte("already here"), 0600); err != nil {
		t.Fatal(err)
	}

	events := make(chan string, 16)
	w := New([]string{dir}, nil, func(p string) { events <- p }, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SyncExistingFiles()
	waitFor(t, events, path)
}

func TestWatcherCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "library")
	w := New([]string{root}, nil, nil, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root not created: %v", err)
	}
}

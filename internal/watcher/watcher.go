// Package watcher observes reference material directories and reports file
// changes so new bulletins and guides get ingested without manual uploads.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/cropsage/cropsage/internal/extract"
)

// defaultDebounce absorbs the write bursts editors and sync clients produce
// for a single logical file change.
const defaultDebounce = 400 * time.Millisecond

// Watcher watches reference directories recursively and invokes callbacks
// for changed and removed documents. Only files with a supported extractor
// extension are reported.
type Watcher struct {
	roots       []string
	extensions  []string
	onDocument  func(path string)
	onRemove    func(path string)
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// New creates a watcher over the given roots. extensions narrows which files
// are reported; when empty, any extension the extractor supports is watched.
// onDocument fires for created and modified files, onRemove for deletions.
func New(roots, extensions []string, onDocument, onRemove func(path string), logger *zap.Logger) *Watcher {
	return &Watcher{
		roots:       roots,
		extensions:  extensions,
		onDocument:  onDocument,
		onRemove:    onRemove,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// Missing roots are created so a fresh deployment can point at an empty
// library directory.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.logger.Debug("watcher starting", zap.Strings("roots", w.roots))
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch ev.Op {
	case fsnotify.Create, fsnotify.Write:
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.watchNewDirectory(path)
			return
		}
		if w.watchable(path) {
			w.debounceDocument(path)
		}
	case fsnotify.Remove:
		w.cancelDebounce(path)
		if w.watchable(path) && w.onRemove != nil {
			w.onRemove(path)
		}
	}
}

// watchNewDirectory adds a created directory tree to the watch list and
// reports the files it already contains.
func (w *Watcher) watchNewDirectory(dirPath string) {
	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()
	if watcher == nil {
		return
	}
	filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if addErr := watcher.Add(path); addErr != nil {
				w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(addErr))
			}
		}
		return nil
	})
	w.syncDirectory(dirPath)
}

// watchable reports whether a file should be surfaced: it must carry a
// supported extractor extension and, if configured, one of the allowed
// extensions.
func (w *Watcher) watchable(path string) bool {
	ext := filepath.Ext(path)
	if !extract.Supported(ext) {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	for _, e := range w.extensions {
		if strings.EqualFold(strings.TrimPrefix(e, "."), strings.TrimPrefix(ext, ".")) {
			return true
		}
	}
	return false
}

func (w *Watcher) debounceDocument(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.logger.Debug("watcher reporting document", zap.String("path", path))
		if w.onDocument != nil {
			w.onDocument(path)
		}
	})
	w.debounceMap[path] = t
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(root, 0755); err != nil {
				return err
			}
		} else {
			return err
		}
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) syncDirectory(root string) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if w.watchable(path) {
			w.logger.Debug("watcher sync reporting document", zap.String("path", path))
			if w.onDocument != nil {
				w.onDocument(path)
			}
		}
		return nil
	})
}

// SyncExistingFiles reports every matching file already present under the
// watched roots. Call after Start to pick up documents that predate the
// watcher.
func (w *Watcher) SyncExistingFiles() {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	for _, root := range roots {
		w.syncDirectory(root)
	}
}

// Directories returns the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}

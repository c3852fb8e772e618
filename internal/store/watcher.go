package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// Watcher follows the cur/ and new/ directories of one folder at a time and
// invokes notify once changes settle. Watch problems degrade to no live
// updates; they never interrupt browsing.
type Watcher struct {
	ix     *Index
	fs     *fsnotify.Watcher
	logger *slog.Logger
	notify func(folder string)

	mu      sync.Mutex
	folder  string
	watched []string

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewWatcher starts a watcher that calls notify with the watched folder path
// after its contents change. notify runs on the watcher goroutine and must
// hand off to the owner's input loop rather than block.
func (ix *Index) NewWatcher(notify func(folder string)) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		ix:     ix,
		fs:     fs,
		logger: ix.logger.With("component", "watch"),
		notify: notify,
		stopCh: make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Watch re-points the watcher at folder. The previous folder's directories
// are dropped first. An empty folder path stops watching entirely.
func (w *Watcher) Watch(folder string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if folder == w.folder && len(w.watched) > 0 {
		return
	}
	for _, dir := range w.watched {
		_ = w.fs.Remove(dir)
	}
	w.watched = nil
	w.folder = folder
	if folder == "" {
		return
	}

	dir, err := w.ix.abs(folder)
	if err != nil {
		w.logger.Warn("watch folder", "folder", folder, "error", err)
		return
	}
	for _, sub := range []string{"cur", "new"} {
		p := filepath.Join(dir, sub)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := w.fs.Add(p); err != nil {
			w.logger.Warn("watch folder", "folder", folder, "dir", sub, "error", err)
			continue
		}
		w.watched = append(w.watched, p)
	}
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.fs.Close()
	})
}

func (w *Watcher) loop() {
	// Deliveries touch a folder several times in a burst; coalesce them.
	debounce := time.NewTimer(0)
	<-debounce.C
	pending := false

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(watchDebounce)
			pending = true

		case <-debounce.C:
			if !pending {
				continue
			}
			pending = false
			w.mu.Lock()
			folder := w.folder
			w.mu.Unlock()
			w.notify(folder)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watch error", "error", err)
		}
	}
}

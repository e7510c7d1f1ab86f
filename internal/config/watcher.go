package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"pkt.systems/pslog"
)

// debounceDelay coalesces the burst of events editors emit when saving.
const debounceDelay = 250 * time.Millisecond

// Watcher watches a config file and reloads it on change.
type Watcher struct {
	path   string
	onLoad func(Config)
	log    pslog.Logger

	fsw *fsnotify.Watcher

	mu     sync.Mutex
	timer  *time.Timer
	closed bool

	done chan struct{}
}

// Watch starts watching path and calls onLoad with the freshly loaded
// configuration after every settled change. The parent directory is
// watched rather than the file itself: most editors replace the file by
// rename, which drops a watch placed on the file.
func Watch(ctx context.Context, path string, onLoad func(Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:   path,
		onLoad: onLoad,
		log:    pslog.Ctx(ctx).With("config", path),
		fsw:    fsw,
		done:   make(chan struct{}),
	}
	go w.loop(ctx)
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watch error", "err", err)
		}
	}
}

// schedule arms the debounce timer, extending it if already pending.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		// Keep running with the previous configuration.
		w.log.Warn("config reload failed", "err", err)
		return
	}
	w.log.Info("config reloaded")
	w.onLoad(cfg)
}

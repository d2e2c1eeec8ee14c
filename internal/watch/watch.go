package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeCallback is called with the spec file path after changes settle.
type ChangeCallback func(specPath string)

// SpecWatcher triggers a run whenever the watched specification file is
// rewritten. Rapid successive writes (editors often write several times) are
// debounced into one callback.
type SpecWatcher struct {
	watcher  *fsnotify.Watcher
	specPath string
	callback ChangeCallback
	debounce time.Duration
	log      *zap.Logger

	timer  *time.Timer
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSpecWatcher creates a watcher for specPath. The containing directory is
// watched rather than the file itself so atomic-rename saves are caught.
func NewSpecWatcher(specPath string, callback ChangeCallback, log *zap.Logger) (*SpecWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(specPath)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	return &SpecWatcher{
		watcher:  watcher,
		specPath: abs,
		callback: callback,
		debounce: 500 * time.Millisecond,
		log:      log,
	}, nil
}

// Start begins watching until ctx is done or Stop is called.
func (w *SpecWatcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Warn("watch error", zap.Error(err))
			}
		}
	}()
}

// Stop stops watching.
func (w *SpecWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.watcher.Close()
}

// SetDebounce sets the settle window for batching file changes.
func (w *SpecWatcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

func (w *SpecWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.specPath {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *SpecWatcher) fire() {
	w.log.Info("specification changed", zap.String("path", w.specPath))
	if w.callback != nil {
		w.callback(w.specPath)
	}
}

package assets

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports writes to a set of local files. Directories are watched
// rather than files so that editors which replace files on save still
// trigger a change.
type Watcher struct {
	fs      *fsnotify.Watcher
	log     *zap.Logger
	changes chan string
	settle  time.Duration

	mu    sync.Mutex
	files map[string]string // cleaned absolute path -> source as added
	dirs  map[string]bool
}

// NewWatcher creates a watcher. Bursts of events for one file within settle
// are reported once.
func NewWatcher(settle time.Duration, log *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		fs:      fw,
		log:     log,
		changes: make(chan string, 16),
		settle:  settle,
		files:   make(map[string]string),
		dirs:    make(map[string]bool),
	}, nil
}

// Add starts watching a local file. The source string is what Changes reports.
func (w *Watcher) Add(source string) error {
	abs, err := filepath.Abs(source)
	if err != nil {
		return fmt.Errorf("watching %s: %w", source, err)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.files[abs] = source
	return nil
}

// Changes delivers the source of each changed file.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Run processes file system events until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if source, ok := w.lookup(ev.Name); ok {
				pending[source] = time.Now()
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("file watcher error", zap.Error(err))

		case now := <-ticker.C:
			for source, at := range pending {
				if now.Sub(at) < w.settle {
					continue
				}
				delete(pending, source)
				select {
				case w.changes <- source:
				default:
					w.log.Debug("dropping change notification", zap.String("source", source))
				}
			}
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) lookup(name string) (string, bool) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	source, ok := w.files[abs]
	return source, ok
}

func (w *Watcher) tick() time.Duration {
	if w.settle <= 0 {
		return 10 * time.Millisecond
	}
	return max(w.settle/4, time.Millisecond)
}

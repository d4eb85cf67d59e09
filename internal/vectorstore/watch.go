package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize index watcher")

const defaultDebounce = 200 * time.Millisecond

// Watcher calls OnChange after a build replaces CURRENT under an index
// root. Bursts of events are coalesced into one call.
type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	onChange func()
	debounce time.Duration
	logger   *zap.Logger
}

// NewWatcher watches root, creating it if needed so a daemon can start
// before the first build. The directory is watched rather than CURRENT
// itself because CURRENT is replaced by rename.
func NewWatcher(root string, onChange func(), logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root, err := expandPath(root)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating index root: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := fw.Add(root); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("%w: watching %s: %v", ErrWatcherFailed, root, err)
	}

	return &Watcher{
		root:     root,
		watcher:  fw,
		onChange: onChange,
		debounce: defaultDebounce,
		logger:   logger,
	}, nil
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != CurrentFile {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("index pointer changed", zap.String("event", event.Op.String()))
			timer.Reset(w.debounce)

		case <-timer.C:
			w.onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("index watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

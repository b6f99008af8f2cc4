package arena

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 100 * time.Millisecond

// LayoutWatcher reloads a layouts directory whenever one of its YAML files
// changes and hands the new set to a callback.
type LayoutWatcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	onReload func(map[string]*Layout)
	logger   *zap.Logger
	closeCh  chan struct{}
	done     chan struct{}
	once     sync.Once
}

func WatchLayouts(dir string, onReload func(map[string]*Layout), logger *zap.Logger) (*LayoutWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	lw := &LayoutWatcher{
		dir:      dir,
		watcher:  w,
		onReload: onReload,
		logger:   logger,
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go lw.run()
	return lw, nil
}

// Close stops watching. It is safe to call more than once.
func (lw *LayoutWatcher) Close() error {
	var err error
	lw.once.Do(func() {
		close(lw.closeCh)
		err = lw.watcher.Close()
		<-lw.done
	})
	return err
}

func (lw *LayoutWatcher) run() {
	defer close(lw.done)
	last := make(map[string]time.Time)
	for {
		select {
		case event, ok := <-lw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isLayoutFile(event.Name) {
				continue
			}
			now := time.Now()
			if t, ok := last[event.Name]; ok && now.Sub(t) < reloadDebounce {
				continue
			}
			last[event.Name] = now
			lw.reload(event.Name)
		case err, ok := <-lw.watcher.Errors:
			if !ok {
				return
			}
			lw.logger.Warn("layout watcher error", zap.Error(err))
		case <-lw.closeCh:
			return
		}
	}
}

func (lw *LayoutWatcher) reload(changed string) {
	layouts, err := LoadLayouts(lw.dir)
	if err != nil {
		lw.logger.Warn("layout reload failed, keeping previous set",
			zap.String("file", changed), zap.Error(err))
		return
	}
	lw.logger.Info("layouts reloaded", zap.String("file", changed), zap.Int("count", len(layouts)))
	if lw.onReload != nil {
		lw.onReload(layouts)
	}
}

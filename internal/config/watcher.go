package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/laceai/lace-core/internal/logging"
	"github.com/laceai/lace-core/pkg/types"
)

// Watcher watches a project's config files and reloads Load's merged
// result whenever one of them changes on disk.
type Watcher struct {
	watcher   *fsnotify.Watcher
	directory string
	onReload  func(*types.Config)
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   bool
	mu        sync.Mutex
}

// NewWatcher creates a config Watcher for directory's project config
// and the global config directory. onReload is called with the freshly
// merged config each time a watched file changes; it may be called
// concurrently with Load running elsewhere, since both just read files.
func NewWatcher(directory string, onReload func(*types.Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range watchDirs(directory) {
		// Watch the directory rather than the file: the file may not
		// exist yet, and editors often replace-by-rename rather than
		// write-in-place, which only a directory watch reliably sees.
		if err := w.Add(dir); err != nil {
			logging.Debug().Str("dir", dir).Err(err).Msg("config watch directory unavailable")
		}
	}

	return &Watcher{
		watcher:   w,
		directory: directory,
		onReload:  onReload,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// watchDirs returns the directories holding the config files Load reads,
// creating them if necessary so fsnotify has something to watch.
func watchDirs(directory string) []string {
	dirs := []string{GetPaths().Config}
	if directory != "" {
		dirs = append(dirs, filepath.Join(directory, ".lace"))
	}
	for _, d := range dirs {
		_ = os.MkdirAll(d, 0755)
	}
	return dirs
}

// Start begins watching in the background.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isConfigFile(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cfg, err := Load(w.directory)
			if err != nil {
				logging.Error().Err(err).Msg("reloading config after change")
				continue
			}
			if w.onReload != nil {
				w.onReload(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error().Err(err).Msg("config watcher error")
		}
	}
}

func isConfigFile(name string) bool {
	base := filepath.Base(name)
	return base == "lace.json" || base == "lace.jsonc"
}

// Stop stops the watcher and releases its underlying fsnotify handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()

	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}

	if started {
		<-w.doneCh
	}

	return w.watcher.Close()
}

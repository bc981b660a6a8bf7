package app

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileWatcher polls a file's modification time and invokes a callback each
// time it moves forward.
type FileWatcher struct {
	path          string
	modTime       time.Time
	checkInterval time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	onChange      func()
}

// NewFileWatcher creates a watcher for path.
// Returns nil if the file cannot be stat'ed.
func NewFileWatcher(path string, checkInterval time.Duration) *FileWatcher {
	// Resolve symlinks so replacing the target is noticed
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil
	}

	return &FileWatcher{
		path:          path,
		modTime:       info.ModTime(),
		checkInterval: checkInterval,
		stopCh:        make(chan struct{}),
	}
}

// OnChange sets the callback. It runs on the watcher goroutine.
func (w *FileWatcher) OnChange(callback func()) {
	w.onChange = callback
}

// Start begins polling in a background goroutine.
func (w *FileWatcher) Start() {
	go w.watchLoop()
}

// Stop stops the watcher goroutine. Safe to call more than once.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// Path returns the watched file.
func (w *FileWatcher) Path() string {
	return w.path
}

func (w *FileWatcher) watchLoop() {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.checkForUpdate() && w.onChange != nil {
				w.onChange()
			}
		}
	}
}

// checkForUpdate reports whether the file changed since the last check and
// moves the baseline forward.
func (w *FileWatcher) checkForUpdate() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false
	}
	if !info.ModTime().After(w.modTime) {
		return false
	}
	w.modTime = info.ModTime()
	return true
}

// Package signalfile observes out-of-band cancellation signals via the
// .relay/signals directory. Dropping a "stop" file there aborts the
// running workflow: the watcher cancels the context the engine runs under,
// and the engine's abort handling does the rest.
package signalfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StopFile is the signal file name that aborts a running workflow.
const StopFile = "stop"

// Watcher monitors the project's signal directory for a stop file.
type Watcher struct {
	signalsDir string

	mu          sync.RWMutex
	stopSignal  bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New creates a watcher over projectRoot/.relay/signals, creating the
// directory if needed. A failure to set up the fsnotify watcher is not
// fatal: ShouldStop falls back to polling the file directly.
func New(projectRoot string) (*Watcher, error) {
	signalsDir := filepath.Join(projectRoot, ".relay", "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		signalsDir: signalsDir,
		done:       make(chan struct{}),
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		// Continue without watcher - will use polling fallback
		return w, nil
	}
	if err := fw.Add(signalsDir); err != nil {
		fw.Close()
		return w, nil
	}
	w.watcher = fw

	go w.watchSignals()

	return w, nil
}

// watchSignals monitors the signals directory for the stop file.
func (w *Watcher) watchSignals() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != StopFile {
				continue
			}
			if event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0 {
				w.mu.Lock()
				w.stopSignal = true
				w.mu.Unlock()
			}
		case <-w.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

// ShouldStop returns true if a stop signal has been received.
func (w *Watcher) ShouldStop() bool {
	// Also check file directly in case the watcher missed it
	stopPath := filepath.Join(w.signalsDir, StopFile)
	if _, err := os.Stat(stopPath); err == nil {
		w.mu.Lock()
		w.stopSignal = true
		w.mu.Unlock()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopSignal
}

// SendStop creates the stop signal file.
func (w *Watcher) SendStop() error {
	path := filepath.Join(w.signalsDir, StopFile)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// Clear removes the stop file and resets the signal state.
func (w *Watcher) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopSignal = false
	os.Remove(filepath.Join(w.signalsDir, StopFile))
}

// Bind cancels the returned context when a stop signal is observed. The
// poll interval covers the no-fsnotify fallback; the watcher usually sees
// the file sooner.
func (w *Watcher) Bind(parent context.Context, pollInterval time.Duration) (context.Context, context.CancelFunc) {
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case <-ticker.C:
				if w.ShouldStop() {
					cancel()
					return
				}
			}
		}
	}()

	return ctx, cancel
}

// SignalsDir returns the path to the watched signals directory.
func (w *Watcher) SignalsDir() string {
	return w.signalsDir
}

// Close shuts down the watcher.
func (w *Watcher) Close() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogger appends timestamped engine internals to a log file. The
// zero value is a no-op logger, so call sites never check before
// logging.
type DebugLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewDebugLogger opens the log file at path for appending, creating
// parent directories as needed. An empty path yields a no-op logger.
func NewDebugLogger(path string) (*DebugLogger, error) {
	if path == "" {
		return &DebugLogger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &DebugLogger{file: f}
	l.Log("engine debug log opened %s", time.Now().Format(time.RFC3339))
	return l, nil
}

// NewDebugLoggerForProject places the log under the project's
// .relay/logs directory. Falls back to a no-op logger when the file
// cannot be opened; debug logging is never worth failing a workflow.
func NewDebugLoggerForProject(projectRoot string) *DebugLogger {
	l, err := NewDebugLogger(filepath.Join(projectRoot, ".relay", "logs", "engine-debug.log"))
	if err != nil {
		return &DebugLogger{}
	}
	return l
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Log writes one formatted, timestamped line and syncs it, so a crash
// mid-workflow leaves the trail intact. Nil-safe.
func (l *DebugLogger) Log(format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.file, "[%s] %s\n", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
	l.file.Sync()
}

// Close releases the log file. Nil-safe.
func (l *DebugLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

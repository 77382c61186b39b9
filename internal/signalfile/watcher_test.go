package signalfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew_CreatesSignalsDir(t *testing.T) {
	root := t.TempDir()

	w, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	if _, err := os.Stat(filepath.Join(root, ".relay", "signals")); err != nil {
		t.Errorf("signals directory not created: %v", err)
	}
	if w.ShouldStop() {
		t.Error("fresh watcher reports stop")
	}
}

func TestShouldStop_PollingFallback(t *testing.T) {
	root := t.TempDir()

	w, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	if err := w.SendStop(); err != nil {
		t.Fatalf("SendStop failed: %v", err)
	}
	// ShouldStop stats the file itself, so it works even if the fsnotify
	// event has not arrived yet.
	if !w.ShouldStop() {
		t.Error("expected stop signal after SendStop")
	}

	w.Clear()
	if w.ShouldStop() {
		t.Error("expected no stop signal after Clear")
	}
}

func TestBind_CancelsOnStop(t *testing.T) {
	root := t.TempDir()

	w, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	ctx, cancel := w.Bind(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := w.SendStop(); err != nil {
		t.Fatalf("SendStop failed: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled after stop signal")
	}
}

func TestBind_ParentCancellationPropagates(t *testing.T) {
	root := t.TempDir()

	w, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	parent, parentCancel := context.WithCancel(context.Background())
	ctx, cancel := w.Bind(parent, 10*time.Millisecond)
	defer cancel()

	parentCancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled with parent")
	}
}

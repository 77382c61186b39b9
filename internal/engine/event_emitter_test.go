package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEventEmitterDeliversInOrder(t *testing.T) {
	em := NewEventEmitter(4)

	em.Emit(EngineEvent{Type: EventWorkflowStarted, WorkflowID: "wf-1"})
	em.Emit(EngineEvent{Type: EventStepDispatched, WorkflowID: "wf-1", StepID: "step-1"})
	em.Close()

	var got []EventType
	for ev := range em.Events() {
		got = append(got, ev.Type)
	}
	want := []EventType{EventWorkflowStarted, EventStepDispatched}
	if len(got) != len(want) {
		t.Fatalf("received %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestEventEmitterDropsWhenConsumerStalls(t *testing.T) {
	em := NewEventEmitter(1)

	em.Emit(EngineEvent{Type: EventWorkflowStarted})

	// No consumer drains the buffer, so this emit must give up after the
	// grace window instead of blocking the stage loop.
	start := time.Now()
	em.Emit(EngineEvent{Type: EventStepDispatched})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Emit blocked for %s with a full buffer", elapsed)
	}
	if got := em.DroppedCount(); got != 1 {
		t.Errorf("DroppedCount() = %d, want 1", got)
	}
}

func TestEventEmitterNilSafe(t *testing.T) {
	var em *EventEmitter
	em.Emit(EngineEvent{Type: EventWorkflowStarted})
	if got := em.DroppedCount(); got != 0 {
		t.Errorf("DroppedCount() on nil emitter = %d, want 0", got)
	}
}

func TestDebugLoggerWritesTimestampedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "engine-debug.log")

	l, err := NewDebugLogger(path)
	if err != nil {
		t.Fatalf("NewDebugLogger failed: %v", err)
	}
	l.Log("step %s: dispatched", "step-1")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "step step-1: dispatched") {
		t.Errorf("log file missing entry, got %q", string(data))
	}
}

func TestDebugLoggerNopVariants(t *testing.T) {
	// The zero value, an empty path, and nil are all silent no-ops.
	for _, l := range []*DebugLogger{NopLogger(), nil} {
		l.Log("never written")
		if err := l.Close(); err != nil {
			t.Errorf("Close on no-op logger returned %v", err)
		}
	}

	l, err := NewDebugLogger("")
	if err != nil {
		t.Fatalf("NewDebugLogger(\"\") failed: %v", err)
	}
	l.Log("never written")
	if err := l.Close(); err != nil {
		t.Errorf("Close returned %v", err)
	}
}

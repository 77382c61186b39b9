package policy

import "testing"

func TestResolveCancellationAborts(t *testing.T) {
	h := New()
	for attempt := 1; attempt <= 5; attempt++ {
		if got := h.Resolve(FailureCanceled, attempt, Options{Autonomy: "high"}); got != Abort {
			t.Errorf("attempt %d: expected abort on cancellation, got %s", attempt, got)
		}
	}
}

func TestResolveEscalatingClasses(t *testing.T) {
	h := New()
	for _, class := range []FailureClass{FailureAmbiguous, FailureMissingInput} {
		got := h.Resolve(class, 1, Options{Autonomy: "high", HasAlternate: true})
		if got != Escalate {
			t.Errorf("%s: expected escalate, got %s", class, got)
		}
	}
}

func TestResolveAutonomyNoneEscalates(t *testing.T) {
	h := New()
	got := h.Resolve(FailureTimeout, 1, Options{Autonomy: "none"})
	if got != Escalate {
		t.Errorf("expected escalate for autonomy none, got %s", got)
	}
}

func TestResolveTransientRetriesWithinBudget(t *testing.T) {
	h := New()
	opts := Options{Budget: 2, Autonomy: "guided"}

	if got := h.Resolve(FailureTimeout, 1, opts); got != RetrySameAgent {
		t.Errorf("attempt 1: expected retry_same_agent, got %s", got)
	}
	if got := h.Resolve(FailureGateViolation, 2, opts); got != RetrySameAgent {
		t.Errorf("attempt 2: expected retry_same_agent, got %s", got)
	}
	if got := h.Resolve(FailureMalformedOutput, 3, opts); got != Escalate {
		t.Errorf("attempt 3: expected escalate after budget, got %s", got)
	}
}

func TestResolveAlternateConsumesFinalRetry(t *testing.T) {
	h := New()
	opts := Options{Budget: 2, Autonomy: "high", HasAlternate: true}

	if got := h.Resolve(FailureGateViolation, 1, opts); got != RetrySameAgent {
		t.Errorf("attempt 1: expected retry_same_agent, got %s", got)
	}
	if got := h.Resolve(FailureGateViolation, 2, opts); got != RetryAlternateAgent {
		t.Errorf("attempt 2: expected retry_alternate_agent, got %s", got)
	}
	if got := h.Resolve(FailureGateViolation, 3, opts); got != Escalate {
		t.Errorf("attempt 3: expected escalate, got %s", got)
	}
}

func TestResolveAlternateRequiresHighAutonomy(t *testing.T) {
	h := New()
	opts := Options{Budget: 2, Autonomy: "guided", HasAlternate: true}

	if got := h.Resolve(FailureTimeout, 2, opts); got != RetrySameAgent {
		t.Errorf("expected guided autonomy to keep the same agent, got %s", got)
	}
}

func TestResolveDefaultBudget(t *testing.T) {
	h := New()
	opts := Options{Autonomy: "guided"}

	if got := h.Resolve(FailureTimeout, DefaultRetryBudget, opts); got != RetrySameAgent {
		t.Errorf("expected retry at attempt %d, got %s", DefaultRetryBudget, got)
	}
	if got := h.Resolve(FailureTimeout, DefaultRetryBudget+1, opts); got != Escalate {
		t.Errorf("expected escalate at attempt %d, got %s", DefaultRetryBudget+1, got)
	}
}

func TestFailureClassString(t *testing.T) {
	tests := []struct {
		class FailureClass
		want  string
	}{
		{FailureTimeout, "timeout"},
		{FailureInvocation, "invocation_failed"},
		{FailureMalformedOutput, "malformed_output"},
		{FailureGateViolation, "gate_violation"},
		{FailureMissingInput, "missing_input"},
		{FailureAmbiguous, "ambiguous_classification"},
		{FailureCanceled, "canceled"},
		{FailureClass(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.class.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestResolutionString(t *testing.T) {
	tests := []struct {
		r    Resolution
		want string
	}{
		{RetrySameAgent, "retry_same_agent"},
		{RetryAlternateAgent, "retry_alternate_agent"},
		{Escalate, "escalate"},
		{Abort, "abort"},
		{Resolution(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.r.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

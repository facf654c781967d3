package bootstrap

import "testing"

func TestDefaultComponents(t *testing.T) {
	components := DefaultComponents()
	if len(components) != 3 {
		t.Fatalf("len(DefaultComponents()) = %d, want 3", len(components))
	}
	want := map[string]string{
		"victoriametrics": "VictoriaMetrics",
		"victorialogs":    "VictoriaLogs",
		"fluent-bit":      "Fluent Bit",
	}
	for _, c := range components {
		if want[c.Name] != c.DisplayName {
			t.Errorf("component %q display name = %q, want %q", c.Name, c.DisplayName, want[c.Name])
		}
	}
}

func TestProgressForAttemptMonotonicAndCapped(t *testing.T) {
	prev := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		got := progressForAttempt(attempt)
		if got < prev {
			t.Fatalf("progressForAttempt(%d) = %d, not monotonically increasing from %d", attempt, got, prev)
		}
		if got > 99 {
			t.Fatalf("progressForAttempt(%d) = %d, want <= 99", attempt, got)
		}
		prev = got
	}
	if got := progressForAttempt(maxAttempts); got != 99 {
		t.Errorf("progressForAttempt(maxAttempts) = %d, want 99", got)
	}
	if got := progressForAttempt(1); got <= 50 {
		t.Errorf("progressForAttempt(1) = %d, want > 50", got)
	}
}

func TestOrchestratorHasComponent(t *testing.T) {
	o := &Orchestrator{components: DefaultComponents()}

	if !o.HasComponent("victoriametrics") {
		t.Error("HasComponent(\"victoriametrics\") = false, want true")
	}
	if o.HasComponent("nonexistent") {
		t.Error("HasComponent(\"nonexistent\") = true, want false")
	}
}

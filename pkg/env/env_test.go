package env

import "testing"

func TestGetFallback(t *testing.T) {
	t.Setenv("FINANCE_ENV_TEST", "")
	if got := Get("FINANCE_ENV_TEST", "json"); got != "json" {
		t.Fatalf("expected fallback got %q", got)
	}
	t.Setenv("FINANCE_ENV_TEST", "console")
	if got := Get("FINANCE_ENV_TEST", "json"); got != "console" {
		t.Fatalf("expected console got %q", got)
	}
}

func TestFirstSkipsEmpty(t *testing.T) {
	t.Setenv("FINANCE_ENV_A", "")
	t.Setenv("FINANCE_ENV_B", "b")
	got, ok := First("FINANCE_ENV_A", "FINANCE_ENV_B")
	if !ok || got != "b" {
		t.Fatalf("expected b got %q (%v)", got, ok)
	}

	t.Setenv("FINANCE_ENV_B", "")
	if _, ok := First("FINANCE_ENV_A", "FINANCE_ENV_B"); ok {
		t.Fatalf("expected no value")
	}
}

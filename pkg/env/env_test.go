package env

import "testing"

func TestFirstReturnsEarliestNonBlank(t *testing.T) {
	t.Setenv("PF_TEST_A", "  ")
	t.Setenv("PF_TEST_B", "b")
	t.Setenv("PF_TEST_C", "c")

	if got := First("x", "PF_TEST_A", "PF_TEST_B", "PF_TEST_C"); got != "b" {
		t.Fatalf("expected b, got %q", got)
	}
}

func TestFirstFallback(t *testing.T) {
	t.Setenv("PF_TEST_A", "")
	if got := First("fallback", "PF_TEST_A", "PF_TEST_MISSING"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

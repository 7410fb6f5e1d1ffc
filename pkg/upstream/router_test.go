package upstream

import "testing"

func TestProjectRouter_RoundRobinsInOrder(t *testing.T) {
	r := NewProjectRouter([]string{"A", "B", "C"})

	want := []string{"A", "B", "C", "A", "B"}
	for i, w := range want {
		got, ok := r.Next()
		if !ok {
			t.Fatalf("Next() #%d: ok = false", i)
		}
		if got != w {
			t.Errorf("Next() #%d = %q, want %q", i, got, w)
		}
	}
}

func TestProjectRouter_EmptyReturnsFalse(t *testing.T) {
	r := NewProjectRouter(nil)
	if _, ok := r.Next(); ok {
		t.Error("Next() on empty router = ok true, want false")
	}
}

func TestProjectRouter_AdvancesRegardlessOfCaller(t *testing.T) {
	r := NewProjectRouter([]string{"A", "B"})
	r.Next()
	r.Next()
	got, _ := r.Next()
	if got != "A" {
		t.Errorf("Next() after two calls = %q, want A (wrapped around)", got)
	}
}

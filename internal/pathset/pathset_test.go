package pathset

import "testing"

func TestAddReportsNewMembership(t *testing.T) {
	set := New()

	if !set.Add("/hub/a.pdf") {
		t.Fatal("first Add should report a new member")
	}
	if set.Add("/hub/a.pdf") {
		t.Fatal("second Add of the same path should report false")
	}
	if !set.Contains("/hub/a.pdf") {
		t.Fatal("expected membership after Add")
	}
	if set.Contains("/hub/b.pdf") {
		t.Fatal("unexpected membership for unknown path")
	}
	if got := set.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}
}

func TestMembershipIsMonotonic(t *testing.T) {
	set := New()
	paths := []string{"/hub/a", "/hub/b", "/hub/c"}
	for _, p := range paths {
		set.Add(p)
	}
	for _, p := range paths {
		if !set.Contains(p) {
			t.Fatalf("lost membership for %s", p)
		}
	}
	if got := set.Len(); got != len(paths) {
		t.Fatalf("Len = %d, want %d", got, len(paths))
	}
}

package portcell

import "testing"

func TestMonotonicity(t *testing.T) {
	const start, end = 9010, 9019
	c := New(start, end)
	if got := c.Load(); got != start {
		t.Fatalf("initial load = %d, want %d", got, start)
	}
	span := end - start + 1
	for n := 1; n <= span*3; n++ {
		got := c.Advance()
		want := start + (n % span)
		if int(got) != want {
			t.Fatalf("after %d advances: got %d, want %d", n, got, want)
		}
	}
}

func TestSinglePortRange(t *testing.T) {
	c := New(5000, 5000)
	for i := 0; i < 5; i++ {
		if got := c.Advance(); got != 5000 {
			t.Fatalf("Advance() = %d, want 5000", got)
		}
	}
}

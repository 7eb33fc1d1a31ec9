package dedup

import "testing"

func TestInsertAndContains(t *testing.T) {
	c := New(4)
	if c.Contains("a") {
		t.Fatalf("empty cache should not contain a")
	}
	if !c.Insert("a") {
		t.Fatalf("first insert should report new")
	}
	if !c.Contains("a") {
		t.Fatalf("cache should contain a after insert")
	}
	if c.Insert("a") {
		t.Fatalf("second insert of a should be a no-op")
	}
	if c.Len() != 1 {
		t.Fatalf("expected len 1, got %d", c.Len())
	}
}

func TestFIFOEviction(t *testing.T) {
	c := New(3)
	for _, id := range []string{"a", "b", "c"} {
		c.Insert(id)
	}
	c.Insert("d")

	if c.Contains("a") {
		t.Fatalf("a should have been evicted")
	}
	for _, id := range []string{"b", "c", "d"} {
		if !c.Contains(id) {
			t.Fatalf("%s should remain", id)
		}
	}
	if c.Len() != 3 {
		t.Fatalf("expected len 3, got %d", c.Len())
	}
}

func TestReInsertDoesNotRefreshPosition(t *testing.T) {
	// Pure FIFO: re-seeing a does not move it to the back, so it is
	// still the first to go.
	c := New(3)
	for _, id := range []string{"a", "b", "c"} {
		c.Insert(id)
	}
	c.Insert("a")
	c.Insert("d")

	if c.Contains("a") {
		t.Fatalf("a should have been evicted despite re-insert")
	}
	if !c.Contains("b") || !c.Contains("c") || !c.Contains("d") {
		t.Fatalf("b, c, d should remain")
	}
}

func TestZeroCapacityFallsBackToDefault(t *testing.T) {
	c := New(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		c.Insert(string(rune('a' + i%26)))
	}
	if c.Len() > DefaultCapacity {
		t.Fatalf("cache exceeded default capacity: %d", c.Len())
	}
}

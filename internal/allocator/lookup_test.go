package allocator

import "testing"

func TestPointerLookupInsertRemove(t *testing.T) {
	raw := newRawProvider()

	a1, err := newArena(1, nil, 64, 16, SchemeIndexStack, raw)
	if err != nil {
		t.Fatalf("newArena a1: %v", err)
	}

	a2, err := newArena(2, nil, 64, 16, SchemeIndexStack, raw)
	if err != nil {
		t.Fatalf("newArena a2: %v", err)
	}

	l := newPointerLookup()
	l.insert(a1)
	l.insert(a2)

	c1, c2 := l.candidates(a1.begin)
	if c1 != a1.id && c2 != a1.id {
		t.Fatalf("candidates(a1.begin) = (%d, %d), want one of them to be %d", c1, c2, a1.id)
	}

	l.remove(a1)

	c1, c2 = l.candidates(a1.begin)
	if c1 == a1.id || c2 == a1.id {
		t.Fatalf("candidates still report removed arena %d: (%d, %d)", a1.id, c1, c2)
	}

	a1.destroy(raw)
	a2.destroy(raw)
}

func TestPointerLookupGrowsWindow(t *testing.T) {
	raw := newRawProvider()

	// An arena far from address 0 makes ensureRange size and place the
	// (initially empty) window around the arena's own pages, leaving
	// address 0 outside it.
	farID := arenaID(99)
	a, err := newArena(farID, nil, 4096, 4, SchemeIndexStack, raw)
	if err != nil {
		t.Fatalf("newArena: %v", err)
	}
	defer a.destroy(raw)

	l := newPointerLookup()
	l.insert(a)

	c1, c2 := l.candidates(a.begin)
	if c1 != farID && c2 != farID {
		t.Fatalf("candidates(a.begin) = (%d, %d), want %d among them", c1, c2, farID)
	}

	if c1, c2 := l.candidates(0); c1 != 0 || c2 != 0 {
		t.Fatalf("candidates(0) = (%d, %d), want (0, 0) for an address outside any arena", c1, c2)
	}
}

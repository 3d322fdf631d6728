package allocator

import "testing"

func TestAlignUp(t *testing.T) {
	cases := []struct {
		size, alignment, want uintptr
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{17, 16, 32},
		{5, 0, 5},
	}

	for _, c := range cases {
		if got := alignUp(c.size, c.alignment); got != c.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", c.size, c.alignment, got, c.want)
		}
	}
}

func TestIsPow2(t *testing.T) {
	for _, v := range []uintptr{1, 2, 4, 8, 1024} {
		if !isPow2(v) {
			t.Errorf("isPow2(%d) = false, want true", v)
		}
	}

	for _, v := range []uintptr{0, 3, 5, 100} {
		if isPow2(v) {
			t.Errorf("isPow2(%d) = true, want false", v)
		}
	}
}

func TestNextPow2(t *testing.T) {
	cases := map[uintptr]uintptr{
		0:  1,
		1:  1,
		2:  2,
		3:  4,
		5:  8,
		16: 16,
		17: 32,
	}

	for in, want := range cases {
		if got := nextPow2(in); got != want {
			t.Errorf("nextPow2(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestClassify(t *testing.T) {
	// The returned slot size always covers headerSize on top of the
	// payload, plus one alignment's worth of slack whenever alignment > 0
	// (the slot must have room for the header wherever alignUp lands the
	// user pointer inside it).
	shift, rounded := classify(10, 0, 16)
	if want := nextPow2(headerSize + 10); rounded != want {
		t.Errorf("classify(10, 0, 16) rounded = %d, want %d", rounded, want)
	}

	if shift != classShift(rounded) {
		t.Errorf("classify shift %d does not match classShift(%d) = %d", shift, rounded, classShift(rounded))
	}

	_, rounded = classify(100, 32, 16)
	if want := nextPow2(headerSize + 128 + 32); rounded != want {
		t.Errorf("classify(100, 32, 16) rounded = %d, want %d", rounded, want)
	}
}

func TestSizeClassesLazyCreation(t *testing.T) {
	var sc sizeClasses

	if sc.at(3) != nil {
		t.Fatal("expected nil pool before ensure")
	}

	created := false
	p := sc.ensure(3, func() *pool {
		created = true
		return &pool{classShift: 3}
	})

	if !created {
		t.Fatal("ensure did not create a new pool")
	}

	if sc.at(3) != p {
		t.Fatal("at(3) did not return the pool created by ensure")
	}

	same := sc.ensure(3, func() *pool {
		t.Fatal("ensure called create twice for the same shift")
		return nil
	})

	if same != p {
		t.Fatal("ensure returned a different pool on second call")
	}

	if len(sc.all()) != 1 {
		t.Fatalf("all() = %d pools, want 1", len(sc.all()))
	}
}

package kvcache

import "testing"

func TestCausalAddTracksLength(t *testing.T) {
	c := NewCausal(nil)
	c.Add(5)
	if got := c.Len(); got != 5 {
		t.Errorf("Len() = %d, want 5", got)
	}
	c.Add(3)
	if got := c.Len(); got != 8 {
		t.Errorf("Len() = %d, want 8", got)
	}
}

func TestCausalShiftNoOpWhenShiftZero(t *testing.T) {
	c := NewCausal(nil)
	c.Add(4)
	if err := c.Shift(0, 4); err != nil {
		t.Fatalf("Shift(0, 4) error = %v", err)
	}
	if got := c.Len(); got != 4 {
		t.Errorf("Len() after no-op shift = %d, want 4", got)
	}
}

func TestCausalShiftWithoutShiftFnErrors(t *testing.T) {
	c := NewCausal(nil)
	c.Add(4)
	if err := c.Shift(2, 4); err != ErrNotSupported {
		t.Errorf("Shift(2, 4) error = %v, want ErrNotSupported", err)
	}
}

func TestCausalShiftCompacts(t *testing.T) {
	var shiftedLayers []int
	c := NewCausal(func(layer int, beginIndex, offset int32) error {
		shiftedLayers = append(shiftedLayers, layer)
		if beginIndex != 2 || offset != -2 {
			t.Errorf("shiftFn called with (%d, %d), want (2, -2)", beginIndex, offset)
		}
		return nil
	})
	c.Add(6)
	if err := c.Shift(2, 6); err != nil {
		t.Fatalf("Shift(2, 6) error = %v", err)
	}
	if got := c.Len(); got != 4 {
		t.Errorf("Len() after shift = %d, want 4", got)
	}
	if len(shiftedLayers) != 1 {
		t.Errorf("shiftFn called %d times, want 1", len(shiftedLayers))
	}
	if c.cells[0].pos != 0 {
		t.Errorf("cells[0].pos = %d, want 0", c.cells[0].pos)
	}
}

func TestCausalShiftAllDiscardsEverything(t *testing.T) {
	c := NewCausal(func(int, int32, int32) error { return nil })
	c.Add(3)
	if err := c.Shift(3, 3); err != nil {
		t.Fatalf("Shift(3, 3) error = %v", err)
	}
	if got := c.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}

func TestCausalShiftRejectsMismatchedTotal(t *testing.T) {
	c := NewCausal(nil)
	c.Add(4)
	if err := c.Shift(1, 10); err == nil {
		t.Error("Shift with mismatched total should error")
	}
}

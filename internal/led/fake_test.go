package led

import (
	"errors"
	"testing"
)

func TestFakeLEDSet(t *testing.T) {
	f := NewFakeLED()

	if f.On() {
		t.Error("should be off initially")
	}

	if err := f.Set(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.On() {
		t.Error("expected on after Set(true)")
	}

	if err := f.Set(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.On() {
		t.Error("expected off after Set(false)")
	}

	if f.Writes() != 2 {
		t.Errorf("expected 2 writes, got %d", f.Writes())
	}
}

func TestFakeLEDError(t *testing.T) {
	f := NewFakeLED()
	f.SetError = errors.New("simulated error")

	err := f.Set(true)
	if err == nil {
		t.Fatal("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
	if f.Writes() != 1 {
		t.Errorf("state should still be recorded, got %d writes", f.Writes())
	}
}

func TestFakeLEDClose(t *testing.T) {
	f := NewFakeLED()

	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeLEDReset(t *testing.T) {
	f := NewFakeLED()
	f.Set(true)
	f.Close()
	f.SetError = errors.New("error")

	f.Reset()

	if f.Writes() != 0 {
		t.Error("states should be cleared")
	}
	if f.Closed {
		t.Error("closed should be reset")
	}
	if f.SetError != nil {
		t.Error("error should be cleared")
	}
}

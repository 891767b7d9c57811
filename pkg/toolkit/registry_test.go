package toolkit

import (
	"errors"
	"testing"
)

func TestRegistry_AddIsIdempotent(t *testing.T) {
	reg := NewRegistry()

	if !reg.Add(ToolPan) {
		t.Error("First Add should report a new registration")
	}
	if reg.Add(ToolPan) {
		t.Error("Second Add should be a no-op")
	}
	if !reg.Has(ToolPan) {
		t.Error("Pan should be registered")
	}
}

func TestRegistry_ActivateReplacesToolOnSameButton(t *testing.T) {
	reg := NewRegistry()
	for _, name := range DefaultTools {
		reg.Add(name)
	}

	if err := reg.Activate(ToolWwwc, MouseLeft); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := reg.Activate(ToolPan, MouseRight); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := reg.Activate(ToolLength, MouseLeft); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	if name, _ := reg.ActiveFor(MouseLeft); name != ToolLength {
		t.Errorf("Expected Length on left button, got %q", name)
	}
	if name, _ := reg.ActiveFor(MouseRight); name != ToolPan {
		t.Errorf("Expected Pan on right button, got %q", name)
	}
}

func TestRegistry_ActivateUnknownTool(t *testing.T) {
	reg := NewRegistry()

	err := reg.Activate(ToolAngle, MouseLeft)
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("Expected ErrUnknownTool, got %v", err)
	}
}

func TestImageID(t *testing.T) {
	id := ImageID("http://host/files/1/a.dcm")
	if id != "wadouri:http://host/files/1/a.dcm" {
		t.Errorf("Unexpected image id %q", id)
	}
	if SourceURL(id) != "http://host/files/1/a.dcm" {
		t.Errorf("SourceURL did not strip the scheme: %q", SourceURL(id))
	}
	if ToolLength.StateKey() != "length" {
		t.Errorf("Unexpected state key %q", ToolLength.StateKey())
	}
}

//go:build !js || !wasm
// +build !js !wasm

package cornerstone

import (
	"context"
	"errors"
	"testing"

	"github.com/recera/dicomview/pkg/toolkit"
	"github.com/recera/dicomview/pkg/viewer"
)

func TestStub_Unsupported(t *testing.T) {
	tk := New()
	surface := toolkit.SurfaceID("dicomImage")

	if err := tk.Enable(surface); !errors.Is(err, toolkit.ErrUnsupported) {
		t.Errorf("Enable = %v", err)
	}
	if _, err := tk.LoadImage(context.Background(), "wadouri:a"); !errors.Is(err, toolkit.ErrUnsupported) {
		t.Errorf("LoadImage = %v", err)
	}
	if err := tk.AddTool(toolkit.ToolPan); !errors.Is(err, toolkit.ErrUnsupported) {
		t.Errorf("AddTool = %v", err)
	}
}

func TestStub_ViewerInitFails(t *testing.T) {
	ctrl := viewer.New(New(), toolkit.SurfaceID("dicomImage"), viewer.NewMemoryView(), nil)
	defer ctrl.Close()

	if err := ctrl.Init(); !errors.Is(err, toolkit.ErrUnsupported) {
		t.Errorf("Init = %v, want ErrUnsupported", err)
	}
}

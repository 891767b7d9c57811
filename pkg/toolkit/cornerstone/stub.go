//go:build !js || !wasm
// +build !js !wasm

package cornerstone

import (
	"context"

	"github.com/recera/dicomview/pkg/toolkit"
)

// Toolkit is the cornerstone toolkit (stub for non-WASM builds)
type Toolkit struct{}

// New creates a cornerstone toolkit (stub)
func New() *Toolkit {
	return &Toolkit{}
}

func (*Toolkit) Enable(toolkit.Surface) error { return toolkit.ErrUnsupported }

func (*Toolkit) LoadImage(context.Context, string) (*toolkit.Image, error) {
	return nil, toolkit.ErrUnsupported
}

func (*Toolkit) GetImage(string) (*toolkit.Image, error) { return nil, toolkit.ErrUnsupported }

func (*Toolkit) DisplayImage(toolkit.Surface, *toolkit.Image, *toolkit.Viewport) error {
	return toolkit.ErrUnsupported
}

func (*Toolkit) GetViewport(toolkit.Surface) (toolkit.Viewport, error) {
	return toolkit.Viewport{}, toolkit.ErrUnsupported
}

func (*Toolkit) SetViewport(toolkit.Surface, toolkit.Viewport) error {
	return toolkit.ErrUnsupported
}

func (*Toolkit) DefaultViewport(toolkit.Surface, *toolkit.Image) (toolkit.Viewport, error) {
	return toolkit.Viewport{}, toolkit.ErrUnsupported
}

func (*Toolkit) AddTool(toolkit.ToolName) error { return toolkit.ErrUnsupported }

func (*Toolkit) SetToolActive(toolkit.ToolName, toolkit.MouseButton) error {
	return toolkit.ErrUnsupported
}

func (*Toolkit) ClearToolState(toolkit.Surface, toolkit.ToolName) error {
	return toolkit.ErrUnsupported
}

var _ toolkit.Toolkit = (*Toolkit)(nil)

package viewer

import "github.com/recera/dicomview/pkg/toolkit"

// Actions is what UI bindings trigger. Controller implements it directly; a
// remote client implements it by forwarding events to the server.
type Actions interface {
	PlayCine()
	StopCine()
	NextImage() error
	PrevImage() error
	ZoomIn() error
	ZoomOut() error
	ResetViewport() error
	ActivateTool(name toolkit.ToolName) error
	ClearMeasurements() error
	UpdateWindowLevel() error
	Preset(width, center float64) error
	HandleWheel(deltaY float64) error
	HandleDoubleClick() error
}

var _ Actions = (*Controller)(nil)

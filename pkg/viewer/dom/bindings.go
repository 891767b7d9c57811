// Package dom connects a viewer to the browser page: a View that writes the
// status bar, window controls and measurement list, and the event bindings
// that turn clicks, input, wheel and double-click into viewer actions.
package dom

import (
	"github.com/recera/dicomview/pkg/toolkit"
	"github.com/recera/dicomview/pkg/viewer"
)

// IDs names the page elements
type IDs struct {
	Image        string
	Status       string
	Play         string
	WindowWidth  string
	WindowCenter string
	WidthLabel   string
	CenterLabel  string
	Measurements string

	Stop       string
	Prev       string
	Next       string
	ZoomIn     string
	ZoomOut    string
	Reset      string
	Pan        string
	Length     string
	Angle      string
	Clear      string
	SoftTissue string
	Bone       string
	Lung       string
}

// DefaultIDs are the element ids of the stock viewer page
var DefaultIDs = IDs{
	Image:        "dicomImage",
	Status:       "statusBar",
	Play:         "playBtn",
	WindowWidth:  "windowWidth",
	WindowCenter: "windowCenter",
	WidthLabel:   "wwValue",
	CenterLabel:  "wcValue",
	Measurements: "measurementsList",

	Stop:       "stopBtn",
	Prev:       "prevBtn",
	Next:       "nextBtn",
	ZoomIn:     "zoomInBtn",
	ZoomOut:    "zoomOutBtn",
	Reset:      "resetBtn",
	Pan:        "panBtn",
	Length:     "lengthBtn",
	Angle:      "angleBtn",
	Clear:      "clearBtn",
	SoftTissue: "softTissueBtn",
	Bone:       "boneBtn",
	Lung:       "lungBtn",
}

// Binding is the action a button click runs
type Binding struct {
	ID  string
	Run func() error
}

// Clicks returns the button bindings of a, in page order
func (ids IDs) Clicks(a viewer.Actions) []Binding {
	preset := func(p viewer.Preset) func() error {
		return func() error { return a.Preset(p.Width, p.Center) }
	}
	tool := func(name toolkit.ToolName) func() error {
		return func() error { return a.ActivateTool(name) }
	}
	return []Binding{
		{ids.Play, func() error { a.PlayCine(); return nil }},
		{ids.Stop, func() error { a.StopCine(); return nil }},
		{ids.Prev, a.PrevImage},
		{ids.Next, a.NextImage},
		{ids.ZoomIn, a.ZoomIn},
		{ids.ZoomOut, a.ZoomOut},
		{ids.Reset, a.ResetViewport},
		{ids.Pan, tool(toolkit.ToolPan)},
		{ids.Length, tool(toolkit.ToolLength)},
		{ids.Angle, tool(toolkit.ToolAngle)},
		{ids.Clear, a.ClearMeasurements},
		{ids.SoftTissue, preset(viewer.PresetSoftTissue)},
		{ids.Bone, preset(viewer.PresetBone)},
		{ids.Lung, preset(viewer.PresetLung)},
	}
}

// Buttons returns the ids of the clickable controls, in page order
func (ids IDs) Buttons() []string {
	return []string{
		ids.Play, ids.Stop, ids.Prev, ids.Next, ids.ZoomIn, ids.ZoomOut, ids.Reset,
		ids.Pan, ids.Length, ids.Angle, ids.Clear, ids.SoftTissue, ids.Bone, ids.Lung,
	}
}

// Inputs returns the ids whose input events commit the window level
func (ids IDs) Inputs() []string {
	return []string{ids.WindowWidth, ids.WindowCenter}
}

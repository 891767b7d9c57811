package dom

import (
	"testing"

	"github.com/recera/dicomview/pkg/toolkit"
	"github.com/recera/dicomview/pkg/viewer"
)

type recorder struct {
	last   string
	tool   toolkit.ToolName
	preset viewer.Preset
}

func (r *recorder) mark(s string) error {
	r.last = s
	return nil
}

func (r *recorder) PlayCine()                 { r.mark("play") }
func (r *recorder) StopCine()                 { r.mark("stop") }
func (r *recorder) NextImage() error          { return r.mark("next") }
func (r *recorder) PrevImage() error          { return r.mark("prev") }
func (r *recorder) ZoomIn() error             { return r.mark("zoom-in") }
func (r *recorder) ZoomOut() error            { return r.mark("zoom-out") }
func (r *recorder) ResetViewport() error      { return r.mark("reset") }
func (r *recorder) ClearMeasurements() error  { return r.mark("clear") }
func (r *recorder) UpdateWindowLevel() error  { return r.mark("window") }
func (r *recorder) HandleWheel(float64) error { return r.mark("wheel") }
func (r *recorder) HandleDoubleClick() error  { return r.mark("dblclick") }

func (r *recorder) ActivateTool(name toolkit.ToolName) error {
	r.tool = name
	return r.mark("tool")
}

func (r *recorder) Preset(w, c float64) error {
	r.preset = viewer.Preset{Width: w, Center: c}
	return r.mark("preset")
}

func TestClicks_DefaultPage(t *testing.T) {
	rec := &recorder{}
	clicks := DefaultIDs.Clicks(rec)

	if len(clicks) != len(DefaultIDs.Buttons()) {
		t.Fatalf("%d bindings for %d buttons", len(clicks), len(DefaultIDs.Buttons()))
	}
	byID := make(map[string]func() error)
	for i, b := range clicks {
		if b.ID != DefaultIDs.Buttons()[i] {
			t.Errorf("binding %d is %s, button is %s", i, b.ID, DefaultIDs.Buttons()[i])
		}
		byID[b.ID] = b.Run
	}

	tests := []struct {
		id   string
		want string
	}{
		{"playBtn", "play"},
		{"stopBtn", "stop"},
		{"prevBtn", "prev"},
		{"nextBtn", "next"},
		{"zoomInBtn", "zoom-in"},
		{"zoomOutBtn", "zoom-out"},
		{"resetBtn", "reset"},
		{"clearBtn", "clear"},
	}
	for _, tt := range tests {
		if err := byID[tt.id](); err != nil {
			t.Fatal(err)
		}
		if rec.last != tt.want {
			t.Errorf("%s ran %s, want %s", tt.id, rec.last, tt.want)
		}
	}

	byID["angleBtn"]()
	if rec.tool != toolkit.ToolAngle {
		t.Errorf("angleBtn activated %s", rec.tool)
	}
	byID["panBtn"]()
	if rec.tool != toolkit.ToolPan {
		t.Errorf("panBtn activated %s", rec.tool)
	}

	byID["lungBtn"]()
	if rec.preset.Width != 1500 || rec.preset.Center != -600 {
		t.Errorf("lung preset = %+v", rec.preset)
	}
	byID["boneBtn"]()
	if rec.preset.Width != 2000 || rec.preset.Center != 400 {
		t.Errorf("bone preset = %+v", rec.preset)
	}
}

func TestIDs_Inputs(t *testing.T) {
	in := DefaultIDs.Inputs()
	if len(in) != 2 || in[0] != "windowWidth" || in[1] != "windowCenter" {
		t.Errorf("inputs = %v", in)
	}
}

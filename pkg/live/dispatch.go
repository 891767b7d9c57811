package live

import (
	"fmt"
	"log"
	"strconv"

	"github.com/recera/dicomview/pkg/toolkit"
	"github.com/recera/dicomview/pkg/viewer"
)

// debugLog is set by platform-specific code
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// Dispatch applies a client event to the viewer. Window input events first
// update the inputs cached by view, which may be nil.
func Dispatch(a viewer.Actions, view *RemoteView, evt Event) error {
	switch evt.Type {
	case EventPlay:
		a.PlayCine()
		return nil
	case EventStop:
		a.StopCine()
		return nil
	case EventPrev:
		return a.PrevImage()
	case EventNext:
		return a.NextImage()
	case EventZoomIn:
		return a.ZoomIn()
	case EventZoomOut:
		return a.ZoomOut()
	case EventReset:
		return a.ResetViewport()
	case EventPan:
		return a.ActivateTool(toolkit.ToolPan)
	case EventLength:
		return a.ActivateTool(toolkit.ToolLength)
	case EventAngle:
		return a.ActivateTool(toolkit.ToolAngle)
	case EventClear:
		return a.ClearMeasurements()
	case EventDoubleClick:
		return a.HandleDoubleClick()

	case EventWindowInput:
		if len(evt.Args) != 2 {
			return fmt.Errorf("%s wants width and center: %w", evt.Type, ErrBadCommand)
		}
		if view != nil {
			view.setInputs(evt.Args[0], evt.Args[1])
		}
		return a.UpdateWindowLevel()

	case EventPreset:
		if len(evt.Args) != 2 {
			return fmt.Errorf("%s wants width and center: %w", evt.Type, ErrBadCommand)
		}
		w, err1 := strconv.ParseFloat(evt.Args[0], 64)
		c, err2 := strconv.ParseFloat(evt.Args[1], 64)
		if err1 != nil || err2 != nil {
			return fmt.Errorf("%s %v: %w", evt.Type, evt.Args, ErrBadCommand)
		}
		return a.Preset(w, c)

	case EventWheel:
		if len(evt.Args) != 1 {
			return fmt.Errorf("%s wants deltaY: %w", evt.Type, ErrBadCommand)
		}
		dy, err := strconv.ParseFloat(evt.Args[0], 64)
		if err != nil {
			return fmt.Errorf("%s %q: %w", evt.Type, evt.Args[0], ErrBadCommand)
		}
		return a.HandleWheel(dy)
	}
	return fmt.Errorf("event 0x%02x: %w", byte(evt.Type), ErrBadCommand)
}

// RemoteActions implements viewer.Actions on the client by sending events.
// Window inputs are read from the local view when the user commits them.
type RemoteActions struct {
	Send func(Event) error
	View viewer.View
}

func (r *RemoteActions) send(t EventType, args ...string) error {
	return r.Send(Event{Type: t, Args: args})
}

// PlayCine implements viewer.Actions
func (r *RemoteActions) PlayCine() {
	if err := r.send(EventPlay); err != nil {
		log.Printf("[Live Client] ⚠️  play: %v", err)
	}
}

// StopCine implements viewer.Actions
func (r *RemoteActions) StopCine() {
	if err := r.send(EventStop); err != nil {
		log.Printf("[Live Client] ⚠️  stop: %v", err)
	}
}

func (r *RemoteActions) NextImage() error     { return r.send(EventNext) }
func (r *RemoteActions) PrevImage() error     { return r.send(EventPrev) }
func (r *RemoteActions) ZoomIn() error        { return r.send(EventZoomIn) }
func (r *RemoteActions) ZoomOut() error       { return r.send(EventZoomOut) }
func (r *RemoteActions) ResetViewport() error { return r.send(EventReset) }

func (r *RemoteActions) ClearMeasurements() error { return r.send(EventClear) }
func (r *RemoteActions) HandleDoubleClick() error { return r.send(EventDoubleClick) }

// ActivateTool implements viewer.Actions
func (r *RemoteActions) ActivateTool(name toolkit.ToolName) error {
	switch name {
	case toolkit.ToolPan:
		return r.send(EventPan)
	case toolkit.ToolLength:
		return r.send(EventLength)
	case toolkit.ToolAngle:
		return r.send(EventAngle)
	}
	return fmt.Errorf("%s: %w", name, toolkit.ErrUnknownTool)
}

// UpdateWindowLevel implements viewer.Actions
func (r *RemoteActions) UpdateWindowLevel() error {
	w, c := r.View.WindowInputs()
	return r.send(EventWindowInput, w, c)
}

// Preset implements viewer.Actions
func (r *RemoteActions) Preset(width, center float64) error {
	return r.send(EventPreset, formatFloat(width), formatFloat(center))
}

// HandleWheel implements viewer.Actions
func (r *RemoteActions) HandleWheel(deltaY float64) error {
	return r.send(EventWheel, formatFloat(deltaY))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ viewer.Actions = (*RemoteActions)(nil)

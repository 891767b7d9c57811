package viewer

import (
	"time"

	"github.com/recera/dicomview/pkg/toolkit"
)

// Preset is a named window width/center pair
type Preset struct {
	Name   string
	Width  float64
	Center float64
}

// Built-in window presets
var (
	PresetSoftTissue = Preset{Name: "soft-tissue", Width: 400, Center: 40}
	PresetBone       = Preset{Name: "bone", Width: 2000, Center: 400}
	PresetLung       = Preset{Name: "lung", Width: 1500, Center: -600}
)

// Presets lists the built-in presets in button order
var Presets = []Preset{PresetSoftTissue, PresetBone, PresetLung}

// Options configures a Controller
type Options struct {
	CineInterval  time.Duration // default 200ms
	ZoomRatio     float64       // default 1.2
	DefaultWidth  float64       // default 400
	DefaultCenter float64       // default 40

	// MaxConcurrentLoads bounds in-flight image loads, 0 means unbounded
	MaxConcurrentLoads int

	// Clock drives cine playback, default is the wall clock
	Clock Clock

	// Tools registered on Init, default toolkit.DefaultTools
	Tools []toolkit.ToolName
}

func (o *Options) withDefaults() Options {
	d := Options{
		CineInterval:  200 * time.Millisecond,
		ZoomRatio:     1.2,
		DefaultWidth:  400,
		DefaultCenter: 40,
		Clock:         wallClock{},
		Tools:         toolkit.DefaultTools,
	}
	if o == nil {
		return d
	}
	if o.CineInterval > 0 {
		d.CineInterval = o.CineInterval
	}
	if o.ZoomRatio > 0 {
		d.ZoomRatio = o.ZoomRatio
	}
	if o.DefaultWidth != 0 {
		d.DefaultWidth = o.DefaultWidth
	}
	if o.DefaultCenter != 0 {
		d.DefaultCenter = o.DefaultCenter
	}
	if o.MaxConcurrentLoads > 0 {
		d.MaxConcurrentLoads = o.MaxConcurrentLoads
	}
	if o.Clock != nil {
		d.Clock = o.Clock
	}
	if len(o.Tools) > 0 {
		d.Tools = o.Tools
	}
	return d
}

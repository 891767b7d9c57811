package viewer

import (
	"strconv"
	"strings"
	"sync"
)

// Texts shown by the viewer
const (
	PlayLabel          = "▶️ Play"
	PauseLabel         = "⏸️ Pause"
	NoImagesText       = "❌ No DICOM files found"
	NoMeasurementsText = "No measurements recorded"
)

// StatusText formats the position indicator
func StatusText(index, total int) string {
	return "Image " + strconv.Itoa(index+1) + "/" + strconv.Itoa(total)
}

// LoadErrorText formats the status shown when image index fails to load
func LoadErrorText(index int) string {
	return "❌ Error loading image " + strconv.Itoa(index+1)
}

// View is the page the controller reflects its state into
type View interface {
	SetStatus(text string)
	SetPlayLabel(text string)
	// SetWindowInputs writes the window width/center input controls
	SetWindowInputs(width, center string)
	// WindowInputs reads the window width/center input controls
	WindowInputs() (width, center string)
	// SetWindowLabels writes the window width/center display labels
	SetWindowLabels(width, center string)
	// SetMeasurements renders the measurement list; an empty list renders
	// NoMeasurementsText
	SetMeasurements(items []string)
}

// MemoryView is a View held in memory. Hosts without a DOM (terminal UI,
// tests) read it back through Snapshot.
type MemoryView struct {
	mu           sync.RWMutex
	status       string
	playLabel    string
	widthInput   string
	centerInput  string
	widthLabel   string
	centerLabel  string
	measurements []string
}

// ViewSnapshot is a copy of a MemoryView
type ViewSnapshot struct {
	Status       string
	PlayLabel    string
	WidthInput   string
	CenterInput  string
	WidthLabel   string
	CenterLabel  string
	Measurements []string
}

// MeasurementsText renders the measurement list the way the page shows it
func (s ViewSnapshot) MeasurementsText() string {
	if len(s.Measurements) == 0 {
		return NoMeasurementsText
	}
	return strings.Join(s.Measurements, "\n")
}

// NewMemoryView creates a view with the controls' initial values
func NewMemoryView() *MemoryView {
	return &MemoryView{
		playLabel:   PlayLabel,
		widthInput:  "400",
		centerInput: "40",
	}
}

func (v *MemoryView) SetStatus(text string) {
	v.mu.Lock()
	v.status = text
	v.mu.Unlock()
}

func (v *MemoryView) SetPlayLabel(text string) {
	v.mu.Lock()
	v.playLabel = text
	v.mu.Unlock()
}

func (v *MemoryView) SetWindowInputs(width, center string) {
	v.mu.Lock()
	v.widthInput = width
	v.centerInput = center
	v.mu.Unlock()
}

func (v *MemoryView) WindowInputs() (string, string) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.widthInput, v.centerInput
}

func (v *MemoryView) SetWindowLabels(width, center string) {
	v.mu.Lock()
	v.widthLabel = width
	v.centerLabel = center
	v.mu.Unlock()
}

func (v *MemoryView) SetMeasurements(items []string) {
	v.mu.Lock()
	v.measurements = append([]string(nil), items...)
	v.mu.Unlock()
}

// Snapshot returns a copy of the view contents
func (v *MemoryView) Snapshot() ViewSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return ViewSnapshot{
		Status:       v.status,
		PlayLabel:    v.playLabel,
		WidthInput:   v.widthInput,
		CenterInput:  v.centerInput,
		WidthLabel:   v.widthLabel,
		CenterLabel:  v.centerLabel,
		Measurements: append([]string(nil), v.measurements...),
	}
}

// Package toolkit describes the capability surface of an imaging toolkit:
// the component that decodes, renders and annotates medical images on
// behalf of a viewer. Viewers only call into it.
package toolkit

import (
	"context"
	"errors"
	"strings"
)

// ImageScheme is prefixed to source URLs to form toolkit image identifiers
const ImageScheme = "wadouri:"

var (
	// ErrImageNotLoaded is returned when an image id has not completed loading
	ErrImageNotLoaded = errors.New("toolkit: image not loaded")
	// ErrSurfaceNotEnabled is returned for operations on a surface that was never enabled
	ErrSurfaceNotEnabled = errors.New("toolkit: surface not enabled")
	// ErrNoImageDisplayed is returned when a viewport is requested before any image was displayed
	ErrNoImageDisplayed = errors.New("toolkit: no image displayed")
	// ErrUnknownTool is returned when activating or clearing a tool that was never added
	ErrUnknownTool = errors.New("toolkit: unknown tool")
	// ErrUnsupported is returned by toolkits that cannot run on the current platform
	ErrUnsupported = errors.New("toolkit: unsupported on this platform")
)

// ToolName identifies an interactive tool
type ToolName string

const (
	ToolPan    ToolName = "Pan"
	ToolWwwc   ToolName = "Wwwc"
	ToolZoom   ToolName = "Zoom"
	ToolLength ToolName = "Length"
	ToolAngle  ToolName = "Angle"
)

// StateKey returns the annotation state key of the tool ("Length" -> "length")
func (n ToolName) StateKey() string {
	return strings.ToLower(string(n))
}

// DefaultTools is the fixed set of tools a viewer registers on init
var DefaultTools = []ToolName{ToolLength, ToolAngle, ToolPan, ToolWwwc, ToolZoom}

// MouseButton is a mouse button mask
type MouseButton int

const (
	MouseLeft   MouseButton = 1
	MouseRight  MouseButton = 2
	MouseMiddle MouseButton = 4
)

// Surface is a display element a toolkit renders into
type Surface interface {
	SurfaceID() string
}

// SurfaceID is a Surface identified only by its name
type SurfaceID string

// SurfaceID implements Surface
func (s SurfaceID) SurfaceID() string { return string(s) }

// VOI holds the window width/center mapping of grayscale values
type VOI struct {
	WindowWidth  float64 `json:"windowWidth"`
	WindowCenter float64 `json:"windowCenter"`
}

// Translation is the pan offset of a viewport
type Translation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport holds the rendering parameters of the image shown on a surface
type Viewport struct {
	Scale       float64     `json:"scale"`
	Translation Translation `json:"translation"`
	VOI         VOI         `json:"voi"`
	Invert      bool        `json:"invert"`
	HFlip       bool        `json:"hflip"`
	VFlip       bool        `json:"vflip"`
	Rotation    float64     `json:"rotation"`
}

// Image is a decoded image resource
type Image struct {
	ID             string  `json:"imageId"`
	Rows           int     `json:"rows"`
	Columns        int     `json:"columns"`
	WindowWidth    float64 `json:"windowWidth"`
	WindowCenter   float64 `json:"windowCenter"`
	SOPInstanceUID string  `json:"sopInstanceUid,omitempty"`
	InstanceNumber int     `json:"instanceNumber,omitempty"`

	// Handle carries toolkit-private data (a JS object, a parsed dataset)
	Handle any `json:"-"`
}

// Toolkit is the imaging toolkit a viewer drives
type Toolkit interface {
	// Enable prepares a surface for display
	Enable(surface Surface) error
	// LoadImage decodes the image behind id. Loads are independent and may
	// complete in any order.
	LoadImage(ctx context.Context, imageID string) (*Image, error)
	// GetImage returns an image that already finished loading
	GetImage(imageID string) (*Image, error)
	// DisplayImage renders img on surface, with vp when non-nil
	DisplayImage(surface Surface, img *Image, vp *Viewport) error
	GetViewport(surface Surface) (Viewport, error)
	SetViewport(surface Surface, vp Viewport) error
	DefaultViewport(surface Surface, img *Image) (Viewport, error)

	// AddTool registers a tool. Registering twice is a no-op.
	AddTool(name ToolName) error
	SetToolActive(name ToolName, mask MouseButton) error
	ClearToolState(surface Surface, name ToolName) error
}

// ImageID builds the toolkit identifier of a source URL
func ImageID(url string) string {
	return ImageScheme + url
}

// SourceURL strips the image scheme from an identifier
func SourceURL(imageID string) string {
	return strings.TrimPrefix(imageID, ImageScheme)
}

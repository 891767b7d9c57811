// Package native is an imaging toolkit that runs in any Go process. It
// decodes DICOM metadata with github.com/suyashkumar/dicom and keeps the
// viewport and annotation state of each surface in memory. It does not
// rasterize: hosts without a canvas (terminal UI, headless tests, the server)
// use it to drive a viewer and inspect the result.
package native

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/recera/dicomview/pkg/toolkit"
)

// Fallback VOI for images that carry no window tags
const (
	FallbackWindowWidth  = 256
	FallbackWindowCenter = 128
)

// Loader turns a source URL into a decoded image
type Loader interface {
	Load(ctx context.Context, url string) (*toolkit.Image, error)
}

// LoaderFunc adapts a function to Loader
type LoaderFunc func(ctx context.Context, url string) (*toolkit.Image, error)

// Load implements Loader
func (f LoaderFunc) Load(ctx context.Context, url string) (*toolkit.Image, error) {
	return f(ctx, url)
}

type surfaceState struct {
	image       *toolkit.Image
	viewport    toolkit.Viewport
	annotations map[string][]string
}

// Toolkit is an in-process toolkit.Toolkit
type Toolkit struct {
	mu       sync.RWMutex
	loader   Loader
	registry *toolkit.Registry
	surfaces map[string]*surfaceState
	images   map[string]*toolkit.Image
}

// New creates a toolkit that loads images through loader. Tool registration
// is scoped to the returned instance.
func New(loader Loader) *Toolkit {
	return &Toolkit{
		loader:   loader,
		registry: toolkit.NewRegistry(),
		surfaces: make(map[string]*surfaceState),
		images:   make(map[string]*toolkit.Image),
	}
}

// Enable implements toolkit.Toolkit
func (t *Toolkit) Enable(surface toolkit.Surface) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.surfaces[surface.SurfaceID()]; !ok {
		t.surfaces[surface.SurfaceID()] = &surfaceState{annotations: make(map[string][]string)}
	}
	return nil
}

// LoadImage implements toolkit.Toolkit
func (t *Toolkit) LoadImage(ctx context.Context, imageID string) (*toolkit.Image, error) {
	t.mu.RLock()
	img, ok := t.images[imageID]
	t.mu.RUnlock()
	if ok {
		return img, nil
	}

	img, err := t.loader.Load(ctx, toolkit.SourceURL(imageID))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", imageID, err)
	}
	img.ID = imageID

	t.mu.Lock()
	t.images[imageID] = img
	t.mu.Unlock()
	return img, nil
}

// GetImage implements toolkit.Toolkit
func (t *Toolkit) GetImage(imageID string) (*toolkit.Image, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	img, ok := t.images[imageID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", imageID, toolkit.ErrImageNotLoaded)
	}
	return img, nil
}

// DisplayImage implements toolkit.Toolkit. Without vp the surface keeps its
// current viewport, or gets the image default when nothing was shown yet.
func (t *Toolkit) DisplayImage(surface toolkit.Surface, img *toolkit.Image, vp *toolkit.Viewport) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, err := t.surfaceLocked(surface)
	if err != nil {
		return err
	}
	switch {
	case vp != nil:
		st.viewport = *vp
	case st.image == nil:
		st.viewport = defaultViewport(img)
	}
	st.image = img
	return nil
}

// GetViewport implements toolkit.Toolkit
func (t *Toolkit) GetViewport(surface toolkit.Surface) (toolkit.Viewport, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, err := t.surfaceLocked(surface)
	if err != nil {
		return toolkit.Viewport{}, err
	}
	if st.image == nil {
		return toolkit.Viewport{}, toolkit.ErrNoImageDisplayed
	}
	return st.viewport, nil
}

// SetViewport implements toolkit.Toolkit
func (t *Toolkit) SetViewport(surface toolkit.Surface, vp toolkit.Viewport) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, err := t.surfaceLocked(surface)
	if err != nil {
		return err
	}
	if st.image == nil {
		return toolkit.ErrNoImageDisplayed
	}
	st.viewport = vp
	return nil
}

// DefaultViewport implements toolkit.Toolkit
func (t *Toolkit) DefaultViewport(surface toolkit.Surface, img *toolkit.Image) (toolkit.Viewport, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, err := t.surfaceLocked(surface); err != nil {
		return toolkit.Viewport{}, err
	}
	return defaultViewport(img), nil
}

func defaultViewport(img *toolkit.Image) toolkit.Viewport {
	voi := toolkit.VOI{WindowWidth: img.WindowWidth, WindowCenter: img.WindowCenter}
	if voi.WindowWidth <= 0 {
		voi = toolkit.VOI{WindowWidth: FallbackWindowWidth, WindowCenter: FallbackWindowCenter}
	}
	return toolkit.Viewport{Scale: 1, VOI: voi}
}

// AddTool implements toolkit.Toolkit
func (t *Toolkit) AddTool(name toolkit.ToolName) error {
	if t.registry.Add(name) {
		log.Printf("[Native] Tool %s registered", name)
	}
	return nil
}

// SetToolActive implements toolkit.Toolkit
func (t *Toolkit) SetToolActive(name toolkit.ToolName, mask toolkit.MouseButton) error {
	return t.registry.Activate(name, mask)
}

// ActiveTool returns the tool bound to mask
func (t *Toolkit) ActiveTool(mask toolkit.MouseButton) (toolkit.ToolName, bool) {
	return t.registry.ActiveFor(mask)
}

// AddToolState records an annotation made with tool name on surface
func (t *Toolkit) AddToolState(surface toolkit.Surface, name toolkit.ToolName, data string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, err := t.surfaceLocked(surface)
	if err != nil {
		return err
	}
	if !t.registry.Has(name) {
		return fmt.Errorf("add state for %s: %w", name, toolkit.ErrUnknownTool)
	}
	st.annotations[name.StateKey()] = append(st.annotations[name.StateKey()], data)
	return nil
}

// ToolState returns the annotations of tool name on surface
func (t *Toolkit) ToolState(surface toolkit.Surface, name toolkit.ToolName) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.surfaces[surface.SurfaceID()]
	if !ok {
		return nil
	}
	return append([]string(nil), st.annotations[name.StateKey()]...)
}

// ClearToolState implements toolkit.Toolkit
func (t *Toolkit) ClearToolState(surface toolkit.Surface, name toolkit.ToolName) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, err := t.surfaceLocked(surface)
	if err != nil {
		return err
	}
	delete(st.annotations, name.StateKey())
	return nil
}

// Displayed returns the image currently shown on surface
func (t *Toolkit) Displayed(surface toolkit.Surface) (*toolkit.Image, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.surfaces[surface.SurfaceID()]
	if !ok || st.image == nil {
		return nil, false
	}
	return st.image, true
}

func (t *Toolkit) surfaceLocked(surface toolkit.Surface) (*surfaceState, error) {
	st, ok := t.surfaces[surface.SurfaceID()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", surface.SurfaceID(), toolkit.ErrSurfaceNotEnabled)
	}
	return st, nil
}

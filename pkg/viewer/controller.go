// Package viewer implements the controller behind a DICOM stack viewer. It
// holds the viewer state (current image, cine playback, zoom, window/level,
// measurements), forwards user actions to an imaging toolkit and reflects the
// result into a View.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/recera/dicomview/pkg/toolkit"
)

// ErrEmptyStack is returned by navigation on a viewer with no images
var ErrEmptyStack = errors.New("viewer: image stack is empty")

// debugLog is set by platform-specific code
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// State is a snapshot of the viewer state
type State struct {
	ImageIDs     []string
	Index        int
	Loaded       int
	Failed       int
	Playing      bool
	Scale        float64
	WindowWidth  float64
	WindowCenter float64
	Measurements []string
}

// Controller coordinates user actions, the toolkit and the view
type Controller struct {
	mu      sync.Mutex
	tk      toolkit.Toolkit
	surface toolkit.Surface
	view    View
	opts    Options

	imageIDs     []string
	index        int
	loaded       int
	failed       int
	cine         *cine
	scale        float64
	windowWidth  float64
	windowCenter float64
	measurements []string

	// Each LoadImages call gets a generation and a context; completions
	// from an older generation are dropped.
	generation uint64
	cancelLoad context.CancelFunc
	dispatch   sync.WaitGroup
	loads      errgroup.Group
	closed     bool
}

// New creates a controller for surface. Call Init before use.
func New(tk toolkit.Toolkit, surface toolkit.Surface, view View, opts *Options) *Controller {
	o := opts.withDefaults()
	c := &Controller{
		tk:           tk,
		surface:      surface,
		view:         view,
		opts:         o,
		scale:        1.0,
		windowWidth:  o.DefaultWidth,
		windowCenter: o.DefaultCenter,
	}
	if o.MaxConcurrentLoads > 0 {
		c.loads.SetLimit(o.MaxConcurrentLoads)
	}
	return c
}

// Init enables the surface, registers the viewer tools and binds the
// default mouse buttons: window/level on the left button, pan on mask 2.
func (c *Controller) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.tk.Enable(c.surface); err != nil {
		return fmt.Errorf("enable surface: %w", err)
	}
	for _, name := range c.opts.Tools {
		if err := c.tk.AddTool(name); err != nil {
			return fmt.Errorf("add tool %s: %w", name, err)
		}
	}
	if err := c.tk.SetToolActive(toolkit.ToolWwwc, toolkit.MouseLeft); err != nil {
		return err
	}
	if err := c.tk.SetToolActive(toolkit.ToolPan, toolkit.MouseRight); err != nil {
		return err
	}

	c.reflectWindowLocked()
	c.view.SetPlayLabel(PlayLabel)
	log.Printf("[Viewer] ✅ DICOM viewer initialized on %s", c.surface.SurfaceID())
	return nil
}

// HandleDoubleClick resets the viewport
func (c *Controller) HandleDoubleClick() error {
	return c.ResetViewport()
}

// HandleWheel scrolls through the stack: up goes back, down goes forward
func (c *Controller) HandleWheel(deltaY float64) error {
	if deltaY < 0 {
		return c.PrevImage()
	}
	return c.NextImage()
}

// LoadImages replaces the stack with urls and starts loading every image.
// Loads run concurrently and complete in any order; the first image is shown
// as soon as it is available. A failed load only reports its own index.
func (c *Controller) LoadImages(urls []string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.cancelLoad != nil {
		c.cancelLoad()
	}

	ids := make([]string, len(urls))
	for i, u := range urls {
		ids[i] = toolkit.ImageID(u)
	}
	c.imageIDs = ids
	c.index = 0
	c.loaded = 0
	c.failed = 0
	c.generation++
	gen := c.generation

	if len(ids) == 0 {
		c.cancelLoad = nil
		c.view.SetStatus(NoImagesText)
		c.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelLoad = cancel
	c.dispatch.Add(1)
	c.mu.Unlock()

	// Dispatch outside the lock: with a load limit, Go blocks until a slot
	// frees up, and freeing one needs the lock.
	go func() {
		defer c.dispatch.Done()
		for i, id := range ids {
			if ctx.Err() != nil {
				return
			}
			i, id := i, id
			c.loads.Go(func() error {
				img, err := c.tk.LoadImage(ctx, id)
				c.finishLoad(ctx, gen, i, img, err)
				return nil
			})
		}
	}()
}

func (c *Controller) finishLoad(ctx context.Context, gen uint64, index int, img *toolkit.Image, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.generation || ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Printf("[Viewer] ❌ Error loading image %d: %v", index+1, err)
		c.failed++
		c.view.SetStatus(LoadErrorText(index))
		return
	}

	c.loaded++
	if debugLog != nil {
		debugLog("[Viewer] Image", index+1, "loaded", c.loaded, "/", len(c.imageIDs), img.ID)
	}
	if index == 0 {
		if err := c.showImageLocked(0); err != nil {
			log.Printf("[Viewer] Failed to show first image: %v", err)
		}
	}
	c.updateStatusLocked()
}

// ShowImage displays the image at index, wrapping around both ends of the stack
func (c *Controller) ShowImage(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.showImageLocked(index)
}

func (c *Controller) showImageLocked(index int) error {
	n := len(c.imageIDs)
	if n == 0 {
		return ErrEmptyStack
	}
	index = ((index % n) + n) % n
	c.index = index

	img, err := c.tk.GetImage(c.imageIDs[index])
	if err != nil {
		c.updateStatusLocked()
		return fmt.Errorf("show image %d: %w", index+1, err)
	}
	if err := c.tk.DisplayImage(c.surface, img, nil); err != nil {
		c.updateStatusLocked()
		return fmt.Errorf("display image %d: %w", index+1, err)
	}
	c.updateStatusLocked()
	return nil
}

func (c *Controller) updateStatusLocked() {
	c.view.SetStatus(StatusText(c.index, len(c.imageIDs)))
}

// NextImage advances one image
func (c *Controller) NextImage() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.showImageLocked(c.index + 1)
}

// PrevImage goes back one image
func (c *Controller) PrevImage() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.showImageLocked(c.index - 1)
}

// PlayCine starts advancing through the stack at the cine interval. It does
// nothing while playback is already running.
func (c *Controller) PlayCine() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cine != nil || c.closed {
		return
	}
	cn := newCine(c.opts.Clock, c.opts.CineInterval)
	c.cine = cn
	cn.run(func() { c.cineStep(cn) })
	c.view.SetPlayLabel(PauseLabel)
}

func (c *Controller) cineStep(cn *cine) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cine != cn {
		return
	}
	if err := c.showImageLocked(c.index + 1); err != nil && debugLog != nil {
		debugLog("[Viewer] Cine frame failed:", err.Error())
	}
}

// StopCine stops playback. Stopping a stopped viewer is a no-op.
func (c *Controller) StopCine() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCineLocked()
}

func (c *Controller) stopCineLocked() {
	if c.cine == nil {
		return
	}
	c.cine.halt()
	c.cine = nil
	c.view.SetPlayLabel(PlayLabel)
}

// IsPlaying reports whether cine playback is running
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cine != nil
}

// ZoomIn multiplies the scale by the zoom ratio
func (c *Controller) ZoomIn() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scale *= c.opts.ZoomRatio
	return c.applyTransformLocked()
}

// ZoomOut divides the scale by the zoom ratio
func (c *Controller) ZoomOut() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.scale /= c.opts.ZoomRatio
	return c.applyTransformLocked()
}

// ResetViewport shows the current image with the toolkit's default viewport
// and resets scale and window/level to their defaults. Local state is reset
// even when the toolkit call fails.
func (c *Controller) ResetViewport() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.displayDefaultLocked()

	c.scale = 1.0
	c.windowWidth = c.opts.DefaultWidth
	c.windowCenter = c.opts.DefaultCenter
	c.reflectWindowLocked()
	return err
}

func (c *Controller) displayDefaultLocked() error {
	if len(c.imageIDs) == 0 {
		return ErrEmptyStack
	}
	img, err := c.tk.GetImage(c.imageIDs[c.index])
	if err != nil {
		return fmt.Errorf("reset viewport: %w", err)
	}
	vp, err := c.tk.DefaultViewport(c.surface, img)
	if err != nil {
		return fmt.Errorf("reset viewport: %w", err)
	}
	if err := c.tk.DisplayImage(c.surface, img, &vp); err != nil {
		return fmt.Errorf("reset viewport: %w", err)
	}
	return nil
}

// UpdateWindowLevel reads the window inputs from the view and applies them
func (c *Controller) UpdateWindowLevel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateWindowLevelLocked()
}

func (c *Controller) updateWindowLevelLocked() error {
	ws, cs := c.view.WindowInputs()
	width, err := parseIntPrefix(ws)
	if err != nil {
		return fmt.Errorf("window width: %w", err)
	}
	center, err := parseIntPrefix(cs)
	if err != nil {
		return fmt.Errorf("window center: %w", err)
	}

	c.windowWidth = float64(width)
	c.windowCenter = float64(center)
	err = c.applyTransformLocked()
	c.view.SetWindowLabels(formatNumber(c.windowWidth), formatNumber(c.windowCenter))
	return err
}

// Preset applies a window width/center pair
func (c *Controller) Preset(width, center float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.windowWidth = width
	c.windowCenter = center
	c.view.SetWindowInputs(formatNumber(width), formatNumber(center))
	return c.updateWindowLevelLocked()
}

// ApplyTransform pushes the current scale and window/level to the toolkit
func (c *Controller) ApplyTransform() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyTransformLocked()
}

func (c *Controller) applyTransformLocked() error {
	vp, err := c.tk.GetViewport(c.surface)
	if err != nil {
		return fmt.Errorf("apply transform: %w", err)
	}
	vp.Scale = c.scale
	vp.VOI = toolkit.VOI{WindowWidth: c.windowWidth, WindowCenter: c.windowCenter}
	if err := c.tk.SetViewport(c.surface, vp); err != nil {
		return fmt.Errorf("apply transform: %w", err)
	}
	return nil
}

// ActivateTool binds a tool to the left mouse button
func (c *Controller) ActivateTool(name toolkit.ToolName) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tk.SetToolActive(name, toolkit.MouseLeft)
}

// RecordMeasurement appends a measurement to the list
func (c *Controller) RecordMeasurement(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.measurements = append(c.measurements, text)
	c.view.SetMeasurements(c.measurements)
}

// ClearMeasurements removes length and angle annotations and empties the list
func (c *Controller) ClearMeasurements() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, name := range []toolkit.ToolName{toolkit.ToolLength, toolkit.ToolAngle} {
		if err := c.tk.ClearToolState(c.surface, name); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", name.StateKey(), err))
		}
	}
	c.measurements = nil
	c.view.SetMeasurements(nil)
	return errors.Join(errs...)
}

// State returns a snapshot of the viewer state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		ImageIDs:     append([]string(nil), c.imageIDs...),
		Index:        c.index,
		Loaded:       c.loaded,
		Failed:       c.failed,
		Playing:      c.cine != nil,
		Scale:        c.scale,
		WindowWidth:  c.windowWidth,
		WindowCenter: c.windowCenter,
		Measurements: append([]string(nil), c.measurements...),
	}
}

// Close stops playback, cancels pending loads and waits for them to return.
// Completions that arrive after Close are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopCineLocked()
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	c.mu.Unlock()

	c.dispatch.Wait()
	c.loads.Wait()
}

func (c *Controller) reflectWindowLocked() {
	w, ctr := formatNumber(c.windowWidth), formatNumber(c.windowCenter)
	c.view.SetWindowInputs(w, ctr)
	c.view.SetWindowLabels(w, ctr)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseIntPrefix reads the leading integer of s, ignoring whatever follows
// it ("40.5" is 40, "12px" is 12).
func parseIntPrefix(s string) (int, error) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return strconv.Atoi(s[:end])
}

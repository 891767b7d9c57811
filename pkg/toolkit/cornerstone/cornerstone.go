//go:build js && wasm
// +build js,wasm

package cornerstone

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"syscall/js"

	"github.com/recera/dicomview/pkg/toolkit"
)

// Element is a surface that already holds its DOM element
type Element interface {
	toolkit.Surface
	JSValue() js.Value
}

// Toolkit drives the page's cornerstone globals
type Toolkit struct {
	mu       sync.Mutex
	cs       js.Value
	tools    js.Value
	registry *toolkit.Registry
	images   map[string]*toolkit.Image
	inited   bool
}

// New creates a toolkit over the page globals. Tool registration is scoped
// to the returned instance.
func New() *Toolkit {
	return &Toolkit{
		cs:       js.Global().Get(CoreGlobal),
		tools:    js.Global().Get(ToolsGlobal),
		registry: toolkit.NewRegistry(),
		images:   make(map[string]*toolkit.Image),
	}
}

func (t *Toolkit) available() error {
	if t.cs.IsUndefined() || t.tools.IsUndefined() {
		return fmt.Errorf("%s/%s not loaded: %w", CoreGlobal, ToolsGlobal, toolkit.ErrUnsupported)
	}
	return nil
}

func element(surface toolkit.Surface) (js.Value, error) {
	if el, ok := surface.(Element); ok {
		return el.JSValue(), nil
	}
	el := js.Global().Get("document").Call("getElementById", surface.SurfaceID())
	if el.IsNull() || el.IsUndefined() {
		return js.Value{}, fmt.Errorf("element #%s: %w", surface.SurfaceID(), toolkit.ErrSurfaceNotEnabled)
	}
	return el, nil
}

// call converts a JS exception thrown by fn into an error
func call(fn func() js.Value) (v js.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if jsErr, ok := r.(js.Error); ok {
				err = jsErr
				return
			}
			panic(r)
		}
	}()
	return fn(), nil
}

// await blocks until promise settles or ctx is done
func await(ctx context.Context, promise js.Value) (js.Value, error) {
	type result struct {
		v   js.Value
		err error
	}
	ch := make(chan result, 1)

	var onResolve, onReject js.Func
	settle := func(r result) {
		ch <- r
		onResolve.Release()
		onReject.Release()
	}
	onResolve = js.FuncOf(func(_ js.Value, args []js.Value) interface{} {
		var v js.Value
		if len(args) > 0 {
			v = args[0]
		}
		settle(result{v: v})
		return nil
	})
	onReject = js.FuncOf(func(_ js.Value, args []js.Value) interface{} {
		msg := "promise rejected"
		if len(args) > 0 && !args[0].IsUndefined() && !args[0].IsNull() {
			msg = args[0].Call("toString").String()
		}
		settle(result{err: errors.New(msg)})
		return nil
	})
	promise.Call("then", onResolve, onReject)

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return js.Value{}, ctx.Err()
	}
}

// Enable implements toolkit.Toolkit
func (t *Toolkit) Enable(surface toolkit.Surface) error {
	if err := t.available(); err != nil {
		return err
	}
	el, err := element(surface)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := call(func() js.Value { return t.cs.Call("enable", el) }); err != nil {
		return fmt.Errorf("enable #%s: %w", surface.SurfaceID(), err)
	}
	if !t.inited {
		if _, err := call(func() js.Value { return t.tools.Call("init") }); err != nil {
			return fmt.Errorf("init tools: %w", err)
		}
		t.inited = true
	}
	return nil
}

// LoadImage implements toolkit.Toolkit
func (t *Toolkit) LoadImage(ctx context.Context, imageID string) (*toolkit.Image, error) {
	if err := t.available(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	img, ok := t.images[imageID]
	t.mu.Unlock()
	if ok {
		return img, nil
	}

	promise, err := call(func() js.Value { return t.cs.Call("loadImage", imageID) })
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", imageID, err)
	}
	obj, err := await(ctx, promise)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", imageID, err)
	}

	img = imageFromJS(imageID, obj)
	t.mu.Lock()
	t.images[imageID] = img
	t.mu.Unlock()
	return img, nil
}

func imageFromJS(imageID string, obj js.Value) *toolkit.Image {
	img := &toolkit.Image{
		ID:           imageID,
		Rows:         intField(obj, "rows"),
		Columns:      intField(obj, "columns"),
		WindowWidth:  floatField(obj, "windowWidth"),
		WindowCenter: floatField(obj, "windowCenter"),
		Handle:       obj,
	}
	return img
}

func intField(obj js.Value, name string) int {
	v := obj.Get(name)
	if v.Type() != js.TypeNumber {
		return 0
	}
	return v.Int()
}

func floatField(obj js.Value, name string) float64 {
	v := obj.Get(name)
	if v.Type() != js.TypeNumber {
		return 0
	}
	return v.Float()
}

func boolField(obj js.Value, name string) bool {
	v := obj.Get(name)
	return v.Type() == js.TypeBoolean && v.Bool()
}

// GetImage implements toolkit.Toolkit
func (t *Toolkit) GetImage(imageID string) (*toolkit.Image, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	img, ok := t.images[imageID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", imageID, toolkit.ErrImageNotLoaded)
	}
	return img, nil
}

func handle(img *toolkit.Image) (js.Value, error) {
	if img == nil {
		return js.Value{}, toolkit.ErrImageNotLoaded
	}
	v, ok := img.Handle.(js.Value)
	if !ok {
		return js.Value{}, fmt.Errorf("%s has no cornerstone image: %w", img.ID, toolkit.ErrImageNotLoaded)
	}
	return v, nil
}

// DisplayImage implements toolkit.Toolkit
func (t *Toolkit) DisplayImage(surface toolkit.Surface, img *toolkit.Image, vp *toolkit.Viewport) error {
	el, err := element(surface)
	if err != nil {
		return err
	}
	h, err := handle(img)
	if err != nil {
		return err
	}

	_, err = call(func() js.Value {
		if vp == nil {
			return t.cs.Call("displayImage", el, h)
		}
		obj := t.cs.Call("getDefaultViewportForImage", el, h)
		writeViewport(obj, *vp)
		return t.cs.Call("displayImage", el, h, obj)
	})
	if err != nil {
		return fmt.Errorf("display %s: %w", img.ID, err)
	}
	return nil
}

// GetViewport implements toolkit.Toolkit
func (t *Toolkit) GetViewport(surface toolkit.Surface) (toolkit.Viewport, error) {
	el, err := element(surface)
	if err != nil {
		return toolkit.Viewport{}, err
	}
	obj, err := call(func() js.Value { return t.cs.Call("getViewport", el) })
	if err != nil {
		return toolkit.Viewport{}, fmt.Errorf("get viewport: %w", err)
	}
	if obj.IsUndefined() || obj.IsNull() {
		return toolkit.Viewport{}, toolkit.ErrNoImageDisplayed
	}
	return readViewport(obj), nil
}

// SetViewport implements toolkit.Toolkit. Fields the Go viewport does not
// model (LUTs, colormap) keep their current values.
func (t *Toolkit) SetViewport(surface toolkit.Surface, vp toolkit.Viewport) error {
	el, err := element(surface)
	if err != nil {
		return err
	}
	obj, err := call(func() js.Value { return t.cs.Call("getViewport", el) })
	if err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	if obj.IsUndefined() || obj.IsNull() {
		return toolkit.ErrNoImageDisplayed
	}
	writeViewport(obj, vp)
	if _, err := call(func() js.Value { return t.cs.Call("setViewport", el, obj) }); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	return nil
}

// DefaultViewport implements toolkit.Toolkit
func (t *Toolkit) DefaultViewport(surface toolkit.Surface, img *toolkit.Image) (toolkit.Viewport, error) {
	el, err := element(surface)
	if err != nil {
		return toolkit.Viewport{}, err
	}
	h, err := handle(img)
	if err != nil {
		return toolkit.Viewport{}, err
	}
	obj, err := call(func() js.Value { return t.cs.Call("getDefaultViewportForImage", el, h) })
	if err != nil {
		return toolkit.Viewport{}, fmt.Errorf("default viewport: %w", err)
	}
	return readViewport(obj), nil
}

func readViewport(obj js.Value) toolkit.Viewport {
	vp := toolkit.Viewport{
		Scale:    floatField(obj, "scale"),
		Invert:   boolField(obj, "invert"),
		HFlip:    boolField(obj, "hflip"),
		VFlip:    boolField(obj, "vflip"),
		Rotation: floatField(obj, "rotation"),
	}
	if tr := obj.Get("translation"); tr.Type() == js.TypeObject {
		vp.Translation = toolkit.Translation{X: floatField(tr, "x"), Y: floatField(tr, "y")}
	}
	if voi := obj.Get("voi"); voi.Type() == js.TypeObject {
		vp.VOI = toolkit.VOI{WindowWidth: floatField(voi, "windowWidth"), WindowCenter: floatField(voi, "windowCenter")}
	}
	return vp
}

func writeViewport(obj js.Value, vp toolkit.Viewport) {
	obj.Set("scale", vp.Scale)
	obj.Set("invert", vp.Invert)
	obj.Set("hflip", vp.HFlip)
	obj.Set("vflip", vp.VFlip)
	obj.Set("rotation", vp.Rotation)
	obj.Set("translation", map[string]interface{}{"x": vp.Translation.X, "y": vp.Translation.Y})

	voi := obj.Get("voi")
	if voi.Type() != js.TypeObject {
		voi = js.Global().Get("Object").New()
		obj.Set("voi", voi)
	}
	voi.Set("windowWidth", vp.VOI.WindowWidth)
	voi.Set("windowCenter", vp.VOI.WindowCenter)
}

// AddTool implements toolkit.Toolkit. The tool class is looked up as
// cornerstoneTools.<Name>Tool.
func (t *Toolkit) AddTool(name toolkit.ToolName) error {
	if err := t.available(); err != nil {
		return err
	}
	class := t.tools.Get(string(name) + "Tool")
	if class.IsUndefined() {
		return fmt.Errorf("%sTool: %w", name, toolkit.ErrUnknownTool)
	}
	if !t.registry.Add(name) {
		return nil
	}
	if _, err := call(func() js.Value { return t.tools.Call("addTool", class) }); err != nil {
		return fmt.Errorf("add tool %s: %w", name, err)
	}
	log.Printf("[Cornerstone] Tool %s registered", name)
	return nil
}

// SetToolActive implements toolkit.Toolkit
func (t *Toolkit) SetToolActive(name toolkit.ToolName, mask toolkit.MouseButton) error {
	if err := t.registry.Activate(name, mask); err != nil {
		return err
	}
	opts := map[string]interface{}{"mouseButtonMask": int(mask)}
	if _, err := call(func() js.Value { return t.tools.Call("setToolActive", string(name), opts) }); err != nil {
		return fmt.Errorf("activate %s: %w", name, err)
	}
	return nil
}

// ClearToolState implements toolkit.Toolkit
func (t *Toolkit) ClearToolState(surface toolkit.Surface, name toolkit.ToolName) error {
	if !t.registry.Has(name) {
		return fmt.Errorf("clear %s: %w", name, toolkit.ErrUnknownTool)
	}
	el, err := element(surface)
	if err != nil {
		return err
	}
	if _, err := call(func() js.Value { return t.tools.Call("clearToolState", el, name.StateKey()) }); err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}
	return nil
}

var _ toolkit.Toolkit = (*Toolkit)(nil)

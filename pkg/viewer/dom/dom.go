//go:build js && wasm
// +build js,wasm

package dom

import (
	"log"
	"syscall/js"

	"github.com/recera/dicomview/pkg/viewer"
)

// Elements holds the page elements a viewer uses. A zero js.Value means the
// element is absent; absent elements are skipped.
type Elements struct {
	IDs     IDs
	Image   js.Value
	Status  js.Value
	Play    js.Value
	Width   js.Value
	Center  js.Value
	WLabel  js.Value
	CLabel  js.Value
	Measure js.Value
	Buttons map[string]js.Value
}

// Lookup finds the elements named by ids in the document
func Lookup(ids IDs) Elements {
	doc := js.Global().Get("document")
	get := func(id string) js.Value {
		if id == "" {
			return js.Value{}
		}
		el := doc.Call("getElementById", id)
		if el.IsNull() {
			return js.Value{}
		}
		return el
	}

	el := Elements{
		IDs:     ids,
		Image:   get(ids.Image),
		Status:  get(ids.Status),
		Play:    get(ids.Play),
		Width:   get(ids.WindowWidth),
		Center:  get(ids.WindowCenter),
		WLabel:  get(ids.WidthLabel),
		CLabel:  get(ids.CenterLabel),
		Measure: get(ids.Measurements),
		Buttons: make(map[string]js.Value),
	}
	for _, id := range ids.Buttons() {
		if v := get(id); present(v) {
			el.Buttons[id] = v
		}
	}
	return el
}

func present(v js.Value) bool {
	return !v.IsUndefined() && !v.IsNull()
}

// Surface is the image host element as a toolkit surface
type Surface struct {
	ID    string
	Value js.Value
}

// SurfaceID implements toolkit.Surface
func (s Surface) SurfaceID() string { return s.ID }

// JSValue returns the element
func (s Surface) JSValue() js.Value { return s.Value }

// Surface returns the image host
func (e Elements) Surface() Surface {
	return Surface{ID: e.IDs.Image, Value: e.Image}
}

// View writes viewer state into the page
type View struct {
	el Elements
}

// NewView creates a view over el
func NewView(el Elements) *View {
	return &View{el: el}
}

func setText(v js.Value, text string) {
	if present(v) {
		v.Set("textContent", text)
	}
}

func setValue(v js.Value, text string) {
	if present(v) {
		v.Set("value", text)
	}
}

func value(v js.Value) string {
	if !present(v) {
		return ""
	}
	return v.Get("value").String()
}

// SetStatus implements viewer.View
func (v *View) SetStatus(text string) { setText(v.el.Status, text) }

// SetPlayLabel implements viewer.View
func (v *View) SetPlayLabel(text string) { setText(v.el.Play, text) }

// SetWindowInputs implements viewer.View
func (v *View) SetWindowInputs(width, center string) {
	setValue(v.el.Width, width)
	setValue(v.el.Center, center)
}

// WindowInputs implements viewer.View
func (v *View) WindowInputs() (string, string) {
	return value(v.el.Width), value(v.el.Center)
}

// SetWindowLabels implements viewer.View
func (v *View) SetWindowLabels(width, center string) {
	setText(v.el.WLabel, width)
	setText(v.el.CLabel, center)
}

// SetMeasurements implements viewer.View
func (v *View) SetMeasurements(items []string) {
	list := v.el.Measure
	if !present(list) {
		return
	}
	list.Set("innerHTML", "")
	doc := js.Global().Get("document")
	if len(items) == 0 {
		p := doc.Call("createElement", "p")
		p.Set("textContent", viewer.NoMeasurementsText)
		list.Call("appendChild", p)
		return
	}
	for _, m := range items {
		item := doc.Call("createElement", "div")
		item.Set("className", "measurement-item")
		item.Set("textContent", m)
		list.Call("appendChild", item)
	}
}

var _ viewer.View = (*View)(nil)

// Bind attaches the page's event listeners to a. The returned function
// removes them.
func Bind(a viewer.Actions, el Elements) (release func()) {
	var (
		funcs    []js.Func
		releases []func()
	)
	listen := func(target js.Value, event, name string, fn func(js.Value) error) {
		if !present(target) {
			return
		}
		f := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
			var evt js.Value
			if len(args) > 0 {
				evt = args[0]
			}
			// handlers may block on the toolkit or the socket
			go func() {
				if err := fn(evt); err != nil {
					log.Printf("[DOM] ⚠️  %s %s: %v", name, event, err)
				}
			}()
			return nil
		})
		target.Call("addEventListener", event, f)
		funcs = append(funcs, f)
		releases = append(releases, func() { target.Call("removeEventListener", event, f) })
	}

	for _, b := range el.IDs.Clicks(a) {
		run := b.Run
		listen(el.Buttons[b.ID], "click", b.ID, func(js.Value) error { return run() })
	}
	for _, input := range []js.Value{el.Width, el.Center} {
		listen(input, "input", "window", func(js.Value) error { return a.UpdateWindowLevel() })
	}

	if present(el.Image) {
		wheel := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
			evt := args[0]
			evt.Call("preventDefault")
			dy := evt.Get("deltaY").Float()
			go func() {
				if err := a.HandleWheel(dy); err != nil {
					log.Printf("[DOM] ⚠️  wheel: %v", err)
				}
			}()
			return nil
		})
		// preventDefault needs a non-passive listener
		el.Image.Call("addEventListener", "wheel", wheel, map[string]interface{}{"passive": false})
		funcs = append(funcs, wheel)
		releases = append(releases, func() { el.Image.Call("removeEventListener", "wheel", wheel) })

		listen(el.Image, "dblclick", el.IDs.Image, func(js.Value) error { return a.HandleDoubleClick() })
	}

	return func() {
		for _, r := range releases {
			r()
		}
		for _, f := range funcs {
			f.Release()
		}
	}
}

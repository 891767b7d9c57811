package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/recera/dicomview/pkg/toolkit"
	"github.com/recera/dicomview/pkg/viewer"
)

// Caller sends commands to the client
type Caller interface {
	// Call waits for the reply
	Call(ctx context.Context, op string, args ...string) (string, error)
	// Notify expects no reply
	Notify(op string, args ...string) error
}

// RemoteError is an error reported by the client
type RemoteError struct {
	Op  string
	Msg string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Op, e.Msg)
}

var remoteSentinels = []error{
	toolkit.ErrImageNotLoaded,
	toolkit.ErrSurfaceNotEnabled,
	toolkit.ErrNoImageDisplayed,
	toolkit.ErrUnknownTool,
	toolkit.ErrUnsupported,
	ErrBadCommand,
}

// Unwrap recovers toolkit sentinels from the message text
func (e *RemoteError) Unwrap() error {
	for _, s := range remoteSentinels {
		if strings.Contains(e.Msg, s.Error()) {
			return s
		}
	}
	return nil
}

// LocalCaller executes commands in process, without a connection
type LocalCaller struct {
	Exec *Executor
}

// Call implements Caller
func (l LocalCaller) Call(ctx context.Context, op string, args ...string) (string, error) {
	result, err := l.Exec.Execute(ctx, Command{Seq: 1, Op: op, Args: args})
	if err != nil {
		return "", &RemoteError{Op: op, Msg: err.Error()}
	}
	return result, nil
}

// Notify implements Caller
func (l LocalCaller) Notify(op string, args ...string) error {
	_, err := l.Exec.Execute(context.Background(), Command{Op: op, Args: args})
	return err
}

// RemoteToolkit is a toolkit.Toolkit whose calls run on the client. Image
// metadata returned by loads is kept so GetImage needs no round trip.
type RemoteToolkit struct {
	caller   Caller
	registry *toolkit.Registry

	mu     sync.RWMutex
	images map[string]*toolkit.Image
}

// NewRemoteToolkit creates a toolkit forwarding to caller
func NewRemoteToolkit(caller Caller) *RemoteToolkit {
	return &RemoteToolkit{
		caller:   caller,
		registry: toolkit.NewRegistry(),
		images:   make(map[string]*toolkit.Image),
	}
}

func (r *RemoteToolkit) call(op string, args ...string) (string, error) {
	return r.caller.Call(context.Background(), op, args...)
}

// Enable implements toolkit.Toolkit
func (r *RemoteToolkit) Enable(surface toolkit.Surface) error {
	_, err := r.call(OpEnable, surface.SurfaceID())
	return err
}

// LoadImage implements toolkit.Toolkit
func (r *RemoteToolkit) LoadImage(ctx context.Context, imageID string) (*toolkit.Image, error) {
	raw, err := r.caller.Call(ctx, OpLoad, imageID)
	if err != nil {
		return nil, err
	}
	img := &toolkit.Image{}
	if err := json.Unmarshal([]byte(raw), img); err != nil {
		return nil, fmt.Errorf("decode image %s: %w", imageID, err)
	}
	img.ID = imageID

	r.mu.Lock()
	r.images[imageID] = img
	r.mu.Unlock()
	return img, nil
}

// GetImage implements toolkit.Toolkit
func (r *RemoteToolkit) GetImage(imageID string) (*toolkit.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	img, ok := r.images[imageID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", imageID, toolkit.ErrImageNotLoaded)
	}
	return img, nil
}

// DisplayImage implements toolkit.Toolkit
func (r *RemoteToolkit) DisplayImage(surface toolkit.Surface, img *toolkit.Image, vp *toolkit.Viewport) error {
	raw := ""
	if vp != nil {
		data, err := json.Marshal(vp)
		if err != nil {
			return err
		}
		raw = string(data)
	}
	_, err := r.call(OpDisplay, surface.SurfaceID(), img.ID, raw)
	return err
}

// GetViewport implements toolkit.Toolkit
func (r *RemoteToolkit) GetViewport(surface toolkit.Surface) (toolkit.Viewport, error) {
	return r.viewport(OpViewportGet, surface.SurfaceID())
}

// SetViewport implements toolkit.Toolkit
func (r *RemoteToolkit) SetViewport(surface toolkit.Surface, vp toolkit.Viewport) error {
	data, err := json.Marshal(vp)
	if err != nil {
		return err
	}
	_, err = r.call(OpViewportSet, surface.SurfaceID(), string(data))
	return err
}

// DefaultViewport implements toolkit.Toolkit
func (r *RemoteToolkit) DefaultViewport(surface toolkit.Surface, img *toolkit.Image) (toolkit.Viewport, error) {
	return r.viewport(OpViewportDefault, surface.SurfaceID(), img.ID)
}

func (r *RemoteToolkit) viewport(op string, args ...string) (toolkit.Viewport, error) {
	raw, err := r.call(op, args...)
	if err != nil {
		return toolkit.Viewport{}, err
	}
	var vp toolkit.Viewport
	if err := json.Unmarshal([]byte(raw), &vp); err != nil {
		return toolkit.Viewport{}, fmt.Errorf("decode viewport: %w", err)
	}
	return vp, nil
}

// AddTool implements toolkit.Toolkit. Each tool is sent to the client once.
func (r *RemoteToolkit) AddTool(name toolkit.ToolName) error {
	if r.registry.Has(name) {
		return nil
	}
	if _, err := r.call(OpToolAdd, string(name)); err != nil {
		return err
	}
	r.registry.Add(name)
	return nil
}

// SetToolActive implements toolkit.Toolkit
func (r *RemoteToolkit) SetToolActive(name toolkit.ToolName, mask toolkit.MouseButton) error {
	if err := r.registry.Activate(name, mask); err != nil {
		return err
	}
	_, err := r.call(OpToolActivate, string(name), strconv.Itoa(int(mask)))
	return err
}

// ClearToolState implements toolkit.Toolkit
func (r *RemoteToolkit) ClearToolState(surface toolkit.Surface, name toolkit.ToolName) error {
	_, err := r.call(OpToolClear, surface.SurfaceID(), string(name))
	return err
}

// RemoteView is a viewer.View mirrored on the client. The window inputs are
// cached from the last values the server set or the client reported.
type RemoteView struct {
	caller Caller

	mu     sync.Mutex
	width  string
	center string
}

// NewRemoteView creates a view forwarding to caller
func NewRemoteView(caller Caller) *RemoteView {
	return &RemoteView{caller: caller}
}

func (v *RemoteView) notify(op string, args ...string) {
	if err := v.caller.Notify(op, args...); err != nil && !errors.Is(err, ErrSessionClosed) && debugLog != nil {
		debugLog("[Live] View update", op, "failed:", err.Error())
	}
}

// SetStatus implements viewer.View
func (v *RemoteView) SetStatus(text string) { v.notify(OpViewStatus, text) }

// SetPlayLabel implements viewer.View
func (v *RemoteView) SetPlayLabel(text string) { v.notify(OpViewPlay, text) }

// SetWindowInputs implements viewer.View
func (v *RemoteView) SetWindowInputs(width, center string) {
	v.setInputs(width, center)
	v.notify(OpViewInputs, width, center)
}

// WindowInputs implements viewer.View
func (v *RemoteView) WindowInputs() (string, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width, v.center
}

func (v *RemoteView) setInputs(width, center string) {
	v.mu.Lock()
	v.width, v.center = width, center
	v.mu.Unlock()
}

// SetWindowLabels implements viewer.View
func (v *RemoteView) SetWindowLabels(width, center string) {
	v.notify(OpViewLabels, width, center)
}

// SetMeasurements implements viewer.View
func (v *RemoteView) SetMeasurements(items []string) {
	v.notify(OpViewMeasurements, items...)
}

var (
	_ toolkit.Toolkit = (*RemoteToolkit)(nil)
	_ viewer.View     = (*RemoteView)(nil)
)

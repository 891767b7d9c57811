package native

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/recera/dicomview/internal/cache"
	"github.com/recera/dicomview/pkg/toolkit"
	"github.com/recera/dicomview/pkg/viewer"
)

const surface = toolkit.SurfaceID("dicomImage")

func stubLoader(calls *int32) LoaderFunc {
	return func(ctx context.Context, source string) (*toolkit.Image, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		if filepath.Base(source) == "broken.dcm" {
			return nil, ErrNotDICOM
		}
		return &toolkit.Image{Rows: 512, Columns: 512, WindowWidth: 350, WindowCenter: 50}, nil
	}
}

func TestToolkit_SurfaceMustBeEnabled(t *testing.T) {
	tk := New(stubLoader(nil))
	img := &toolkit.Image{ID: "wadouri:a"}

	if err := tk.DisplayImage(surface, img, nil); !errors.Is(err, toolkit.ErrSurfaceNotEnabled) {
		t.Errorf("DisplayImage error = %v", err)
	}
	if _, err := tk.GetViewport(surface); !errors.Is(err, toolkit.ErrSurfaceNotEnabled) {
		t.Errorf("GetViewport error = %v", err)
	}
	if err := tk.ClearToolState(surface, toolkit.ToolLength); !errors.Is(err, toolkit.ErrSurfaceNotEnabled) {
		t.Errorf("ClearToolState error = %v", err)
	}
}

func TestToolkit_LoadImageCaches(t *testing.T) {
	var calls int32
	tk := New(stubLoader(&calls))

	for i := 0; i < 3; i++ {
		img, err := tk.LoadImage(context.Background(), "wadouri:/files/e1/a.dcm")
		if err != nil {
			t.Fatalf("LoadImage failed: %v", err)
		}
		if img.ID != "wadouri:/files/e1/a.dcm" {
			t.Errorf("image id = %q", img.ID)
		}
	}
	if calls != 1 {
		t.Errorf("loader called %d times, want 1", calls)
	}

	if _, err := tk.GetImage("wadouri:/files/e1/other.dcm"); !errors.Is(err, toolkit.ErrImageNotLoaded) {
		t.Errorf("GetImage error = %v", err)
	}
	if _, err := tk.LoadImage(context.Background(), "wadouri:/files/e1/broken.dcm"); !errors.Is(err, ErrNotDICOM) {
		t.Errorf("broken load error = %v", err)
	}
}

func TestToolkit_ViewportLifecycle(t *testing.T) {
	tk := New(stubLoader(nil))
	tk.Enable(surface)

	if _, err := tk.GetViewport(surface); !errors.Is(err, toolkit.ErrNoImageDisplayed) {
		t.Fatalf("GetViewport before display error = %v", err)
	}

	first, _ := tk.LoadImage(context.Background(), "wadouri:a.dcm")
	second, _ := tk.LoadImage(context.Background(), "wadouri:b.dcm")

	if err := tk.DisplayImage(surface, first, nil); err != nil {
		t.Fatalf("DisplayImage failed: %v", err)
	}
	vp, _ := tk.GetViewport(surface)
	if vp.Scale != 1 || vp.VOI.WindowWidth != 350 || vp.VOI.WindowCenter != 50 {
		t.Errorf("initial viewport = %+v", vp)
	}

	vp.Scale = 2
	tk.SetViewport(surface, vp)
	tk.DisplayImage(surface, second, nil)
	if got, _ := tk.GetViewport(surface); got.Scale != 2 {
		t.Errorf("viewport should survive image change, got %+v", got)
	}
	if shown, ok := tk.Displayed(surface); !ok || shown != second {
		t.Error("second image should be displayed")
	}

	def, _ := tk.DefaultViewport(surface, second)
	tk.DisplayImage(surface, second, &def)
	if got, _ := tk.GetViewport(surface); got.Scale != 1 {
		t.Errorf("explicit viewport not applied: %+v", got)
	}
}

func TestToolkit_DefaultViewportFallback(t *testing.T) {
	tk := New(stubLoader(nil))
	tk.Enable(surface)

	vp, err := tk.DefaultViewport(surface, &toolkit.Image{})
	if err != nil {
		t.Fatal(err)
	}
	if vp.VOI.WindowWidth != FallbackWindowWidth || vp.VOI.WindowCenter != FallbackWindowCenter {
		t.Errorf("fallback VOI = %+v", vp.VOI)
	}
}

func TestToolkit_ToolState(t *testing.T) {
	tk := New(stubLoader(nil))
	tk.Enable(surface)

	if err := tk.AddToolState(surface, toolkit.ToolLength, "12.5 mm"); !errors.Is(err, toolkit.ErrUnknownTool) {
		t.Errorf("state for unregistered tool error = %v", err)
	}

	tk.AddTool(toolkit.ToolLength)
	tk.AddTool(toolkit.ToolAngle)
	tk.AddToolState(surface, toolkit.ToolLength, "12.5 mm")
	tk.AddToolState(surface, toolkit.ToolAngle, "42°")

	if err := tk.ClearToolState(surface, toolkit.ToolLength); err != nil {
		t.Fatal(err)
	}
	if got := tk.ToolState(surface, toolkit.ToolLength); len(got) != 0 {
		t.Errorf("length state after clear = %v", got)
	}
	if got := tk.ToolState(surface, toolkit.ToolAngle); len(got) != 1 {
		t.Errorf("angle state = %v", got)
	}

	if err := tk.SetToolActive(toolkit.ToolAngle, toolkit.MouseLeft); err != nil {
		t.Fatal(err)
	}
	if name, ok := tk.ActiveTool(toolkit.MouseLeft); !ok || name != toolkit.ToolAngle {
		t.Errorf("active tool = %v, %v", name, ok)
	}
}

func TestImageFromDataset(t *testing.T) {
	elems := []struct {
		t    tag.Tag
		data any
	}{
		{tag.Rows, []int{256}},
		{tag.Columns, []int{320}},
		{tag.WindowCenter, []string{"40", "300"}},
		{tag.WindowWidth, []string{" 400.5", "1500"}},
		{tag.SOPInstanceUID, []string{"1.2.826.0.1.3680043.2.1125.1"}},
		{tag.InstanceNumber, []string{"7"}},
	}

	ds := &dicom.Dataset{}
	for _, e := range elems {
		el, err := dicom.NewElement(e.t, e.data)
		if err != nil {
			t.Fatalf("NewElement(%v): %v", e.t, err)
		}
		ds.Elements = append(ds.Elements, el)
	}

	img := imageFromDataset(ds)
	if img.Rows != 256 || img.Columns != 320 {
		t.Errorf("dimensions = %dx%d", img.Rows, img.Columns)
	}
	if img.WindowWidth != 400.5 || img.WindowCenter != 40 {
		t.Errorf("window = %v/%v", img.WindowWidth, img.WindowCenter)
	}
	if img.SOPInstanceUID != "1.2.826.0.1.3680043.2.1125.1" || img.InstanceNumber != 7 {
		t.Errorf("identity = %q #%d", img.SOPInstanceUID, img.InstanceNumber)
	}

	empty := imageFromDataset(&dicom.Dataset{})
	if empty.WindowWidth != 0 || empty.Rows != 0 {
		t.Errorf("empty dataset produced %+v", empty)
	}
}

func TestDecode_RejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("definitely not a DICOM file")); !errors.Is(err, ErrNotDICOM) {
		t.Errorf("Decode error = %v", err)
	}
}

func TestSourceLoader_HTTPWithCache(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("Accept") != "application/dicom" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		switch r.URL.Path {
		case "/files/e1/IM0001.dcm":
			w.Header().Set("Content-Type", "application/dicom")
			fmt.Fprint(w, "payload-1")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := cache.New(cache.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	base, _ := url.Parse(srv.URL)
	loader := &SourceLoader{Cache: c, BaseURL: base}

	for i := 0; i < 2; i++ {
		data, err := loader.Fetch(context.Background(), "/files/e1/IM0001.dcm")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if string(data) != "payload-1" {
			t.Errorf("Fetch = %q", data)
		}
	}
	if hits != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}

	if _, err := loader.Fetch(context.Background(), srv.URL+"/files/e1/missing.dcm"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestSourceLoader_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	loader := &SourceLoader{}
	if _, err := loader.Fetch(ctx, srv.URL+"/slow.dcm"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Fetch error = %v", err)
	}
}

func TestSourceLoader_Files(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "IM0001.dcm")
	os.WriteFile(path, []byte("local payload"), 0644)

	loader := &SourceLoader{MaxBytes: 64}
	for _, source := range []string{path, "file://" + path} {
		data, err := loader.Fetch(context.Background(), source)
		if err != nil || string(data) != "local payload" {
			t.Errorf("Fetch(%q) = %q, %v", source, data, err)
		}
	}

	os.WriteFile(path, make([]byte, 65), 0644)
	if _, err := loader.Fetch(context.Background(), path); err == nil {
		t.Error("expected size limit error")
	}
	if _, err := loader.Fetch(context.Background(), "ftp://host/a.dcm"); err == nil {
		t.Error("expected unsupported scheme error")
	}
}

func TestToolkit_DrivesViewer(t *testing.T) {
	tk := New(stubLoader(nil))
	view := viewer.NewMemoryView()
	ctrl := viewer.New(tk, surface, view, nil)
	defer ctrl.Close()

	if err := ctrl.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if name, _ := tk.ActiveTool(toolkit.MouseRight); name != toolkit.ToolPan {
		t.Errorf("right button tool = %v", name)
	}

	ctrl.LoadImages([]string{"/files/e1/a.dcm", "/files/e1/broken.dcm", "/files/e1/c.dcm"})
	deadline := time.Now().Add(2 * time.Second)
	for ctrl.State().Loaded < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("loads did not finish: %+v", ctrl.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	if shown, ok := tk.Displayed(surface); !ok || shown.ID != "wadouri:/files/e1/a.dcm" {
		t.Errorf("displayed = %+v", shown)
	}

	ctrl.ZoomIn()
	if vp, _ := tk.GetViewport(surface); vp.Scale != 1.2 {
		t.Errorf("scale after zoom = %v", vp.Scale)
	}

	ctrl.Preset(viewer.PresetBone.Width, viewer.PresetBone.Center)
	if vp, _ := tk.GetViewport(surface); vp.VOI.WindowWidth != 2000 || vp.VOI.WindowCenter != 400 {
		t.Errorf("VOI after preset = %+v", vp.VOI)
	}

	tk.AddToolState(surface, toolkit.ToolLength, "10 mm")
	ctrl.ClearMeasurements()
	if got := tk.ToolState(surface, toolkit.ToolLength); len(got) != 0 {
		t.Errorf("length state not cleared: %v", got)
	}
}

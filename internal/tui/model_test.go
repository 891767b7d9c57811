package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/recera/dicomview/pkg/toolkit"
	"github.com/recera/dicomview/pkg/toolkit/native"
	"github.com/recera/dicomview/pkg/viewer"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T, n int) (Model, *viewer.Controller, *native.Toolkit) {
	t.Helper()
	tk := native.New(native.LoaderFunc(func(ctx context.Context, url string) (*toolkit.Image, error) {
		return &toolkit.Image{Rows: 8, Columns: 8, WindowWidth: 400, WindowCenter: 40}, nil
	}))
	surface := toolkit.SurfaceID("terminal")
	view := viewer.NewMemoryView()
	ctrl := viewer.New(tk, surface, view, &viewer.Options{CineInterval: time.Hour})
	t.Cleanup(ctrl.Close)

	if err := ctrl.Init(); err != nil {
		t.Fatal(err)
	}
	var urls []string
	for i := 0; i < n; i++ {
		urls = append(urls, "/study/"+string(rune('a'+i))+".dcm")
	}
	ctrl.LoadImages(urls)

	deadline := time.Now().Add(3 * time.Second)
	for ctrl.State().Loaded < n {
		if time.Now().After(deadline) {
			t.Fatal("images did not load")
		}
		time.Sleep(5 * time.Millisecond)
	}

	m := NewModel("test", ctrl, view, func() (toolkit.Viewport, error) { return tk.GetViewport(surface) })
	return m, ctrl, tk
}

func press(m Model, msgs ...tea.KeyMsg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestModel_LoadingSettlesOnFailure(t *testing.T) {
	tk := native.New(native.LoaderFunc(func(ctx context.Context, url string) (*toolkit.Image, error) {
		if strings.HasSuffix(url, "b.dcm") {
			return nil, errors.New("truncated file")
		}
		return &toolkit.Image{Rows: 8, Columns: 8, WindowWidth: 400, WindowCenter: 40}, nil
	}))
	surface := toolkit.SurfaceID("terminal")
	view := viewer.NewMemoryView()
	ctrl := viewer.New(tk, surface, view, &viewer.Options{CineInterval: time.Hour})
	t.Cleanup(ctrl.Close)
	if err := ctrl.Init(); err != nil {
		t.Fatal(err)
	}
	ctrl.LoadImages([]string{"/study/a.dcm", "/study/b.dcm", "/study/c.dcm"})

	deadline := time.Now().Add(3 * time.Second)
	for st := ctrl.State(); st.Loaded+st.Failed < 3; st = ctrl.State() {
		if time.Now().After(deadline) {
			t.Fatal("loads did not settle")
		}
		time.Sleep(5 * time.Millisecond)
	}

	m := NewModel("test", ctrl, view, func() (toolkit.Viewport, error) { return tk.GetViewport(surface) })
	m.refresh()
	if m.loading() {
		t.Errorf("still loading with state %+v", m.state)
	}
	if strings.Contains(m.View(), "loading 2/3") {
		t.Errorf("loading indicator rendered after loads settled:\n%s", m.View())
	}
}

func TestModel_Navigation(t *testing.T) {
	m, ctrl, _ := newTestModel(t, 3)

	m = press(m, runes("n"), tea.KeyMsg{Type: tea.KeyRight})
	if ctrl.State().Index != 2 {
		t.Errorf("index = %d, want 2", ctrl.State().Index)
	}
	m = press(m, runes("p"), runes("p"), runes("p"))
	if ctrl.State().Index != 2 {
		t.Errorf("index after wrap = %d, want 2", ctrl.State().Index)
	}
	if !strings.Contains(m.View(), "Image 3/3") {
		t.Errorf("view missing status:\n%s", m.View())
	}
}

func TestModel_PlayToggle(t *testing.T) {
	m, ctrl, _ := newTestModel(t, 2)

	m = press(m, tea.KeyMsg{Type: tea.KeySpace})
	if !ctrl.State().Playing {
		t.Fatal("space should start cine")
	}
	if m.snap.PlayLabel != viewer.PauseLabel {
		t.Errorf("play label = %q", m.snap.PlayLabel)
	}
	press(m, tea.KeyMsg{Type: tea.KeySpace})
	if ctrl.State().Playing {
		t.Error("second space should stop cine")
	}
}

func TestModel_WindowAndZoom(t *testing.T) {
	m, ctrl, tk := newTestModel(t, 1)

	m = press(m, runes("2"))
	if st := ctrl.State(); st.WindowWidth != 2000 || st.WindowCenter != 400 {
		t.Errorf("bone preset state = %+v", st)
	}

	m = press(m, runes("]"), runes("{"))
	if st := ctrl.State(); st.WindowWidth != 2050 || st.WindowCenter != 390 {
		t.Errorf("nudged window = %v/%v", st.WindowWidth, st.WindowCenter)
	}

	m = press(m, runes("+"))
	vp, _ := tk.GetViewport(toolkit.SurfaceID("terminal"))
	if vp.Scale < 1.19 || vp.Scale > 1.21 {
		t.Errorf("scale = %v", vp.Scale)
	}
	if !strings.Contains(m.View(), "scale 1.20") {
		t.Errorf("viewport line missing:\n%s", m.View())
	}

	m = press(m, runes("r"))
	if st := ctrl.State(); st.Scale != 1 || st.WindowWidth != 400 {
		t.Errorf("reset state = %+v", st)
	}
}

func TestModel_Tools(t *testing.T) {
	m, _, tk := newTestModel(t, 1)

	m = press(m, runes("L"))
	if name, _ := tk.ActiveTool(toolkit.MouseLeft); name != toolkit.ToolLength {
		t.Errorf("left button tool = %v", name)
	}
	if m.tool != toolkit.ToolLength {
		t.Errorf("model tool = %v", m.tool)
	}
	m = press(m, runes("c"))
	if m.lastErr != nil {
		t.Errorf("clear: %v", m.lastErr)
	}
	if !strings.Contains(m.View(), viewer.NoMeasurementsText) {
		t.Error("measurement placeholder not rendered")
	}
}

func TestModel_Quit(t *testing.T) {
	m, _, _ := newTestModel(t, 1)

	next, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
	if next.(Model).View() != "" {
		t.Error("quitting model should render nothing")
	}
}

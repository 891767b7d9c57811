// Package tui is the terminal front end of the viewer. It drives a viewer
// through its actions and renders the state a MemoryView collects.
package tui

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/recera/dicomview/pkg/toolkit"
	"github.com/recera/dicomview/pkg/viewer"
)

// refreshInterval is how often the model polls the viewer for changes made
// off the UI goroutine (loads, cine frames)
const refreshInterval = 100 * time.Millisecond

// Window steps of the bracket keys
const (
	widthStep  = 50
	centerStep = 10
)

// Viewer is what the model drives
type Viewer interface {
	viewer.Actions
	State() viewer.State
}

// ViewportFunc reads the viewport currently shown
type ViewportFunc func() (toolkit.Viewport, error)

// Model is the bubbletea model of the terminal viewer
type Model struct {
	viewer   Viewer
	view     *viewer.MemoryView
	viewport ViewportFunc
	title    string

	keys    KeyMap
	help    help.Model
	spinner spinner.Model

	width    int
	height   int
	state    viewer.State
	snap     viewer.ViewSnapshot
	vp       *toolkit.Viewport
	tool     toolkit.ToolName
	lastErr  error
	showHelp bool
	quitting bool
}

type tickMsg time.Time

// NewModel creates a model for v, which reflects into view
func NewModel(title string, v Viewer, view *viewer.MemoryView, viewport ViewportFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	m := Model{
		viewer:   v,
		view:     view,
		viewport: viewport,
		title:    title,
		keys:     DefaultKeyMap,
		help:     help.New(),
		spinner:  s,
		tool:     toolkit.ToolWwwc,
	}
	m.refresh()
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) refresh() {
	m.state = m.viewer.State()
	m.snap = m.view.Snapshot()
	m.vp = nil
	if m.viewport != nil {
		if vp, err := m.viewport(); err == nil {
			m.vp = &vp
		}
	}
}

// loading reports whether some load has neither succeeded nor failed yet
func (m Model) loading() bool {
	return m.state.Loaded+m.state.Failed < len(m.state.ImageIDs)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		if key.Matches(msg, m.keys.Help) {
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
			return m, nil
		}
		m.lastErr = m.handleKey(msg)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.refresh()
		return m, tick()
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) error {
	v := m.viewer
	switch {
	case key.Matches(msg, m.keys.Next):
		return v.NextImage()
	case key.Matches(msg, m.keys.Prev):
		return v.PrevImage()
	case key.Matches(msg, m.keys.Play):
		if m.state.Playing {
			v.StopCine()
		} else {
			v.PlayCine()
		}
	case key.Matches(msg, m.keys.ZoomIn):
		return v.ZoomIn()
	case key.Matches(msg, m.keys.ZoomOut):
		return v.ZoomOut()
	case key.Matches(msg, m.keys.Reset):
		return v.ResetViewport()
	case key.Matches(msg, m.keys.SoftTissue):
		return v.Preset(viewer.PresetSoftTissue.Width, viewer.PresetSoftTissue.Center)
	case key.Matches(msg, m.keys.Bone):
		return v.Preset(viewer.PresetBone.Width, viewer.PresetBone.Center)
	case key.Matches(msg, m.keys.Lung):
		return v.Preset(viewer.PresetLung.Width, viewer.PresetLung.Center)
	case key.Matches(msg, m.keys.WidthDown):
		return m.nudgeWindow(-widthStep, 0)
	case key.Matches(msg, m.keys.WidthUp):
		return m.nudgeWindow(widthStep, 0)
	case key.Matches(msg, m.keys.CenterDown):
		return m.nudgeWindow(0, -centerStep)
	case key.Matches(msg, m.keys.CenterUp):
		return m.nudgeWindow(0, centerStep)
	case key.Matches(msg, m.keys.Clear):
		return v.ClearMeasurements()
	case key.Matches(msg, m.keys.Pan):
		return m.activate(toolkit.ToolPan)
	case key.Matches(msg, m.keys.Length):
		return m.activate(toolkit.ToolLength)
	case key.Matches(msg, m.keys.Angle):
		return m.activate(toolkit.ToolAngle)
	}
	return nil
}

// nudgeWindow edits the window inputs the way a user typing into them
// would, then commits them
func (m *Model) nudgeWindow(dw, dc int) error {
	w, c := m.view.WindowInputs()
	wi, err := strconv.Atoi(w)
	if err != nil {
		wi = int(m.state.WindowWidth)
	}
	ci, err := strconv.Atoi(c)
	if err != nil {
		ci = int(m.state.WindowCenter)
	}
	if wi+dw >= 1 {
		wi += dw
	}
	m.view.SetWindowInputs(strconv.Itoa(wi), strconv.Itoa(ci+dc))
	return m.viewer.UpdateWindowLevel()
}

func (m *Model) activate(name toolkit.ToolName) error {
	if err := m.viewer.ActivateTool(name); err != nil {
		return err
	}
	m.tool = name
	return nil
}

// View implements tea.Model
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("🩻 " + m.title))
	b.WriteString("\n")

	status := m.snap.Status
	if status == "" {
		status = "Waiting for images"
	}
	statusLine := statusStyle.Render(status)
	if strings.HasPrefix(status, "❌") {
		statusLine = errorStyle.Render(status)
	}
	if m.loading() {
		statusLine += " " + m.spinner.View() + mutedStyle.Render(fmt.Sprintf(" loading %d/%d", m.state.Loaded, len(m.state.ImageIDs)))
	}
	b.WriteString(statusLine + "\n\n")

	b.WriteString(boxStyle.Render(m.renderPanel()))
	b.WriteString("\n")

	if m.lastErr != nil {
		b.WriteString(errorStyle.Render("⚠️  "+m.lastErr.Error()) + "\n")
	}
	b.WriteString(footerStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) renderPanel() string {
	rows := []string{
		label("Cine") + m.snap.PlayLabel,
		label("Window") + fmt.Sprintf("W %s  C %s", valueStyle.Render(m.snap.WidthLabel), valueStyle.Render(m.snap.CenterLabel)),
		label("Tool") + string(m.tool),
	}
	if m.vp != nil {
		rows = append(rows, label("Viewport")+fmt.Sprintf("scale %.2f  pan %.0f,%.0f  voi %s/%s",
			m.vp.Scale, m.vp.Translation.X, m.vp.Translation.Y,
			strconv.FormatFloat(m.vp.VOI.WindowWidth, 'f', -1, 64),
			strconv.FormatFloat(m.vp.VOI.WindowCenter, 'f', -1, 64)))
	}
	if n := len(m.state.ImageIDs); n > 0 {
		rows = append(rows, label("Source")+mutedStyle.Render(toolkit.SourceURL(m.state.ImageIDs[m.state.Index])))
	}

	rows = append(rows, "", subtitleStyle.Render("Measurements"))
	if len(m.snap.Measurements) == 0 {
		rows = append(rows, mutedStyle.Render(viewer.NoMeasurementsText))
	} else {
		for _, item := range m.snap.Measurements {
			rows = append(rows, "• "+item)
		}
	}
	return strings.Join(rows, "\n")
}

func label(s string) string {
	return labelStyle.Render(s)
}

// Run starts the terminal viewer and blocks until the user quits
func Run(m Model) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("not running in a terminal")
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

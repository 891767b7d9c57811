package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the viewer shortcuts
type KeyMap struct {
	Next       key.Binding
	Prev       key.Binding
	Play       key.Binding
	ZoomIn     key.Binding
	ZoomOut    key.Binding
	Reset      key.Binding
	SoftTissue key.Binding
	Bone       key.Binding
	Lung       key.Binding
	WidthDown  key.Binding
	WidthUp    key.Binding
	CenterDown key.Binding
	CenterUp   key.Binding
	Clear      key.Binding
	Pan        key.Binding
	Length     key.Binding
	Angle      key.Binding
	Help       key.Binding
	Quit       key.Binding
}

var DefaultKeyMap = KeyMap{
	Next: key.NewBinding(
		key.WithKeys("right", "n"),
		key.WithHelp("→/n", "next"),
	),
	Prev: key.NewBinding(
		key.WithKeys("left", "p"),
		key.WithHelp("←/p", "prev"),
	),
	Play: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "play/stop"),
	),
	ZoomIn: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "zoom in"),
	),
	ZoomOut: key.NewBinding(
		key.WithKeys("-"),
		key.WithHelp("-", "zoom out"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset"),
	),
	SoftTissue: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "soft tissue"),
	),
	Bone: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "bone"),
	),
	Lung: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "lung"),
	),
	WidthDown: key.NewBinding(
		key.WithKeys("["),
		key.WithHelp("[", "width -"),
	),
	WidthUp: key.NewBinding(
		key.WithKeys("]"),
		key.WithHelp("]", "width +"),
	),
	CenterDown: key.NewBinding(
		key.WithKeys("{"),
		key.WithHelp("{", "center -"),
	),
	CenterUp: key.NewBinding(
		key.WithKeys("}"),
		key.WithHelp("}", "center +"),
	),
	Clear: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "clear measurements"),
	),
	Pan: key.NewBinding(
		key.WithKeys("P"),
		key.WithHelp("P", "pan"),
	),
	Length: key.NewBinding(
		key.WithKeys("L"),
		key.WithHelp("L", "length"),
	),
	Angle: key.NewBinding(
		key.WithKeys("A"),
		key.WithHelp("A", "angle"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "q"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Play, k.Reset, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.Play, k.ZoomIn, k.ZoomOut, k.Reset},
		{k.SoftTissue, k.Bone, k.Lung, k.WidthDown, k.WidthUp, k.CenterDown, k.CenterUp},
		{k.Pan, k.Length, k.Angle, k.Clear, k.Help, k.Quit},
	}
}

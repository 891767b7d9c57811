package live

import "errors"

// MessageType is the first byte of every frame
type MessageType uint8

const (
	FrameEvent   MessageType = 0x01 // client -> server
	FrameControl MessageType = 0x02 // both ways
	FrameCommand MessageType = 0x03 // server -> client
	FrameReply   MessageType = 0x04 // client -> server
)

// EventType is a user action forwarded by the client
type EventType uint8

const (
	EventPlay        EventType = 0x01
	EventStop        EventType = 0x02
	EventPrev        EventType = 0x03
	EventNext        EventType = 0x04
	EventZoomIn      EventType = 0x05
	EventZoomOut     EventType = 0x06
	EventReset       EventType = 0x07
	EventPan         EventType = 0x08
	EventLength      EventType = 0x09
	EventAngle       EventType = 0x0A
	EventClear       EventType = 0x0B
	EventWindowInput EventType = 0x0C // args: width, center as typed
	EventPreset      EventType = 0x0D // args: width, center
	EventWheel       EventType = 0x0E // args: deltaY
	EventDoubleClick EventType = 0x0F
)

var eventNames = map[EventType]string{
	EventPlay:        "play",
	EventStop:        "stop",
	EventPrev:        "prev",
	EventNext:        "next",
	EventZoomIn:      "zoom-in",
	EventZoomOut:     "zoom-out",
	EventReset:       "reset",
	EventPan:         "pan",
	EventLength:      "length",
	EventAngle:       "angle",
	EventClear:       "clear",
	EventWindowInput: "window-input",
	EventPreset:      "preset",
	EventWheel:       "wheel",
	EventDoubleClick: "dblclick",
}

func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

// Event is a user action forwarded by the client
type Event struct {
	Type EventType
	Args []string
}

// Command ops executed by the client
const (
	OpEnable           = "enable"
	OpLoad             = "load"
	OpDisplay          = "display"
	OpViewportGet      = "viewport.get"
	OpViewportSet      = "viewport.set"
	OpViewportDefault  = "viewport.default"
	OpToolAdd          = "tool.add"
	OpToolActivate     = "tool.activate"
	OpToolClear        = "tool.clear"
	OpViewStatus       = "view.status"
	OpViewPlay         = "view.play"
	OpViewInputs       = "view.inputs"
	OpViewLabels       = "view.labels"
	OpViewMeasurements = "view.measurements"
)

// Command asks the client to call its toolkit or view. Seq 0 expects no reply.
type Command struct {
	Seq  uint64
	Op   string
	Args []string
}

// Reply answers the command with the same Seq
type Reply struct {
	Seq    uint64
	Err    string
	Result string
}

// Control is a HELLO or PING/PONG frame
type Control struct {
	Name string
	Args []string
}

// Control frame names
const (
	ControlHello = "HELLO"
	ControlPing  = "PING"
	ControlPong  = "PONG"
)

var (
	// ErrSessionClosed fails calls on a session whose connection is gone
	ErrSessionClosed = errors.New("live session closed")
	// ErrCallTimeout fails calls the client did not answer in time
	ErrCallTimeout = errors.New("live call timed out")
	// ErrBadCommand is returned for commands with missing or malformed arguments
	ErrBadCommand = errors.New("malformed command")
)

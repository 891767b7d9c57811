//go:build js && wasm
// +build js,wasm

package live

import (
	"context"
	"errors"
	"log"
	"syscall/js"
)

// Client connects the page to a live session. Commands from the server run
// against the executor's toolkit and view; user actions go back as events.
type Client struct {
	ws      js.Value
	url     string
	exec    *Executor
	frames  chan []byte
	funcs   []js.Func
	session string
	onReady func(sessionID string)
	onClose func()
}

// NewClient creates a new live protocol client
func NewClient(url string, exec *Executor) *Client {
	return &Client{
		url:    url,
		exec:   exec,
		frames: make(chan []byte, 256),
	}
}

// Connect opens the websocket
func (c *Client) Connect() error {
	ws := js.Global().Get("WebSocket")
	if ws.IsUndefined() {
		return errors.New("WebSocket not available")
	}
	c.ws = ws.New(c.url)
	c.ws.Set("binaryType", "arraybuffer")

	c.on("onopen", func(js.Value) {
		log.Println("[Live Client] Connected")
		c.sendFrame(EncodeControl(Control{Name: ControlHello}))
	})
	c.on("onmessage", func(event js.Value) {
		c.frames <- bytesFromJS(event.Get("data"))
	})
	c.on("onerror", func(js.Value) {
		log.Println("[Live Client] WebSocket error")
	})
	c.on("onclose", func(event js.Value) {
		log.Printf("[Live Client] Disconnected (code %d)", event.Get("code").Int())
		close(c.frames)
		if c.onClose != nil {
			c.onClose()
		}
	})

	go c.run()
	return nil
}

func (c *Client) on(name string, fn func(js.Value)) {
	f := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		var event js.Value
		if len(args) > 0 {
			event = args[0]
		}
		fn(event)
		return nil
	})
	c.funcs = append(c.funcs, f)
	c.ws.Set(name, f)
}

// run handles frames off the JS event loop. Loads run in their own
// goroutine because they wait on the toolkit's promise.
func (c *Client) run() {
	for data := range c.frames {
		if len(data) == 0 {
			continue
		}
		switch MessageType(data[0]) {
		case FrameCommand:
			if len(data) > 1 && isLoad(data) {
				go c.execute(data)
			} else {
				c.execute(data)
			}
		case FrameControl:
			c.handleControl(data)
		}
	}
}

func isLoad(data []byte) bool {
	cmd, err := DecodeCommand(data)
	return err == nil && cmd.Op == OpLoad
}

func (c *Client) execute(data []byte) {
	reply, err := c.exec.HandleFrame(context.Background(), data)
	if err != nil {
		log.Printf("[Live Client] Bad command: %v", err)
		return
	}
	if reply != nil {
		c.sendFrame(reply)
	}
}

func (c *Client) handleControl(data []byte) {
	ctl, err := DecodeControl(data)
	if err != nil {
		log.Printf("[Live Client] Bad control frame: %v", err)
		return
	}
	switch ctl.Name {
	case ControlHello:
		if len(ctl.Args) > 0 {
			c.session = ctl.Args[0]
		}
		log.Printf("[Live Client] Session %s", c.session)
		if c.onReady != nil {
			c.onReady(c.session)
		}
	case ControlPing:
		c.sendFrame(EncodeControl(Control{Name: ControlPong}))
	}
}

// SendEvent sends an event to the server
func (c *Client) SendEvent(evt Event) error {
	return c.sendFrame(EncodeEvent(evt))
}

func (c *Client) sendFrame(data []byte) error {
	if c.ws.IsUndefined() || c.ws.IsNull() {
		return ErrSessionClosed
	}
	// WebSocket.OPEN
	if c.ws.Get("readyState").Int() != 1 {
		return ErrSessionClosed
	}
	c.ws.Call("send", bytesToJS(data))
	return nil
}

// Actions returns viewer actions that forward to the server
func (c *Client) Actions() *RemoteActions {
	return &RemoteActions{Send: c.SendEvent, View: c.exec.View}
}

// Close closes the WebSocket connection
func (c *Client) Close() {
	if !c.ws.IsNull() && !c.ws.IsUndefined() {
		c.ws.Call("close")
	}
	for _, f := range c.funcs {
		f.Release()
	}
	c.funcs = nil
}

// OnReady sets the handler called once the server announced the session
func (c *Client) OnReady(handler func(sessionID string)) {
	c.onReady = handler
}

// OnClose sets the handler called when the connection drops
func (c *Client) OnClose(handler func()) {
	c.onClose = handler
}

//go:build !wasm
// +build !wasm

package live

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/recera/dicomview/pkg/toolkit"
	"github.com/recera/dicomview/pkg/viewer"
)

// ExamResolver returns the DICOM URLs of an exam
type ExamResolver func(examID string) ([]string, error)

// Options configures a Server
type Options struct {
	// Prefix is stripped from the request path to get the session id
	Prefix string // default "/live/"

	// Surface is the element id of the display surface on the client
	Surface string // default "dicomImage"

	CallTimeout  time.Duration // default 10s
	PingInterval time.Duration // default 54s

	Viewer *viewer.Options

	// Exams resolves the ?exam= query parameter
	Exams ExamResolver

	CheckOrigin func(r *http.Request) bool
}

func (o Options) withDefaults() Options {
	if o.Prefix == "" {
		o.Prefix = "/live/"
	}
	if o.Surface == "" {
		o.Surface = "dicomImage"
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 54 * time.Second
	}
	if o.CheckOrigin == nil {
		o.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return o
}

// Server hosts one viewer controller per websocket session
type Server struct {
	opts     Options
	upgrader websocket.Upgrader
	sessions map[string]*Session
	mu       sync.RWMutex
}

// Session is one connected client and the controller driving it
type Session struct {
	ID string

	server   *Server
	conn     *websocket.Conn
	urls     []string
	ctrl     *viewer.Controller
	view     *RemoteView
	sendChan chan []byte

	// events queued by the reader, drained by eventLoop on wake
	events []Event
	wake   chan struct{}

	closeChan chan struct{}
	closeOnce sync.Once

	seq     atomic.Uint64
	pending map[uint64]chan Reply
	mu      sync.Mutex
}

// NewServer creates a new live protocol server
func NewServer(opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{
		opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin:     opts.CheckOrigin,
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		sessions: make(map[string]*Session),
	}
}

// HandleWebSocket upgrades the request and starts a session. A missing
// session id gets a generated one, announced in the HELLO frame.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.Trim(strings.TrimPrefix(r.URL.Path, s.opts.Prefix), "/")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var urls []string
	if exam := r.URL.Query().Get("exam"); exam != "" {
		if s.opts.Exams == nil {
			http.Error(w, "Exams not available", http.StatusNotFound)
			return
		}
		var err error
		if urls, err = s.opts.Exams(exam); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Live Server] Failed to upgrade connection: %v", err)
		return
	}

	session := s.newSession(sessionID, conn, urls)
	go session.handleConnection()
}

func (s *Server) newSession(id string, conn *websocket.Conn, urls []string) *Session {
	session := &Session{
		ID:        id,
		server:    s,
		conn:      conn,
		urls:      urls,
		sendChan:  make(chan []byte, 256),
		wake:      make(chan struct{}, 1),
		closeChan: make(chan struct{}),
		pending:   make(map[uint64]chan Reply),
	}
	session.view = NewRemoteView(session)
	session.ctrl = viewer.New(NewRemoteToolkit(session), toolkit.SurfaceID(s.opts.Surface), session.view, s.opts.Viewer)

	s.mu.Lock()
	old := s.sessions[id]
	s.sessions[id] = session
	s.mu.Unlock()

	if old != nil {
		log.Printf("[Live Session %s] Replacing previous connection", id)
		old.Close()
	}
	return session
}

// GetSession retrieves a session by ID
func (s *Server) GetSession(sessionID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

// SessionCount reports the number of connected sessions
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// removeSession forgets session unless it was already replaced
func (s *Server) removeSession(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[session.ID] == session {
		delete(s.sessions, session.ID)
	}
}

// Close closes every session
func (s *Server) Close() {
	s.mu.RLock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	for _, session := range sessions {
		session.Close()
	}
}

// Controller returns the controller driven by this session
func (ss *Session) Controller() *viewer.Controller {
	return ss.ctrl
}

// handleConnection runs the session until the connection drops
func (ss *Session) handleConnection() {
	defer ss.Close()

	go ss.writer()
	go ss.eventLoop()

	ss.sendControl(ControlHello, ss.ID)
	log.Printf("[Live Session %s] ✅ Connected (%d images)", ss.ID, len(ss.urls))

	readTimeout := 5 * ss.server.opts.PingInterval
	ss.conn.SetReadDeadline(time.Now().Add(readTimeout))
	ss.conn.SetPongHandler(func(string) error {
		ss.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		messageType, data, err := ss.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Live Session %s] Unexpected close: %v", ss.ID, err)
			}
			return
		}
		ss.conn.SetReadDeadline(time.Now().Add(readTimeout))

		if messageType != websocket.BinaryMessage {
			log.Printf("[Live Session %s] Ignoring text message: %q", ss.ID, data)
			continue
		}
		ss.handleBinaryMessage(data)
	}
}

// eventLoop initializes the controller and applies client events in order.
// It runs apart from the reader so the controller can wait for replies.
func (ss *Session) eventLoop() {
	if err := ss.ctrl.Init(); err != nil {
		log.Printf("[Live Session %s] ❌ Viewer init failed: %v", ss.ID, err)
		ss.Close()
		return
	}
	ss.ctrl.LoadImages(ss.urls)

	for {
		select {
		case <-ss.wake:
			for _, evt := range ss.takeEvents() {
				select {
				case <-ss.closeChan:
					return
				default:
				}
				if debugLog != nil {
					debugLog("[Live Session]", ss.ID, "event", evt.Type.String(), evt.Args)
				}
				if err := Dispatch(ss.ctrl, ss.view, evt); err != nil && !errors.Is(err, ErrSessionClosed) {
					log.Printf("[Live Session %s] Event %s failed: %v", ss.ID, evt.Type, err)
				}
			}
		case <-ss.closeChan:
			return
		}
	}
}

// queueEvent never blocks: the reader must stay free to deliver the
// replies a dispatched event is waiting for.
func (ss *Session) queueEvent(evt Event) {
	ss.mu.Lock()
	ss.events = append(ss.events, evt)
	ss.mu.Unlock()

	select {
	case ss.wake <- struct{}{}:
	default:
	}
}

func (ss *Session) takeEvents() []Event {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	events := ss.events
	ss.events = nil
	return events
}

// writer handles writing messages to the WebSocket
func (ss *Session) writer() {
	ticker := time.NewTicker(ss.server.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-ss.sendChan:
			ss.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := ss.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				log.Printf("[Live Session %s] Failed to write message: %v", ss.ID, err)
				ss.Close()
				return
			}

		case <-ticker.C:
			ss.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := ss.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				ss.Close()
				return
			}

		case <-ss.closeChan:
			ss.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// handleBinaryMessage routes one frame from the client
func (ss *Session) handleBinaryMessage(data []byte) {
	if len(data) == 0 {
		return
	}

	switch MessageType(data[0]) {
	case FrameEvent:
		evt, err := DecodeEvent(data)
		if err != nil {
			log.Printf("[Live Session %s] Failed to decode event: %v", ss.ID, err)
			return
		}
		ss.queueEvent(*evt)

	case FrameReply:
		reply, err := DecodeReply(data)
		if err != nil {
			log.Printf("[Live Session %s] Failed to decode reply: %v", ss.ID, err)
			return
		}
		ss.mu.Lock()
		ch, ok := ss.pending[reply.Seq]
		delete(ss.pending, reply.Seq)
		ss.mu.Unlock()
		if ok {
			ch <- *reply
		}

	case FrameControl:
		ctl, err := DecodeControl(data)
		if err != nil {
			log.Printf("[Live Session %s] Failed to decode control message: %v", ss.ID, err)
			return
		}
		switch ctl.Name {
		case ControlHello:
			log.Printf("[Live Session %s] Client hello %v", ss.ID, ctl.Args)
		case ControlPing:
			ss.sendControl(ControlPong)
		}

	default:
		log.Printf("[Live Session %s] Unknown frame type 0x%02x", ss.ID, data[0])
	}
}

func (ss *Session) send(frame []byte) error {
	select {
	case <-ss.closeChan:
		return ErrSessionClosed
	default:
	}
	select {
	case ss.sendChan <- frame:
		return nil
	case <-ss.closeChan:
		return ErrSessionClosed
	}
}

func (ss *Session) sendControl(name string, args ...string) {
	if err := ss.send(EncodeControl(Control{Name: name, Args: args})); err != nil && debugLog != nil {
		debugLog("[Live Session]", ss.ID, "control", name, "dropped:", err.Error())
	}
}

// Call implements Caller
func (ss *Session) Call(ctx context.Context, op string, args ...string) (string, error) {
	seq := ss.seq.Add(1)
	ch := make(chan Reply, 1)

	ss.mu.Lock()
	ss.pending[seq] = ch
	ss.mu.Unlock()
	defer func() {
		ss.mu.Lock()
		delete(ss.pending, seq)
		ss.mu.Unlock()
	}()

	if err := ss.send(EncodeCommand(Command{Seq: seq, Op: op, Args: args})); err != nil {
		return "", err
	}

	timer := time.NewTimer(ss.server.opts.CallTimeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		if reply.Err != "" {
			return "", &RemoteError{Op: op, Msg: reply.Err}
		}
		return reply.Result, nil
	case <-timer.C:
		return "", fmt.Errorf("%s: %w", op, ErrCallTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	case <-ss.closeChan:
		return "", ErrSessionClosed
	}
}

// Notify implements Caller
func (ss *Session) Notify(op string, args ...string) error {
	return ss.send(EncodeCommand(Command{Op: op, Args: args}))
}

// Close ends the session, failing pending calls and stopping the controller
func (ss *Session) Close() {
	ss.closeOnce.Do(func() {
		close(ss.closeChan)
		ss.conn.Close()
		ss.ctrl.Close()
		ss.server.removeSession(ss)
		log.Printf("[Live Session %s] Closed", ss.ID)
	})
}

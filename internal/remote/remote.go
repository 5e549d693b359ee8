// Package remote exposes a Bridge to out-of-process script clients over a
// WebSocket. Each connection is a session that can call methods, subscribe
// to events and read the subsystem constants.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/net/netutil"

	"github.com/cryguy/rtcbridge"
	"github.com/cryguy/rtcbridge/internal/core"
)

var log = logging.Logger("rtcbridge/remote")

// Path is the WebSocket endpoint.
const Path = "/bridge"

const (
	maxFrameBytes  = 1 << 20
	sendQueueSize  = 256
	writeTimeout   = 5 * time.Second
	pingInterval   = 30 * time.Second
	shutdownPeriod = 5 * time.Second
)

// Frame types.
const (
	FrameCall        = "call"
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameConstants   = "constants"
	FrameResult      = "result"
	FrameEvent       = "event"
	FrameError       = "error"
)

// ClientFrame is a message from a remote client.
type ClientFrame struct {
	Type      string         `json:"type"`
	ID        int            `json:"id,omitempty"`
	Subsystem string         `json:"subsystem,omitempty"`
	Method    string         `json:"method,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Event     string         `json:"event,omitempty"`
}

// ServerFrame is a message to a remote client. Which fields are set depends
// on Type.
type ServerFrame struct {
	Type        string            `json:"type"`
	ID          int               `json:"id,omitempty"`
	OK          *bool             `json:"ok,omitempty"`
	Value       any               `json:"value,omitempty"`
	Error       *core.Error       `json:"error,omitempty"`
	Subsystem   string            `json:"subsystem,omitempty"`
	Name        string            `json:"name,omitempty"`
	Payload     map[string]any    `json:"payload,omitempty"`
	Prefixes    map[string]string `json:"prefixes,omitempty"`
	Constants   map[string]any    `json:"constants,omitempty"`
	ResultCodes map[string]int    `json:"resultCodes,omitempty"`
	Message     string            `json:"message,omitempty"`
}

// Server serves the bridge to WebSocket clients.
type Server struct {
	b        *rtcbridge.Bridge
	maxConns int

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates a server for b. Connection limits come from the bridge
// configuration.
func New(b *rtcbridge.Bridge) *Server {
	return &Server{
		b:        b,
		maxConns: b.Config().RemoteMaxConns,
		sessions: make(map[string]*session),
	}
}

// Handler returns the HTTP handler serving Path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+Path, s.serveBridge)
	return mux
}

// ListenAndServe listens on the configured RemoteAddr and serves until ctx
// is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.b.Config().RemoteAddr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("remote: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. At most RemoteMaxConns
// connections are open at once; further clients wait in the accept queue.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ln = netutil.LimitListener(ln, s.maxConns)
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()
	log.Infof("remote: serving %s on %s", Path, ln.Addr())
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("remote: %w", err)
	}
	return nil
}

// Sessions returns the number of connected sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) serveBridge(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warnf("remote: accept: %v", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	ctx, cancel := context.WithCancel(r.Context())
	ss := &session{
		id:     uuid.NewString(),
		srv:    s,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan ServerFrame, sendQueueSize),
		subs:   make(map[subKey]func()),
	}
	s.mu.Lock()
	s.sessions[ss.id] = ss
	s.mu.Unlock()
	log.Infof("remote: session %s connected from %s", ss.id, r.RemoteAddr)

	defer func() {
		ss.close()
		s.mu.Lock()
		delete(s.sessions, ss.id)
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		log.Infof("remote: session %s closed", ss.id)
	}()

	go ss.writeLoop()
	ss.readLoop()
}

type subKey struct {
	sub  core.Subsystem
	name string
}

type session struct {
	id     string
	srv    *Server
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	out    chan ServerFrame

	mu   sync.Mutex
	subs map[subKey]func()
}

func (ss *session) readLoop() {
	for {
		var f ClientFrame
		if err := wsjson.Read(ss.ctx, ss.conn, &f); err != nil {
			var ce websocket.CloseError
			if !errors.As(err, &ce) && ss.ctx.Err() == nil {
				log.Debugf("remote: session %s read: %v", ss.id, err)
			}
			return
		}
		ss.handle(f)
	}
}

func (ss *session) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case f := <-ss.out:
			ctx, cancel := context.WithTimeout(ss.ctx, writeTimeout)
			err := wsjson.Write(ctx, ss.conn, f)
			cancel()
			if err != nil {
				log.Debugf("remote: session %s write: %v", ss.id, err)
				ss.cancel()
				return
			}
		case <-ping.C:
			ctx, cancel := context.WithTimeout(ss.ctx, writeTimeout)
			err := ss.conn.Ping(ctx)
			cancel()
			if err != nil {
				ss.cancel()
				return
			}
		case <-ss.ctx.Done():
			return
		}
	}
}

// send queues f without blocking. Deliveries run on the bridge loop, so a
// slow client loses frames instead of stalling the bridge.
func (ss *session) send(f ServerFrame) {
	select {
	case ss.out <- f:
	case <-ss.ctx.Done():
	default:
		log.Warnf("remote: session %s send queue full, dropped %s frame", ss.id, f.Type)
	}
}

func (ss *session) handle(f ClientFrame) {
	switch f.Type {
	case FrameCall:
		ss.call(f)
	case FrameSubscribe:
		ss.subscribe(f)
	case FrameUnsubscribe:
		ss.unsubscribe(f)
	case FrameConstants:
		ss.send(constantsFrame(ss.srv.b))
	default:
		ss.send(ServerFrame{Type: FrameError, Message: fmt.Sprintf("unknown frame type %q", f.Type)})
	}
}

func (ss *session) call(f ClientFrame) {
	sub, ok := core.ParseSubsystem(f.Subsystem)
	if !ok {
		ss.send(resultFrame(f.ID, nil, core.NewError(core.CodeMethodNotFound,
			"unknown subsystem %q", f.Subsystem)))
		return
	}
	var args core.Args
	if f.Args != nil {
		args = core.Args(f.Args)
	}
	id := f.ID
	ss.srv.b.Call(sub, f.Method, args).Then(func(v any, err error) {
		ss.send(resultFrame(id, v, err))
	})
}

func (ss *session) subscribe(f ClientFrame) {
	key, err := eventKey(f)
	if err != nil {
		ss.send(ServerFrame{Type: FrameError, Message: err.Error()})
		return
	}
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if _, dup := ss.subs[key]; dup {
		return
	}
	sub := string(key.sub)
	ss.subs[key] = ss.srv.b.Subscribe(key.sub, key.name, func(payload map[string]any) {
		ss.send(ServerFrame{Type: FrameEvent, Subsystem: sub, Name: key.name, Payload: payload})
	})
}

func (ss *session) unsubscribe(f ClientFrame) {
	key, err := eventKey(f)
	if err != nil {
		ss.send(ServerFrame{Type: FrameError, Message: err.Error()})
		return
	}
	ss.mu.Lock()
	cancel, ok := ss.subs[key]
	delete(ss.subs, key)
	ss.mu.Unlock()
	if ok {
		cancel()
	}
}

// close removes every subscription of the session.
func (ss *session) close() {
	ss.cancel()
	ss.mu.Lock()
	subs := ss.subs
	ss.subs = make(map[subKey]func())
	ss.mu.Unlock()
	for _, cancel := range subs {
		cancel()
	}
}

// eventKey resolves the subscription target of f. Event names may be bare
// or carry the subsystem prefix.
func eventKey(f ClientFrame) (subKey, error) {
	sub, ok := core.ParseSubsystem(f.Subsystem)
	if !ok {
		return subKey{}, fmt.Errorf("unknown subsystem %q", f.Subsystem)
	}
	if f.Event == "" {
		return subKey{}, fmt.Errorf("%s: missing event name", f.Type)
	}
	name := f.Event
	if !strings.HasPrefix(name, sub.Prefix()) {
		name = sub.EventName(name)
	}
	return subKey{sub: sub, name: name}, nil
}

func resultFrame(id int, v any, err error) ServerFrame {
	ok := err == nil
	f := ServerFrame{Type: FrameResult, ID: id, OK: &ok}
	if err == nil {
		f.Value = v
		return f
	}
	var be *core.Error
	if !errors.As(err, &be) {
		be = &core.Error{Message: err.Error()}
	}
	f.Error = be
	return f
}

func constantsFrame(b *rtcbridge.Bridge) ServerFrame {
	prefixes := make(map[string]string)
	for _, s := range core.Subsystems() {
		prefixes[string(s)] = s.Prefix()
	}
	return ServerFrame{
		Type:        FrameConstants,
		Prefixes:    prefixes,
		Constants:   b.Constants(),
		ResultCodes: core.ResultCodes(),
	}
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	ghostline "github.com/Paranoid-AF/ghostline"
	"github.com/Paranoid-AF/ghostline/completion"
	defaults "github.com/Paranoid-AF/ghostline/default"
	"github.com/Paranoid-AF/ghostline/generate"
	"github.com/Paranoid-AF/ghostline/models"
	"github.com/Paranoid-AF/ghostline/uithread"
)

const (
	progressTitle = "Generating completion"
	acceptTimeout = 10 * time.Second
)

var errNoOutcome = errors.New("completer returned without a result")

// panicError carries a value recovered from a panicking completer.
type panicError struct {
	op    string
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.op, e.value)
}

// safely runs fn and turns a panic into a *panicError, logging the stack.
func (s *Server) safely(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered panic", "op", op, "panic", r, "stack", string(debug.Stack()))
			err = &panicError{op: op, value: r}
		}
	}()
	return fn()
}

// Completer runs completion requests for the server.
type Completer interface {
	// Run must deliver exactly one terminal callback to l.
	Run(ctx context.Context, req *ghostline.Request, sess *completion.Session, l completion.Listener)
	WarmContext(ctx context.Context, cwd string)
	Accept(ctx context.Context, languageID, text string) error
	Close()
}

// indexPersister is implemented by completers whose snippet index survives
// restarts.
type indexPersister interface {
	LoadIndexCache(ctx context.Context) error
	SaveIndexCache() error
}

// sessionEntry tracks a cancellable in-flight request for a session.
type sessionEntry struct {
	requestID int
	cancel    context.CancelFunc
}

// Server listens on a Unix domain socket for completion requests.
type Server struct {
	listener  net.Listener
	sockPath  string
	logger    *slog.Logger
	newEngine func() Completer

	mu       sync.Mutex
	engine   Completer
	sessions map[string]sessionEntry

	closeOnce sync.Once
}

// NewServer creates a new IPC server bound to the given socket path.
func NewServer(sockPath string, logger *slog.Logger) (*Server, error) {
	newEngine := func() Completer { return generate.NewEngine() }
	return NewServerWithCompleter(sockPath, logger, newEngine)
}

// NewServerWithCompleter creates a new IPC server. newEngine is called once
// now and again on every reload.
func NewServerWithCompleter(sockPath string, logger *slog.Logger, newEngine func() Completer) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Remove stale socket file if it exists
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener:  listener,
		sockPath:  sockPath,
		logger:    logger,
		newEngine: newEngine,
		sessions:  make(map[string]sessionEntry),
	}
	s.engine = s.startEngine()
	return s, nil
}

// Serve accepts connections and handles requests.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close cancels in-flight requests, shuts down the engine and removes the
// socket file.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.listener.Close()

		s.mu.Lock()
		for _, entry := range s.sessions {
			entry.cancel()
		}
		engine := s.engine
		s.mu.Unlock()

		s.stopEngine(engine)
		os.Remove(s.sockPath)
	})
}

func (s *Server) completer() Completer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

func (s *Server) startEngine() Completer {
	engine := s.newEngine()
	if p, ok := engine.(indexPersister); ok {
		if err := p.LoadIndexCache(context.Background()); err != nil {
			s.logger.Warn("failed to load snippet index", "error", err)
		}
	}
	return engine
}

func (s *Server) stopEngine(engine Completer) {
	if p, ok := engine.(indexPersister); ok {
		if err := p.SaveIndexCache(); err != nil {
			s.logger.Warn("failed to save snippet index", "error", err)
		}
	}
	engine.Close()
}

// envelope picks the handler for a request line.
type envelope struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered panic handling connection", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		return
	}

	raw := scanner.Bytes()
	s.logger.Debug("request", "data", string(raw))

	var p envelope
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn("invalid request", "error", err)
		return
	}

	switch {
	case p.Type == "context":
		var req ghostline.ContextRequest
		if s.decode(raw, &req) {
			s.reply(conn, s.handleContext(&req))
		}
	case p.Type == "cancel":
		var req ghostline.CancelRequest
		if s.decode(raw, &req) {
			s.reply(conn, s.handleCancel(&req))
		}
	case p.Type == "accept":
		var req ghostline.AcceptRequest
		if s.decode(raw, &req) {
			s.reply(conn, s.handleAccept(&req))
		}
	case p.Action != "":
		s.reply(conn, s.handleConfig(p.Action))
	default:
		var req ghostline.Request
		if s.decode(raw, &req) {
			s.handleCompletion(conn, &req)
		}
	}
}

func (s *Server) decode(raw []byte, v any) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		s.logger.Warn("invalid request", "error", err)
		return false
	}
	return true
}

// reply writes a single JSON response line.
func (s *Server) reply(conn net.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}

	s.logger.Debug("response", "data", string(data))

	conn.Write(append(data, '\n'))
}

// handleCompletion runs one completion request and streams its events. The
// connection's loop is the only writer to conn until the done event.
func (s *Server) handleCompletion(conn net.Conn, req *ghostline.Request) {
	sid := req.SessionID
	if sid == "" {
		sid = uuid.NewString()
	}
	reqID := req.RequestID
	log := s.logger.With("session_id", sid, "request_id", reqID)

	loop := uithread.New(log)
	out := &eventWriter{conn: conn, requestID: reqID, logger: log}

	var progress completion.ProgressHandle
	if req.Progress {
		progress = newConnProgress(loop, out, progressTitle)
	}

	anchor := completion.Position{URI: req.URI, Offset: max(0, min(req.Offset, len(req.Text)))}
	sess := completion.NewSession(anchor, progress)
	listener, err := completion.NewListener(sess, completion.ListenerConfig{
		Sink:     &connSink{out: out},
		Executor: loop,
		Notifier: &connNotifier{loop: loop, out: out},
		Logger:   log,
	})
	if err != nil {
		log.Error("failed to create listener", "error", err)
		loop.Close()
		return
	}

	// Cancel any in-flight request for this session and create a new context.
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if prev, ok := s.sessions[sid]; ok {
		prev.cancel()
	}
	s.sessions[sid] = sessionEntry{requestID: reqID, cancel: cancel}
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		if cur, ok := s.sessions[sid]; ok && cur.requestID == reqID {
			delete(s.sessions, sid)
		}
		s.mu.Unlock()
	}()

	// A client that hangs up no longer wants the completion.
	go func() {
		io.Copy(io.Discard, conn)
		cancel()
	}()

	err = s.safely("completion", func() error {
		s.completer().Run(ctx, req, sess, listener)
		return nil
	})
	if err != nil {
		listener.OnError(completion.ErrorDetails{Code: "internal_error", Message: "internal error"}, err)
	}

	select {
	case <-sess.Done():
	default:
		log.Warn("completer returned without a terminal callback")
		listener.OnError(completion.ErrorDetails{Code: "internal_error"}, errNoOutcome)
	}
	<-sess.Done()

	outcome := sess.State().String()
	loop.Submit(func() {
		out.write(ghostline.Event{Type: ghostline.EventDone, Outcome: outcome})
	})
	loop.Close()
}

func (s *Server) handleContext(req *ghostline.ContextRequest) ghostline.ContextResponse {
	cwd := strings.TrimRight(req.Cwd, "\n")
	if cwd == "" {
		return ghostline.ContextResponse{Error: &ghostline.Error{Code: "invalid_request", Message: "cwd is required"}}
	}
	// Gather in background, respond immediately
	go s.safely("warm context", func() error {
		s.completer().WarmContext(context.Background(), cwd)
		return nil
	})
	return ghostline.ContextResponse{OK: true}
}

func (s *Server) handleCancel(req *ghostline.CancelRequest) ghostline.CancelResponse {
	if req.SessionID == "" {
		return ghostline.CancelResponse{Error: &ghostline.Error{Code: "invalid_request", Message: "session_id is required"}}
	}

	s.mu.Lock()
	entry, ok := s.sessions[req.SessionID]
	if ok {
		delete(s.sessions, req.SessionID)
	}
	s.mu.Unlock()

	if ok {
		entry.cancel()
		s.logger.Debug("cancelled session", "session_id", req.SessionID, "request_id", entry.requestID)
	}
	return ghostline.CancelResponse{OK: true, Cancelled: ok}
}

func (s *Server) handleAccept(req *ghostline.AcceptRequest) ghostline.AcceptResponse {
	if strings.TrimSpace(req.Text) == "" {
		return ghostline.AcceptResponse{Error: &ghostline.Error{Code: "invalid_request", Message: "text is required"}}
	}

	ctx, cancel := context.WithTimeout(context.Background(), acceptTimeout)
	defer cancel()
	err := s.safely("accept", func() error {
		return s.completer().Accept(ctx, req.LanguageID, req.Text)
	})
	if err != nil {
		s.logger.Warn("failed to index accepted snippet", "error", err)
		code := "api_error"
		if pe := (*panicError)(nil); errors.As(err, &pe) {
			code = "internal_error"
		}
		return ghostline.AcceptResponse{Error: &ghostline.Error{Code: code, Message: err.Error()}}
	}
	return ghostline.AcceptResponse{OK: true}
}

func (s *Server) handleConfig(action string) ghostline.ConfigResponse {
	var resp ghostline.ConfigResponse

	switch action {
	case "get":
		cfg, err := ghostline.LoadConfig()
		if err != nil {
			resp.Error = configError(err)
		} else {
			resp.Config = cfg
		}

	case "reload":
		// Respond immediately; the old engine finishes its requests while the
		// new one loads the snippet index.
		go s.safely("reload", func() error {
			s.reloadEngine()
			return nil
		})
		cfg, err := ghostline.LoadConfig()
		if err != nil {
			resp.Error = configError(err)
		} else {
			resp.Config = cfg
		}

	case "defaults":
		resp.Config = ghostline.DefaultConfig()

	case "default_prompt":
		resp.Prompt = defaults.DefaultPrompt

	case "validate":
		cfg, err := ghostline.LoadConfig()
		if err != nil {
			resp.Error = configError(err)
		} else {
			resp.Warnings = ghostline.ValidateConfig(cfg)
		}

	case "models":
		cfg, err := ghostline.LoadConfig()
		if err != nil {
			resp.Error = configError(err)
			break
		}
		plan, err := models.ParsePlan(cfg.Plan)
		if err != nil {
			resp.Error = configError(err)
			break
		}
		for _, m := range models.CodeModels(plan) {
			resp.Models = append(resp.Models, m.Code)
		}

	default:
		resp.Error = &ghostline.Error{
			Code:    "unknown_action",
			Message: "unknown config action: " + action,
		}
	}
	return resp
}

func configError(err error) *ghostline.Error {
	return &ghostline.Error{Code: "config_error", Message: err.Error()}
}

func (s *Server) reloadEngine() {
	// Persist accepted snippets so the new engine picks them up.
	old := s.completer()
	if p, ok := old.(indexPersister); ok {
		if err := p.SaveIndexCache(); err != nil {
			s.logger.Warn("failed to save snippet index", "error", err)
		}
	}

	engine := s.startEngine()

	s.mu.Lock()
	old, s.engine = s.engine, engine
	s.mu.Unlock()

	old.Close()
	s.logger.Info("engine reloaded")
}

// isClosed reports whether err comes from accepting on a closed listener.
func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

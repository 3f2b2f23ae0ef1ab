package socketrpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tinytelemetry/countdown/internal/model"
)

const (
	// scannerInitBufSize is the initial buffer size for the per-connection scanner (64 KB).
	scannerInitBufSize = 64 * 1024
	// scannerMaxTokenSize is the maximum token size the scanner will accept (1 MB).
	scannerMaxTokenSize = 1024 * 1024
)

var errHistoryDisabled = errors.New("run history is disabled")

// stateWatcher is implemented by engines that can hand out the state a
// watch starts from atomically with registering it.
type stateWatcher interface {
	WatchState(fn func(model.Transition)) (model.State, func())
}

// Server exposes a timer and its run history over a Unix domain socket
// using JSON-RPC 2.0.
type Server struct {
	socketPath string
	timer      model.TimerAPI
	history    model.HistoryReader
	listener   net.Listener
	wg         sync.WaitGroup
	quit       chan struct{}
	stopOnce   sync.Once

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer creates a new socket RPC server. history may be nil.
func NewServer(socketPath string, timer model.TimerAPI, history model.HistoryReader) *Server {
	return &Server{
		socketPath: socketPath,
		timer:      timer,
		history:    history,
		quit:       make(chan struct{}),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Start begins listening on the Unix socket and accepting connections.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("socketrpc: mkdir: %w", err)
	}

	// Remove stale socket if it exists.
	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if dialErr != nil {
			// Socket file exists but nobody is listening.
			os.Remove(s.socketPath)
		} else {
			conn.Close()
			return fmt.Errorf("socketrpc: another server is already listening on %s", s.socketPath)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("socketrpc: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	log.Printf("socketrpc: listening on %s", s.socketPath)
	return nil
}

// Stop closes the listener and every open connection, waits for handlers
// to return, and removes the socket file.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.quit)
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()

		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		os.Remove(s.socketPath)
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Printf("socketrpc: accept error: %v", err)
				continue
			}
		}
		if !s.track(conn) {
			conn.Close()
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.quit:
		return false
	default:
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// connWriter serializes writes from the request loop and the watch
// goroutine onto one connection.
type connWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (w *connWriter) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	w := &connWriter{enc: json.NewEncoder(conn)}

	for scanner.Scan() {
		select {
		case <-s.quit:
			return
		default:
		}

		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			w.write(Response{JSONRPC: "2.0", ID: 0, Error: &RPCError{Code: CodeParseError, Message: "parse error"}})
			continue
		}

		if req.Method == "Watch" {
			s.stream(conn, scanner, w, req)
			return
		}

		if err := w.write(s.dispatch(req)); err != nil {
			return
		}
	}
}

// stream acknowledges a Watch request and forwards transitions until the
// peer goes away or the server stops.
func (s *Server) stream(conn net.Conn, scanner *bufio.Scanner, w *connWriter, req Request) {
	notify := func(t model.Transition) {
		params, err := json.Marshal(t)
		if err != nil {
			log.Printf("socketrpc: marshal transition: %v", err)
			return
		}
		if err := w.write(Notification{JSONRPC: "2.0", Method: MethodStateChanged, Params: params}); err != nil {
			// The read loop below notices the closed connection and cancels.
			conn.Close()
		}
	}

	// Hold the writer until the ack is out so no notification precedes it.
	w.mu.Lock()
	var (
		current model.State
		cancel  func()
	)
	if sw, ok := s.timer.(stateWatcher); ok {
		current, cancel = sw.WatchState(notify)
	} else {
		current = s.timer.State()
		cancel = s.timer.Watch(notify)
	}
	defer cancel()

	ack := Response{JSONRPC: "2.0", ID: req.ID}
	ack.Result, _ = json.Marshal(current)
	err := w.enc.Encode(ack)
	w.mu.Unlock()
	if err != nil {
		return
	}

	// Any further input is ignored; the loop only detects disconnects.
	for scanner.Scan() {
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	marshalResult := func(v interface{}, err error) Response {
		if err != nil {
			resp.Error = &RPCError{Code: CodeAppError, Message: err.Error()}
			return resp
		}
		data, merr := json.Marshal(v)
		if merr != nil {
			resp.Error = &RPCError{Code: CodeInternalError, Message: merr.Error()}
			return resp
		}
		resp.Result = data
		return resp
	}

	invalidParams := func(err error) Response {
		resp.Error = &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
		return resp
	}

	switch req.Method {
	case "GetState":
		return marshalResult(s.timer.State(), nil)

	case "SetDuration":
		var p struct{ Seconds *int }
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return invalidParams(err)
		}
		if p.Seconds == nil {
			return invalidParams(errors.New("seconds is required"))
		}
		if *p.Seconds < 0 {
			return invalidParams(fmt.Errorf("seconds must be >= 0, got %d", *p.Seconds))
		}
		s.timer.SetDuration(*p.Seconds)
		return marshalResult(s.timer.State(), nil)

	case "Start":
		s.timer.Start()
		return marshalResult(s.timer.State(), nil)

	case "Stop":
		s.timer.Stop()
		return marshalResult(s.timer.State(), nil)

	case "RecentRuns":
		if s.history == nil {
			return marshalResult(nil, errHistoryDisabled)
		}
		var p struct{ Limit int }
		// Allow empty/null params for defaults; only reject genuinely malformed JSON.
		if err := json.Unmarshal(req.Params, &p); err != nil && len(req.Params) > 0 {
			return invalidParams(err)
		}
		if p.Limit > model.DefaultMaxHistoryLimit {
			p.Limit = model.DefaultMaxHistoryLimit
		}
		return marshalResult(s.history.RecentRuns(p.Limit))

	case "RunStats":
		if s.history == nil {
			return marshalResult(nil, errHistoryDisabled)
		}
		return marshalResult(s.history.RunStats())

	default:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return resp
	}
}

package socketrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/countdown/internal/model"
)

const (
	dialTimeout = 5 * time.Second
	callTimeout = 30 * time.Second
)

// Client talks to a Server over a Unix domain socket using JSON-RPC 2.0.
//
// The E-suffixed methods return transport errors. State, SetDuration, Start
// and Stop satisfy model.TimerControl; they log failures and remember the
// last one for Err.
type Client struct {
	socketPath string

	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder

	errMu   sync.Mutex
	lastErr error
	last    model.State
}

var (
	_ model.TimerControl  = (*Client)(nil)
	_ model.HistoryReader = (*Client)(nil)
)

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	return &Client{
		socketPath: socketPath,
		conn:       conn,
		scanner:    newScanner(conn),
		encoder:    json.NewEncoder(conn),
	}, nil
}

func newScanner(conn net.Conn) *bufio.Scanner {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	return scanner
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(method string, params interface{}, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	return roundTrip(c.conn, c.encoder, c.scanner, c.nextID, method, params, dest)
}

func roundTrip(conn net.Conn, enc *json.Encoder, scanner *bufio.Scanner, id int, method string, params, dest interface{}) error {
	paramsData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("socketrpc: marshal params: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  paramsData,
	}

	conn.SetDeadline(time.Now().Add(callTimeout))
	defer conn.SetDeadline(time.Time{})

	if err := enc.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// StateE returns the engine's current state.
func (c *Client) StateE() (model.State, error) {
	var result model.State
	err := c.call("GetState", nil, &result)
	return result, err
}

// SetDurationE stages seconds as the next run's duration and returns the
// resulting state.
func (c *Client) SetDurationE(seconds int) (model.State, error) {
	var result model.State
	err := c.call("SetDuration", map[string]interface{}{"Seconds": seconds}, &result)
	return result, err
}

// StartE starts a run and returns the resulting state.
func (c *Client) StartE() (model.State, error) {
	var result model.State
	err := c.call("Start", nil, &result)
	return result, err
}

// StopE stops the current run and returns the resulting state.
func (c *Client) StopE() (model.State, error) {
	var result model.State
	err := c.call("Stop", nil, &result)
	return result, err
}

func (c *Client) RecentRuns(limit int) ([]model.RunRecord, error) {
	var result []model.RunRecord
	err := c.call("RecentRuns", map[string]interface{}{"Limit": limit}, &result)
	return result, err
}

func (c *Client) RunStats() (model.RunStats, error) {
	var result model.RunStats
	err := c.call("RunStats", nil, &result)
	return result, err
}

// State returns the daemon's state, or the last state seen when the call fails.
func (c *Client) State() model.State {
	st, err := c.StateE()
	return c.record("GetState", st, err)
}

func (c *Client) SetDuration(seconds int) {
	st, err := c.SetDurationE(seconds)
	c.record("SetDuration", st, err)
}

func (c *Client) Start() {
	st, err := c.StartE()
	c.record("Start", st, err)
}

func (c *Client) Stop() {
	st, err := c.StopE()
	c.record("Stop", st, err)
}

// Err returns the error from the most recent model.TimerControl call, or nil.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.lastErr
}

func (c *Client) record(method string, st model.State, err error) model.State {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	c.lastErr = err
	if err != nil {
		log.Printf("socketrpc: %s: %v", method, err)
		return c.last
	}
	c.last = st
	return st
}

// Watch opens a dedicated connection and streams transitions until ctx is
// done or the server goes away, at which point the channel is closed. The
// returned state is the one the first transition starts from.
func (c *Client) Watch(ctx context.Context) (model.State, <-chan model.Transition, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, dialTimeout)
	if err != nil {
		return model.State{}, nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := newScanner(conn)

	var current model.State
	if err := roundTrip(conn, json.NewEncoder(conn), scanner, 1, "Watch", nil, &current); err != nil {
		conn.Close()
		return model.State{}, nil, err
	}

	out := make(chan model.Transition)
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	go func() {
		defer close(out)
		defer stop()
		defer conn.Close()

		for scanner.Scan() {
			var n Notification
			if err := json.Unmarshal(scanner.Bytes(), &n); err != nil {
				log.Printf("socketrpc: watch: bad notification: %v", err)
				continue
			}
			if n.Method != MethodStateChanged {
				continue
			}
			var t model.Transition
			if err := json.Unmarshal(n.Params, &t); err != nil {
				log.Printf("socketrpc: watch: bad transition: %v", err)
				continue
			}
			select {
			case out <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	return current, out, nil
}

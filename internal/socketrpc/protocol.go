package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes the timer engine and its run history over a
// Unix domain socket. One request or response per line.
//
//   Method         Params              Result
//   ───────────    ────────────────    ─────────────────────────
//   GetState       (none)              State
//   SetDuration    {Seconds: int}      State
//   Start          (none)              State
//   Stop           (none)              State
//   RecentRuns     {Limit: int}        []RunRecord
//   RunStats       (none)              RunStats
//   Watch          (none)              State, then StateChanged notifications
//
// Commands never fail: a command the engine ignores still returns the
// current state. SetDuration rejects negative seconds with -32602.
//
// After Watch is acknowledged the connection carries only notifications:
//
//   {"jsonrpc":"2.0","method":"StateChanged","params":Transition}
//
// until either side closes it.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (history query failure or history disabled)

const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeAppError       = -32000
)

// MethodStateChanged is the notification method streamed after Watch.
const MethodStateChanged = "StateChanged"

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Notification is a JSON-RPC 2.0 notification (a message without an id).
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/countdown/countdown.sock, falling back to
// ~/.local/state/countdown/countdown.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "countdown", "countdown.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/countdown.sock"
	}
	return filepath.Join(home, ".local", "state", "countdown", "countdown.sock")
}

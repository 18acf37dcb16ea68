// Package assistant owns the bidirectional subprocess handle to the
// Assistant CLI (spec §3 "assistant_handle", §4.6, §4.10).
//
// Grounded on gsh's internal/acp/process.go (line-delimited JSON-RPC
// framing: read each line into a generic envelope and route by presence of
// id/method) and internal/acp/client.go (Connect/SendPrompt's
// select-over-channels streaming loop) — here the broker plays the role
// gsh's acp.Client plays towards an external agent, but pointed at the
// Assistant CLI instead.
package assistant

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/brokerline/acpd/internal/acperr"
)

// ToolServer is the embedded tool server's view from the Assistant CLI
// subprocess handle (spec §4.3). Implemented by internal/embeddedtools;
// kept as an interface here to avoid an import cycle.
type ToolServer interface {
	// Handle serves one agent-initiated request (list_tools, call_tool,
	// or any other method) and returns a JSON-marshalable result or an
	// error to be reported back as a JSON-RPC error.
	Handle(ctx context.Context, method string, params json.RawMessage) (result any, err error)
	// Notify handles a notifications/* method; unknown notifications must
	// be tolerated (spec §4.3).
	Notify(method string, params json.RawMessage)
}

// Event is one inbound message from the Assistant CLI, already split into
// blocks ready for the notification converter.
type Event struct {
	Blocks []Block
	Done   bool
}

// Handle is a single Assistant CLI subprocess bound to one session.
type Handle struct {
	cmd    *exec.Cmd
	stdin  *bufioWriter
	logger *zap.Logger

	nextID    int64
	pending   map[int64]chan rpcEnvelope
	pendingMu sync.Mutex

	events chan Event
	errs   chan error

	connected atomic.Bool
	closeOnce sync.Once

	// ToolServer is set once before Query is first called (single-
	// assignment, spec §5); reads thereafter are lock-free.
	ToolServer ToolServer
}

type bufioWriter struct {
	mu sync.Mutex
	w  interface {
		Write([]byte) (int, error)
	}
}

func (b *bufioWriter) writeLine(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.w.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

// Spawn starts command as the Assistant CLI subprocess for one session.
func Spawn(ctx context.Context, command string, args []string, cwd string, env []string, logger *zap.Logger) (*Handle, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = cwd
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning assistant cli: %w", err)
	}

	h := &Handle{
		cmd:     cmd,
		stdin:   &bufioWriter{w: stdin},
		logger:  logger,
		pending: make(map[int64]chan rpcEnvelope),
		events:  make(chan Event, 16),
		errs:    make(chan error, 1),
	}
	h.connected.Store(true)

	go h.readLoop(stdout)

	return h, nil
}

func (h *Handle) readLoop(stdout interface {
	Read([]byte) (int, error)
}) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var env rpcEnvelope
		if err := json.Unmarshal(line, &env); err != nil {
			h.logger.Warn("assistant cli emitted malformed json", zap.Error(err))
			continue
		}

		switch {
		case env.ID != nil && env.Method != "":
			// The Assistant CLI is addressing our embedded tool server
			// over the same wire (spec §4.3: "same JSON-RPC shape as the
			// outer protocol, distinct method namespace").
			go h.handleToolRequest(env)

		case env.ID != nil && env.Method == "":
			// Response to one of our requests.
			h.pendingMu.Lock()
			ch, ok := h.pending[*env.ID]
			if ok {
				delete(h.pending, *env.ID)
			}
			h.pendingMu.Unlock()
			if ok {
				ch <- env
			}
		case env.Method == "assistant/message":
			var note messageNotification
			if err := json.Unmarshal(env.Params, &note); err != nil {
				h.logger.Warn("failed to parse assistant/message", zap.Error(err))
				continue
			}
			h.events <- Event{Blocks: note.Blocks, Done: note.Done}
		case strings.HasPrefix(env.Method, "notifications/"):
			if h.ToolServer != nil {
				h.ToolServer.Notify(env.Method, env.Params)
			}
		default:
			// Unknown notification; tolerated.
		}
	}

	h.connected.Store(false)
	close(h.events)
}

func (h *Handle) handleToolRequest(env rpcEnvelope) {
	resp := rpcEnvelope{JSONRPC: "2.0", ID: env.ID}

	if h.ToolServer == nil {
		resp.Error = &rpcError{Code: acperr.Code(acperr.KindNotConnected), Message: "embedded tool server not ready"}
	} else {
		result, err := h.ToolServer.Handle(context.Background(), env.Method, env.Params)
		if err != nil {
			resp.Error = &rpcError{Code: codeFor(err), Message: err.Error()}
		} else {
			raw, merr := json.Marshal(result)
			if merr != nil {
				resp.Error = &rpcError{Code: -32603, Message: merr.Error()}
			} else {
				resp.Result = raw
			}
		}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		h.logger.Warn("failed to marshal tool response", zap.Error(err))
		return
	}
	if err := h.stdin.writeLine(data); err != nil {
		h.logger.Warn("failed to write tool response to assistant cli", zap.Error(err))
	}
}

// codeFor maps a ToolServer.Handle error to a stable JSON-RPC code via the
// acperr taxonomy (spec §7: "distinct kinds have distinct codes"). An error
// that isn't an *acperr.Error falls back to method-not-found, the prior
// blanket behavior, since an untyped error from a tool carries no kind to
// distinguish it by.
func codeFor(err error) int {
	var acpErr *acperr.Error
	if errors.As(err, &acpErr) {
		return acpErr.Code()
	}
	return acperr.Code(acperr.KindMethodNotFound)
}

func (h *Handle) request(ctx context.Context, method string, params any) (rpcEnvelope, error) {
	id := atomic.AddInt64(&h.nextID, 1)
	raw, err := json.Marshal(params)
	if err != nil {
		return rpcEnvelope{}, err
	}

	reply := make(chan rpcEnvelope, 1)
	h.pendingMu.Lock()
	h.pending[id] = reply
	h.pendingMu.Unlock()

	envelope := rpcEnvelope{JSONRPC: "2.0", ID: &id, Method: method, Params: raw}
	data, err := json.Marshal(envelope)
	if err != nil {
		return rpcEnvelope{}, err
	}
	if err := h.stdin.writeLine(data); err != nil {
		return rpcEnvelope{}, fmt.Errorf("writing to assistant cli: %w", err)
	}

	select {
	case resp := <-reply:
		if resp.Error != nil {
			return resp, fmt.Errorf("assistant cli error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp, nil
	case <-ctx.Done():
		return rpcEnvelope{}, ctx.Err()
	}
}

func (h *Handle) notify(method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rpcEnvelope{JSONRPC: "2.0", Method: method, Params: raw})
	if err != nil {
		return err
	}
	return h.stdin.writeLine(data)
}

// Query submits a prompt turn to the Assistant CLI.
func (h *Handle) Query(ctx context.Context, sessionID, cwd string, blocks []Block) error {
	_, err := h.request(ctx, "assistant/query", queryParams{SessionID: sessionID, Cwd: cwd, Blocks: blocks})
	return err
}

// Events streams inbound Assistant messages until the subprocess closes
// its stdout.
func (h *Handle) Events() <-chan Event { return h.events }

// Interrupt sends a best-effort interrupt notification (spec §4.6 cancel).
func (h *Handle) Interrupt(sessionID string) {
	if err := h.notify("assistant/interrupt", interruptParams{SessionID: sessionID}); err != nil {
		h.logger.Warn("failed to send interrupt to assistant cli", zap.Error(err))
	}
}

// SetMode propagates a mode change best-effort (spec §4.8 session/setMode).
func (h *Handle) SetMode(sessionID, mode string) {
	if err := h.notify("assistant/setMode", setModeParams{SessionID: sessionID, Mode: mode}); err != nil {
		h.logger.Warn("failed to propagate mode change to assistant cli", zap.Error(err))
	}
}

// Connected reports whether the subprocess's stdout is still open.
func (h *Handle) Connected() bool { return h.connected.Load() }

// Close terminates the subprocess.
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		if h.cmd.Process != nil {
			err = h.cmd.Process.Kill()
		}
	})
	return err
}

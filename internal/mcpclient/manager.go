// Package mcpclient implements the external tool-server manager (spec
// §4.4): it spawns third-party MCP tool-provider subprocesses, performs
// the handshake, lists their tools, and routes namespaced calls to them.
//
// Grounded directly on gsh's internal/script/mcp/manager.go, which uses
// the same github.com/modelcontextprotocol/go-sdk/mcp client; generalized
// with the init/request timeouts, stats, and friendly-name table from spec
// §4.4 and confirmed against original_source/src/mcp/external.rs's default
// timeout constants.
package mcpclient

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brokerline/acpd/internal/acperr"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	DefaultInitTimeout    = 60 * time.Second
	DefaultRequestTimeout = 180 * time.Second
)

// ServerConfig describes one external tool server to spawn.
type ServerConfig struct {
	Name    string
	Command string
	Args    []string
	Env     []string
	Cwd     string
}

// Stats are exposed read-only per spec §4.4.
type Stats struct {
	RequestCount   int64
	TotalLatencyMS int64
	ToolCount      int
	ConnectedAt    time.Time
}

type server struct {
	name    string
	session *mcp.ClientSession
	tools   map[string]*mcp.Tool

	requestCount   int64
	totalLatencyNS int64
	connectedAt    time.Time

	mu sync.Mutex // one outstanding request at a time per server
}

// Manager owns the external server subprocesses of one session: each
// Session constructs its own Manager and closes every server in it on
// cleanup (see DESIGN.md). Reference counts only track repeated Acquire
// calls within that session.
type Manager struct {
	mu      sync.RWMutex
	servers map[string]*server
	refs    map[string]int
}

func NewManager() *Manager {
	return &Manager{servers: make(map[string]*server), refs: make(map[string]int)}
}

// Acquire spawns and initializes cfg.Name if it is not already running,
// and increments its reference count; returns its tool list. "acp" is
// reserved for the embedded server and may never be registered here.
func (m *Manager) Acquire(ctx context.Context, cfg ServerConfig) ([]*mcp.Tool, error) {
	if cfg.Name == "acp" {
		return nil, acperr.New(acperr.KindInvalidParams, `server name "acp" is reserved for the embedded tool server`)
	}

	m.mu.Lock()
	if s, ok := m.servers[cfg.Name]; ok {
		m.refs[cfg.Name]++
		m.mu.Unlock()
		return toolList(s), nil
	}
	m.mu.Unlock()

	s, err := spawn(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.servers[cfg.Name] = s
	m.refs[cfg.Name] = 1
	m.mu.Unlock()

	return toolList(s), nil
}

// Release decrements the reference count for name and tears it down once
// it reaches zero.
func (m *Manager) Release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refs[name]--
	if m.refs[name] > 0 {
		return
	}
	if s, ok := m.servers[name]; ok {
		_ = s.session.Close()
		delete(m.servers, name)
		delete(m.refs, name)
	}
}

// CloseAll tears down every server; used on process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, s := range m.servers {
		_ = s.session.Close()
		delete(m.servers, name)
		delete(m.refs, name)
	}
}

// CallTool dispatches fullName (mcp__<server>__<tool>) to the named
// server's connection.
func (m *Manager) CallTool(ctx context.Context, fullName string, arguments map[string]any) (string, bool, error) {
	serverName, toolName, err := ParseFullName(fullName)
	if err != nil {
		return "", true, err
	}

	m.mu.RLock()
	s, ok := m.servers[serverName]
	m.mu.RUnlock()
	if !ok {
		return "", true, acperr.New(acperr.KindExternalRPCError, fmt.Sprintf("unknown external server %q", serverName))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.session.CallTool(reqCtx, &mcp.CallToolParams{Name: toolName, Arguments: arguments})
	elapsed := time.Since(start)

	atomic.AddInt64(&s.requestCount, 1)
	atomic.AddInt64(&s.totalLatencyNS, int64(elapsed))

	if err != nil {
		if reqCtx.Err() != nil {
			return "", true, acperr.Wrap(acperr.KindExternalTimeout, "external tool call timed out", err)
		}
		return "", true, acperr.Wrap(acperr.KindExternalRPCError, "external tool call failed", err)
	}

	return renderContent(res), res.IsError, nil
}

// Stats returns a read-only snapshot for name.
func (m *Manager) Stats(name string) (Stats, bool) {
	m.mu.RLock()
	s, ok := m.servers[name]
	m.mu.RUnlock()
	if !ok {
		return Stats{}, false
	}
	return Stats{
		RequestCount:   atomic.LoadInt64(&s.requestCount),
		TotalLatencyMS: atomic.LoadInt64(&s.totalLatencyNS) / int64(time.Millisecond),
		ToolCount:      len(s.tools),
		ConnectedAt:    s.connectedAt,
	}, true
}

func spawn(ctx context.Context, cfg ServerConfig) (*server, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Cwd
	cmd.Env = cfg.Env

	client := mcp.NewClient(&mcp.Implementation{Name: "acpd", Version: "1.0.0"}, nil)
	transport := &mcp.CommandTransport{Command: cmd}

	initCtx, cancel := context.WithTimeout(ctx, DefaultInitTimeout)
	defer cancel()

	session, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		return nil, acperr.Wrap(acperr.KindExternalSpawnFailed, fmt.Sprintf("spawning external server %q", cfg.Name), err)
	}

	listed, err := session.ListTools(initCtx, nil)
	if err != nil {
		_ = session.Close()
		return nil, acperr.Wrap(acperr.KindExternalInitFailed, fmt.Sprintf("listing tools for %q", cfg.Name), err)
	}

	tools := make(map[string]*mcp.Tool, len(listed.Tools))
	for _, t := range listed.Tools {
		tools[t.Name] = t
	}

	return &server{
		name:        cfg.Name,
		session:     session,
		tools:       tools,
		connectedAt: time.Now(),
	}, nil
}

func toolList(s *server) []*mcp.Tool {
	out := make([]*mcp.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, t)
	}
	return out
}

func renderContent(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// ParseFullName splits "mcp__<server>__<tool>" into its parts (spec §4.1,
// §4.4). <server> may never be "acp".
func ParseFullName(fullName string) (serverName, toolName string, err error) {
	const prefix = "mcp__"
	if !strings.HasPrefix(fullName, prefix) {
		return "", "", acperr.New(acperr.KindInvalidParams, fmt.Sprintf("malformed external tool name %q", fullName))
	}
	rest := strings.TrimPrefix(fullName, prefix)
	parts := strings.SplitN(rest, "__", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", acperr.New(acperr.KindInvalidParams, fmt.Sprintf("malformed external tool name %q", fullName))
	}
	if parts[0] == "acp" {
		return "", "", acperr.New(acperr.KindInvalidParams, `"acp" is reserved for the embedded tool server`)
	}
	return parts[0], parts[1], nil
}

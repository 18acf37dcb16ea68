package terminalclient

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	output   string
	exit     *ExitStatus
	created  bool
	released bool
	killed   bool
}

func (f *fakeConn) CreateTerminal(ctx context.Context, sessionID, command string, args []string, cwd string, env map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = true
	return "term-1", nil
}

func (f *fakeConn) TerminalOutput(ctx context.Context, sessionID, terminalID string) (string, *ExitStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.output, f.exit, nil
}

func (f *fakeConn) WaitForExit(ctx context.Context, sessionID, terminalID string) (ExitStatus, error) {
	return ExitStatus{}, nil
}

func (f *fakeConn) KillTerminal(ctx context.Context, sessionID, terminalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = true
	return nil
}

func (f *fakeConn) ReleaseTerminal(ctx context.Context, sessionID, terminalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
	return nil
}

func (f *fakeConn) finish(output string, exitCode int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.output = output
	code := exitCode
	f.exit = &ExitStatus{ExitCode: &code}
}

func TestRun_StreamsOutputAndReturnsExitCode(t *testing.T) {
	conn := &fakeConn{}
	c := New(conn, "sess-1")

	go func() {
		conn.finish("hello world", 0)
	}()

	var chunks []string
	code, err := c.Run(context.Background(), "echo", []string{"hi"}, "/tmp", nil, func(s string) {
		chunks = append(chunks, s)
	})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"hello world"}, chunks)
	assert.True(t, conn.created)
	assert.True(t, conn.released)
}

func TestRun_CancelledContextKillsAndReleases(t *testing.T) {
	conn := &fakeConn{}
	c := New(conn, "sess-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, err := c.Run(ctx, "sleep", []string{"10"}, "/tmp", nil, nil)
	assert.Error(t, err)
	assert.Equal(t, -1, code)
	assert.True(t, conn.killed)
	assert.True(t, conn.released)
}

func TestKill_DelegatesToConnection(t *testing.T) {
	conn := &fakeConn{}
	c := New(conn, "sess-1")
	require.NoError(t, c.Kill(context.Background(), "term-1"))
	assert.True(t, conn.killed)
}

func TestExitCodeOf(t *testing.T) {
	code := 7
	assert.Equal(t, 7, exitCodeOf(ExitStatus{ExitCode: &code}))
	assert.Equal(t, 128, exitCodeOf(ExitStatus{Signal: "SIGTERM"}))
	assert.Equal(t, -1, exitCodeOf(ExitStatus{}))
}

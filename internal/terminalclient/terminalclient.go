// Package terminalclient is the broker's view of the Client's terminal/*
// ACP requests (create/output/wait_for_exit/kill/release) — recovered from
// original_source's terminal/client.rs and terminal/handle.rs (SPEC_FULL
// §C), which wrap the same five-request lifecycle around a Client-owned
// terminal instead of the broker spawning the process itself.
//
// No other package uses it: nothing in the broker constructs a Client or
// implements Connection, so Bash output always reaches the Client as
// ToolCallUpdate notifications from internal/shell and internal/tools, and
// no terminal/* request is ever sent.
//
// The exact field shapes github.com/coder/acp-go-sdk uses for these
// requests are not confirmed by anything in the retrieval pack, so —
// following the same risk-isolation approach as internal/wire — this
// package defines its own small Connection interface.
package terminalclient

import (
	"context"
	"fmt"
	"time"
)

// pollInterval is how often Run polls terminal/output while a command is
// still running (spec §8's "small internal state machine" note, adapted
// from a line-reader/exit-awaiter pair to a poll loop since the Client,
// not the broker, owns the pipe).
const pollInterval = 100 * time.Millisecond

// ExitStatus is what wait_for_exit / a terminal/output poll reports once
// the command has finished.
type ExitStatus struct {
	ExitCode *int
	Signal   string
}

// Connection is the subset of the live ACP connection's terminal/*
// requests this package drives. The broker has no implementation of it;
// only the tests' fake does.
type Connection interface {
	CreateTerminal(ctx context.Context, sessionID, command string, args []string, cwd string, env map[string]string) (terminalID string, err error)
	TerminalOutput(ctx context.Context, sessionID, terminalID string) (output string, exit *ExitStatus, err error)
	WaitForExit(ctx context.Context, sessionID, terminalID string) (ExitStatus, error)
	KillTerminal(ctx context.Context, sessionID, terminalID string) error
	ReleaseTerminal(ctx context.Context, sessionID, terminalID string) error
}

// Client drives one session's terminal lifecycle against the Client.
type Client struct {
	conn      Connection
	sessionID string
}

// New constructs a terminal client. Callers should only construct one when
// the Client advertised the terminal capability during initialize.
func New(conn Connection, sessionID string) *Client {
	return &Client{conn: conn, sessionID: sessionID}
}

// Run creates a Client-owned terminal, polls its output until the command
// exits or ctx is cancelled, and releases it on the way out. onOutput is
// called with each newly observed output delta, in order.
func (c *Client) Run(ctx context.Context, command string, args []string, cwd string, env map[string]string, onOutput func(chunk string)) (exitCode int, err error) {
	terminalID, err := c.conn.CreateTerminal(ctx, c.sessionID, command, args, cwd, env)
	if err != nil {
		return -1, fmt.Errorf("terminal/create: %w", err)
	}
	defer func() {
		_ = c.conn.ReleaseTerminal(context.Background(), c.sessionID, terminalID)
	}()

	var seen int
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.KillTerminal(context.Background(), c.sessionID, terminalID)
			return -1, ctx.Err()

		case <-ticker.C:
			output, exit, err := c.conn.TerminalOutput(ctx, c.sessionID, terminalID)
			if err != nil {
				return -1, fmt.Errorf("terminal/output: %w", err)
			}
			if len(output) > seen {
				if onOutput != nil {
					onOutput(output[seen:])
				}
				seen = len(output)
			}
			if exit != nil {
				return exitCodeOf(*exit), nil
			}
		}
	}
}

// Kill terminates the terminal backing an in-progress Run call. The
// KillShell tool does not call it; KillShell only acts on the broker's own
// background shells.
func (c *Client) Kill(ctx context.Context, terminalID string) error {
	return c.conn.KillTerminal(ctx, c.sessionID, terminalID)
}

func exitCodeOf(status ExitStatus) int {
	if status.ExitCode != nil {
		return *status.ExitCode
	}
	if status.Signal != "" {
		return 128 // conventional shell signal-exit encoding; exact signal number unknown from ACP's report
	}
	return -1
}

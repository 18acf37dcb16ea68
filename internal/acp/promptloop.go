package acp

import (
	"context"
	"time"

	acpsdk "github.com/coder/acp-go-sdk"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brokerline/acpd/internal/assistant"
	"github.com/brokerline/acpd/internal/session"
)

// runPromptLoop implements spec §4.10's nine-step sequence.
func (d *Dispatcher) runPromptLoop(ctx context.Context, s *session.Session, req acpsdk.PromptRequest) (acpsdk.PromptResponse, error) {
	// Step 2: start configured external servers, best-effort.
	d.startExternalServers(ctx, s)

	// Step 3: connect the Assistant handle on first use.
	if !s.Connected() {
		if err := s.Connect(ctx); err != nil {
			return acpsdk.PromptResponse{}, err
		}
	}

	// Step 4.
	s.ClearCancelled()
	s.Usage.RecordTurn()

	// Step 5.
	blocks := promptBlocks(req.Prompt)
	if len(blocks) == 0 {
		return acpsdk.PromptResponse{StopReason: acpsdk.StopReasonEndTurn}, nil
	}

	// Step 6.
	h := s.Handle()
	if err := h.Query(ctx, s.ID, s.Cwd, blocks); err != nil {
		return acpsdk.PromptResponse{}, err
	}

	// Step 7: stream responses with a poll tick, watching cancellation.
	pending := d.streamAssistant(ctx, s, h)

	// Step 8: flush.
	flush(pending)

	// Step 9.
	return acpsdk.PromptResponse{StopReason: acpsdk.StopReasonEndTurn}, nil
}

// streamAssistant drains Assistant events until end-of-stream, cancellation,
// or the context is done, converting and emitting each as it arrives.
// Returns the count of notifications emitted this turn, for the flush
// discipline (spec §4.8).
func (d *Dispatcher) streamAssistant(ctx context.Context, s *session.Session, h *assistant.Handle) int {
	ticker := time.NewTicker(pollTick)
	defer ticker.Stop()

	emitted := 0
	events := h.Events()

	for {
		select {
		case <-ctx.Done():
			h.Interrupt(s.ID)
			s.Cancel()
			return emitted

		case <-ticker.C:
			if s.Cancelled() {
				h.Interrupt(s.ID)
				return emitted
			}

		case ev, ok := <-events:
			if !ok {
				return emitted // end-of-stream
			}
			if s.Cancelled() {
				return emitted
			}
			for _, u := range s.Converter.Convert(ev) {
				d.emit(s.ID, u)
				emitted++
			}
			if ev.Done {
				return emitted
			}
		}
	}
}

// startExternalServers acquires every session-configured MCP server
// concurrently, best-effort; a failed server is logged and simply omitted
// (spec §7 propagation policy, §8 S6). Concurrent acquisition matters here
// because each server is its own subprocess handshake and a slow or
// unreachable one must not delay the others.
func (d *Dispatcher) startExternalServers(ctx context.Context, s *session.Session) {
	var g errgroup.Group
	for _, cfg := range s.ConfigMCPServers() {
		cfg := cfg
		g.Go(func() error {
			if _, err := s.MCP.Acquire(ctx, cfg); err != nil {
				d.logger.Warn("external tool server unavailable", zap.String("server", cfg.Name), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// flush approximates a transport flush boundary (spec §4.8, §9): a base
// delay plus a per-pending-notification delay, capped, used because the
// underlying stdout writer exposes no explicit flush primitive to wait on.
func flush(pending int) {
	const (
		base    = 10 * time.Millisecond
		perItem = 2 * time.Millisecond
		maxWait = 100 * time.Millisecond
	)
	wait := base + time.Duration(pending)*perItem
	if wait > maxWait {
		wait = maxWait
	}
	time.Sleep(wait)
}

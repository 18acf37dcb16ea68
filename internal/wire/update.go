// Package wire holds the broker's own representation of the ACP
// session-update vocabulary (spec §4.9, §6). Keeping this internal to the
// broker — rather than constructing github.com/coder/acp-go-sdk types
// directly inside the notification converter — means only the router
// (internal/acp) needs to know the SDK's exact wire struct shapes; every
// other package works with these plain Go values.
package wire

// Update is the sealed set of session-update variants the broker ever
// emits (spec §6: AgentMessageChunk, AgentThoughtChunk, ToolCall,
// ToolCallUpdate, Plan, CurrentModeUpdate).
type Update interface{ isUpdate() }

type AgentMessageChunk struct{ Text string }
type AgentThoughtChunk struct{ Text string }

type ToolCallLocation struct{ Path string }

type ToolCall struct {
	ID        string
	Title     string
	Kind      string // read|edit|execute|search|fetch|think|switch-mode|other
	Status    string // pending|in_progress
	Locations []ToolCallLocation
	RawInput  map[string]any
	// Meta carries out-of-band tool-call metadata (spec §4.2), e.g.
	// terminal_info = {terminal_id, cwd} on every Bash announcement.
	Meta map[string]any
}

type DiffContent struct {
	Path    string
	OldText string
	NewText string
}

type ToolCallUpdate struct {
	ID        string
	Status    string // in_progress|completed|failed|cancelled
	Content   string
	Diff      *DiffContent
	RawOutput map[string]any
}

type PlanEntry struct {
	Content    string
	Status     string
	ActiveForm string
}

type Plan struct{ Entries []PlanEntry }

type CurrentModeUpdate struct{ ModeID string }

func (AgentMessageChunk) isUpdate() {}
func (AgentThoughtChunk) isUpdate() {}
func (ToolCall) isUpdate()          {}
func (ToolCallUpdate) isUpdate()    {}
func (Plan) isUpdate()              {}
func (CurrentModeUpdate) isUpdate() {}

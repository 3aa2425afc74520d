// Package event defines the canonical, typed agent events carried by the
// stream. Every wire message is normalized into exactly one of these types
// right after parsing, so nothing downstream branches on payload key names.
package event

// Kind identifies an event type on the wire.
type Kind string

// Recognized event kinds.
const (
	KindToken            Kind = "token"
	KindMessageDone      Kind = "message_done"
	KindToolCall         Kind = "tool_call"
	KindToolResult       Kind = "tool_result"
	KindPhaseChange      Kind = "phase_change"
	KindArtifact         Kind = "artifact"
	KindApprovalRequest  Kind = "approval_request"
	KindPipelineProgress Kind = "pipeline_progress"
	KindError            Kind = "error"
	KindDone             Kind = "done"
)

// Defaults applied to error events with missing fields.
const (
	DefaultErrorCode    = "UNKNOWN"
	DefaultErrorMessage = "An unknown error occurred"
)

// ProgressStatus is the status of a pipeline step.
type ProgressStatus string

const (
	StatusRunning   ProgressStatus = "running"
	StatusCompleted ProgressStatus = "completed"
	StatusError     ProgressStatus = "error"
)

// Event is the closed set of agent events. The unexported marker method
// keeps the set closed to this package.
type Event interface {
	Kind() Kind
	isEvent()
}

// Token is a fragment of assistant text.
type Token struct {
	Text string
}

// MessageDone marks the end of one assistant message.
type MessageDone struct{}

// ToolCall reports that the agent invoked a tool.
type ToolCall struct {
	ToolName string
	Input    map[string]any
}

// ToolResult carries the output of a tool invocation.
type ToolResult struct {
	ToolName string
	Result   string
}

// PhaseChange reports a transition between agent phases.
type PhaseChange struct {
	From string
	To   string
}

// Artifact announces an artifact produced by the agent.
type Artifact struct {
	ID   string
	Type string
}

// ApprovalRequest asks the user to approve an action.
type ApprovalRequest struct {
	Action      string
	Description string
	Options     []string
}

// PipelineProgress reports progress of a multi-step pipeline.
type PipelineProgress struct {
	Step       string
	Label      string
	Status     ProgressStatus
	Detail     string
	Current    int
	Total      int
	StepIndex  int
	TotalSteps int
	OverallPct float64
}

// Error is an error reported by the backend, or raised by the client when it
// gives up reconnecting.
type Error struct {
	Code    string
	Message string
}

// Done is the terminal event of a stream.
type Done struct{}

func (Token) Kind() Kind            { return KindToken }
func (MessageDone) Kind() Kind      { return KindMessageDone }
func (ToolCall) Kind() Kind         { return KindToolCall }
func (ToolResult) Kind() Kind       { return KindToolResult }
func (PhaseChange) Kind() Kind      { return KindPhaseChange }
func (Artifact) Kind() Kind         { return KindArtifact }
func (ApprovalRequest) Kind() Kind  { return KindApprovalRequest }
func (PipelineProgress) Kind() Kind { return KindPipelineProgress }
func (Error) Kind() Kind            { return KindError }
func (Done) Kind() Kind             { return KindDone }

func (Token) isEvent()            {}
func (MessageDone) isEvent()      {}
func (ToolCall) isEvent()         {}
func (ToolResult) isEvent()       {}
func (PhaseChange) isEvent()      {}
func (Artifact) isEvent()         {}
func (ApprovalRequest) isEvent()  {}
func (PipelineProgress) isEvent() {}
func (Error) isEvent()            {}
func (Done) isEvent()             {}

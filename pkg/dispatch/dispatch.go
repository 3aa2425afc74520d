// Package dispatch routes normalized agent events to caller-supplied handlers.
package dispatch

import (
	"fmt"

	"github.com/papercomputeco/agentstream/pkg/event"
)

// Handlers holds one optional callback per event kind. Arguments are already
// normalized; a nil callback ignores its kind.
//
// Callbacks run synchronously on the subscription goroutine, one at a time and
// in arrival order. A callback must not block for long: the next line is not
// read until it returns.
type Handlers struct {
	OnToken            func(text string)
	OnMessageDone      func()
	OnToolCall         func(toolName string, input map[string]any)
	OnToolResult       func(toolName string, result string)
	OnPhaseChange      func(fromPhase string, toPhase string)
	OnArtifact         func(artifactID string, artifactType string)
	OnApprovalRequest  func(action string, description string, options []string)
	OnPipelineProgress func(progress event.PipelineProgress)
	OnError            func(errorCode string, message string)
	OnDone             func()
}

// Dispatch invokes the handler matching ev.
func Dispatch(ev event.Event, h Handlers) {
	switch e := ev.(type) {
	case event.Token:
		if h.OnToken != nil {
			h.OnToken(e.Text)
		}
	case event.MessageDone:
		if h.OnMessageDone != nil {
			h.OnMessageDone()
		}
	case event.ToolCall:
		if h.OnToolCall != nil {
			h.OnToolCall(e.ToolName, e.Input)
		}
	case event.ToolResult:
		if h.OnToolResult != nil {
			h.OnToolResult(e.ToolName, e.Result)
		}
	case event.PhaseChange:
		if h.OnPhaseChange != nil {
			h.OnPhaseChange(e.From, e.To)
		}
	case event.Artifact:
		if h.OnArtifact != nil {
			h.OnArtifact(e.ID, e.Type)
		}
	case event.ApprovalRequest:
		if h.OnApprovalRequest != nil {
			h.OnApprovalRequest(e.Action, e.Description, e.Options)
		}
	case event.PipelineProgress:
		if h.OnPipelineProgress != nil {
			h.OnPipelineProgress(e)
		}
	case event.Error:
		if h.OnError != nil {
			h.OnError(e.Code, e.Message)
		}
	case event.Done:
		if h.OnDone != nil {
			h.OnDone()
		}
	default:
		// event.Event is sealed; reaching this means a kind was added to
		// pkg/event without a case here.
		panic(fmt.Sprintf("dispatch: unhandled event type %T", ev))
	}
}

// Chain returns Handlers that invoke each of hs in order for every event.
func Chain(hs ...Handlers) Handlers {
	return Handlers{
		OnToken: func(text string) {
			for _, h := range hs {
				if h.OnToken != nil {
					h.OnToken(text)
				}
			}
		},
		OnMessageDone: func() {
			for _, h := range hs {
				if h.OnMessageDone != nil {
					h.OnMessageDone()
				}
			}
		},
		OnToolCall: func(toolName string, input map[string]any) {
			for _, h := range hs {
				if h.OnToolCall != nil {
					h.OnToolCall(toolName, input)
				}
			}
		},
		OnToolResult: func(toolName string, result string) {
			for _, h := range hs {
				if h.OnToolResult != nil {
					h.OnToolResult(toolName, result)
				}
			}
		},
		OnPhaseChange: func(fromPhase string, toPhase string) {
			for _, h := range hs {
				if h.OnPhaseChange != nil {
					h.OnPhaseChange(fromPhase, toPhase)
				}
			}
		},
		OnArtifact: func(artifactID string, artifactType string) {
			for _, h := range hs {
				if h.OnArtifact != nil {
					h.OnArtifact(artifactID, artifactType)
				}
			}
		},
		OnApprovalRequest: func(action string, description string, options []string) {
			for _, h := range hs {
				if h.OnApprovalRequest != nil {
					h.OnApprovalRequest(action, description, options)
				}
			}
		},
		OnPipelineProgress: func(progress event.PipelineProgress) {
			for _, h := range hs {
				if h.OnPipelineProgress != nil {
					h.OnPipelineProgress(progress)
				}
			}
		},
		OnError: func(errorCode string, message string) {
			for _, h := range hs {
				if h.OnError != nil {
					h.OnError(errorCode, message)
				}
			}
		},
		OnDone: func() {
			for _, h := range hs {
				if h.OnDone != nil {
					h.OnDone()
				}
			}
		},
	}
}

package event

import (
	"github.com/spf13/cast"

	"github.com/papercomputeco/agentstream/pkg/sse"
)

// FromMessage normalizes a parsed wire message into its canonical Event.
//
// The backend has used more than one key name for several fields over time;
// each field lists its accepted keys in order of preference. Missing fields
// take their zero value (or the documented default for error events) so that
// any well-formed envelope normalizes. Unknown kinds return ok=false.
func FromMessage(msg sse.Message) (Event, bool) {
	if msg.Done {
		return Done{}, true
	}

	p := payload(msg.Payload)

	switch Kind(msg.Kind) {
	case KindToken:
		return Token{Text: p.str("content", "text")}, true

	case KindMessageDone:
		return MessageDone{}, true

	case KindToolCall:
		return ToolCall{
			ToolName: p.str("tool", "tool_name"),
			Input:    p.obj("input", "args"),
		}, true

	case KindToolResult:
		return ToolResult{
			ToolName: p.str("tool", "tool_name"),
			Result:   p.str("result", "output"),
		}, true

	case KindPhaseChange:
		return PhaseChange{
			From: p.str("from", "from_phase"),
			To:   p.str("to", "to_phase"),
		}, true

	case KindArtifact:
		return Artifact{
			ID:   p.str("artifact_id", "id"),
			Type: p.str("artifact_type", "type"),
		}, true

	case KindApprovalRequest:
		return ApprovalRequest{
			Action:      p.str("action"),
			Description: p.str("description"),
			Options:     p.strs("options"),
		}, true

	case KindPipelineProgress:
		return PipelineProgress{
			Step:       p.str("step"),
			Label:      p.str("label"),
			Status:     ProgressStatus(p.str("status")),
			Detail:     p.str("detail"),
			Current:    p.integer("current"),
			Total:      p.integer("total"),
			StepIndex:  p.integer("step_index", "stepIndex"),
			TotalSteps: p.integer("total_steps", "totalSteps"),
			OverallPct: p.float("overall_pct", "overallPct"),
		}, true

	case KindError:
		return Error{
			Code:    p.strOr(DefaultErrorCode, "code", "error_code"),
			Message: p.strOr(DefaultErrorMessage, "message", "error"),
		}, true

	case KindDone:
		return Done{}, true

	default:
		return nil, false
	}
}

// payload is a loosely typed JSON object with lenient accessors.
type payload map[string]any

// lookup returns the first non-nil value among keys.
func (p payload) lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (p payload) str(keys ...string) string {
	return p.strOr("", keys...)
}

// strOr returns the first non-empty string among keys, so an empty value
// under a preferred key does not hide a populated fallback.
func (p payload) strOr(def string, keys ...string) string {
	for _, k := range keys {
		v, ok := p.lookup(k)
		if !ok {
			continue
		}
		if s, err := cast.ToStringE(v); err == nil && s != "" {
			return s
		}
	}
	return def
}

func (p payload) integer(keys ...string) int {
	v, ok := p.lookup(keys...)
	if !ok {
		return 0
	}
	return cast.ToInt(v)
}

func (p payload) float(keys ...string) float64 {
	v, ok := p.lookup(keys...)
	if !ok {
		return 0
	}
	return cast.ToFloat64(v)
}

func (p payload) strs(keys ...string) []string {
	v, ok := p.lookup(keys...)
	if !ok {
		return []string{}
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		return []string{}
	}
	return out
}

func (p payload) obj(keys ...string) map[string]any {
	v, ok := p.lookup(keys...)
	if !ok {
		return map[string]any{}
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return map[string]any{}
	}
	return m
}

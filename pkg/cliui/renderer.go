package cliui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/papercomputeco/agentstream/pkg/dispatch"
	"github.com/papercomputeco/agentstream/pkg/event"
	"github.com/papercomputeco/agentstream/pkg/stream"
	"github.com/papercomputeco/agentstream/pkg/utils"
)

// maxResultWidth bounds how much of a tool result is echoed.
const maxResultWidth = 200

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithMarkdown buffers assistant tokens and renders each completed message as
// markdown instead of echoing tokens as they arrive.
func WithMarkdown(markdown bool) RendererOption {
	return func(r *Renderer) {
		r.markdown = markdown
	}
}

// WithColor forces color on or off. By default color is enabled only when
// the writer is a terminal.
func WithColor(color bool) RendererOption {
	return func(r *Renderer) {
		r.color = color
	}
}

// Renderer prints a live agent stream to a terminal. Its handlers and
// Observe must be called from a single goroutine, which is what a
// stream.Subscription guarantees.
type Renderer struct {
	w        io.Writer
	markdown bool
	color    bool

	tool     lipgloss.Style
	dim      lipgloss.Style
	phase    lipgloss.Style
	warn     lipgloss.Style
	errStyle lipgloss.Style
	ok       lipgloss.Style

	message strings.Builder
	midLine bool
}

// NewRenderer creates a Renderer writing to w.
func NewRenderer(w io.Writer, opts ...RendererOption) *Renderer {
	r := &Renderer{w: w, color: IsTerminal(w)}
	for _, opt := range opts {
		opt(r)
	}

	lr := lipgloss.NewRenderer(w)
	if r.color {
		lr.SetColorProfile(termenv.ANSI256)
	} else {
		lr.SetColorProfile(termenv.Ascii)
	}

	r.tool = lr.NewStyle().Bold(true).Foreground(colorCyan)
	r.dim = lr.NewStyle().Foreground(colorGray)
	r.phase = lr.NewStyle().Bold(true).Foreground(colorPink)
	r.warn = lr.NewStyle().Foreground(colorAmber)
	r.errStyle = lr.NewStyle().Bold(true).Foreground(colorRed)
	r.ok = lr.NewStyle().Foreground(colorGreen)

	return r
}

// Handlers returns dispatch handlers that print every event kind.
func (r *Renderer) Handlers() dispatch.Handlers {
	return dispatch.Handlers{
		OnToken:            r.token,
		OnMessageDone:      r.messageDone,
		OnToolCall:         r.toolCall,
		OnToolResult:       r.toolResult,
		OnPhaseChange:      r.phaseChange,
		OnArtifact:         r.artifact,
		OnApprovalRequest:  r.approvalRequest,
		OnPipelineProgress: r.pipelineProgress,
		OnError:            r.fail,
		OnDone:             r.done,
	}
}

// Observe prints reconnect notices. It is meant to be passed to
// stream.WithStateObserver.
func (r *Renderer) Observe(t stream.Transition) {
	if t.To != stream.StateReconnecting {
		return
	}
	// Out of retries: the MAX_RETRIES error event follows, so only the cause
	// is shown.
	if !t.Final {
		r.line(r.warn.Render(fmt.Sprintf("↻ reconnecting in %s (retry %d)", FormatDuration(t.Delay), t.Attempt)))
	}
	if t.Err != nil {
		r.line(r.dim.Render("  " + t.Err.Error()))
	}
}

func (r *Renderer) token(text string) {
	if r.markdown {
		r.message.WriteString(text)
		return
	}
	if text == "" {
		return
	}
	fmt.Fprint(r.w, text)
	r.midLine = !strings.HasSuffix(text, "\n")
}

func (r *Renderer) messageDone() {
	if r.markdown {
		r.flushMarkdown()
		return
	}
	r.endLine()
}

func (r *Renderer) toolCall(toolName string, input map[string]any) {
	args := ""
	if len(input) > 0 {
		if b, err := json.Marshal(input); err == nil {
			args = string(b)
		}
	}
	r.line(fmt.Sprintf("%s %s %s", r.tool.Render("→"), r.tool.Render(toolName), r.dim.Render(args)))
}

func (r *Renderer) toolResult(toolName string, result string) {
	r.line(fmt.Sprintf("%s %s %s", r.tool.Render("←"), r.tool.Render(toolName), r.dim.Render(utils.Truncate(result, maxResultWidth))))
}

func (r *Renderer) phaseChange(from, to string) {
	if from == "" {
		r.line(r.phase.Render("■ " + to))
		return
	}
	r.line(r.phase.Render(fmt.Sprintf("■ %s → %s", from, to)))
}

func (r *Renderer) artifact(id, artifactType string) {
	r.line(fmt.Sprintf("%s %s %s", r.ok.Render("◆"), artifactType, r.dim.Render(id)))
}

func (r *Renderer) approvalRequest(action, description string, options []string) {
	r.line(fmt.Sprintf("%s %s", r.warn.Render("? "+action), description))
	if len(options) > 0 {
		r.line(r.dim.Render("  [" + strings.Join(options, " / ") + "]"))
	}
}

func (r *Renderer) pipelineProgress(p event.PipelineProgress) {
	var b strings.Builder
	if p.TotalSteps > 0 {
		fmt.Fprintf(&b, "[%d/%d] ", p.StepIndex+1, p.TotalSteps)
	}
	label := p.Label
	if label == "" {
		label = p.Step
	}
	b.WriteString(label)

	status := string(p.Status)
	switch p.Status {
	case event.StatusCompleted:
		status = r.ok.Render(status)
	case event.StatusError:
		status = r.errStyle.Render(status)
	default:
		status = r.dim.Render(status)
	}
	fmt.Fprintf(&b, " %s", status)

	if p.Total > 0 {
		fmt.Fprintf(&b, " %d/%d", p.Current, p.Total)
	}
	fmt.Fprintf(&b, " %.0f%%", p.OverallPct)
	if p.Detail != "" {
		b.WriteString(" " + r.dim.Render(p.Detail))
	}
	r.line(b.String())
}

func (r *Renderer) fail(code, message string) {
	r.line(fmt.Sprintf("%s %s %s", r.errStyle.Render("✗"), r.errStyle.Render(code), message))
}

func (r *Renderer) done() {
	if r.markdown {
		r.flushMarkdown()
	}
	r.line(r.ok.Render("✓") + " " + r.dim.Render("stream complete"))
}

func (r *Renderer) flushMarkdown() {
	content := r.message.String()
	r.message.Reset()
	if strings.TrimSpace(content) == "" {
		return
	}

	style := glamour.WithStandardStyle("notty")
	if r.color {
		style = glamour.WithAutoStyle()
	}
	rendered, err := renderMarkdown(content, style)
	if err != nil {
		rendered = content
	}
	r.endLine()
	fmt.Fprint(r.w, rendered)
	if !strings.HasSuffix(rendered, "\n") {
		fmt.Fprintln(r.w)
	}
}

// line prints s on its own line, closing any partial token line first.
func (r *Renderer) line(s string) {
	r.endLine()
	fmt.Fprintln(r.w, s)
}

func (r *Renderer) endLine() {
	if r.midLine {
		fmt.Fprintln(r.w)
		r.midLine = false
	}
}

// Package cliui provides terminal UI helpers for agentstream commands: step
// indicators, key/value styles, markdown rendering and the live event renderer
// used by "agentstream watch".
package cliui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const (
	colorGreen = lipgloss.Color("82")
	colorRed   = lipgloss.Color("196")
	colorGray  = lipgloss.Color("245")
	colorCyan  = lipgloss.Color("87")
	colorPink  = lipgloss.Color("212")
	colorAmber = lipgloss.Color("214")
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(colorGreen).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(colorRed).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(colorGray)
	KeyStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	ValueStyle   = lipgloss.NewStyle().Foreground(colorPink)
	DimStyle     = lipgloss.NewStyle().Foreground(colorGray)
	spinnerStyle = lipgloss.NewStyle().Foreground(colorGreen)
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step runs fn and prints msg with a ✓ or ✗ and the elapsed time. On a
// terminal a spinner animates in place while fn runs; elsewhere only the
// final line is written.
func Step(w io.Writer, msg string, fn func() error) error {
	tty := IsTerminal(w)

	stop := func() {}
	if tty {
		stop = spin(w, msg)
	}

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	stop()

	if tty {
		fmt.Fprint(w, "\r")
	}
	fmt.Fprintf(w, "  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)

	return err
}

// spin animates a spinner before msg until the returned func is called. The
// func returns once the animation goroutine has stopped writing.
func spin(w io.Writer, msg string) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for frame := 0; ; frame++ {
			fmt.Fprintf(w, "\r  %s %s", spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), msg)

			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// renderMarkdown renders content with glamour, wrapped at 80 columns. On
// error the content is returned unchanged alongside the error.
func renderMarkdown(content string, style glamour.TermRendererOption) (string, error) {
	r, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}

// Package cliui provides reusable terminal UI helpers (spinners, step indicators,
// key/value listings, markdown rendering) for callctx CLI commands.
package cliui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	ScoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time. Writers that are not terminals only
// get the final line.
func Step(w io.Writer, msg string, fn func() error) error {
	if !IsTerminal(w) {
		start := time.Now()
		err := fn()
		fmt.Fprintf(w, "  %s %s %s\n",
			Mark(err),
			msg,
			StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(time.Since(start)))),
		)
		return err
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	var mu sync.Mutex

	go func() {
		defer close(stopped)
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)
	<-stopped

	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
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

// KeyValue writes one aligned "key  value" line. Keys are padded to width.
func KeyValue(w io.Writer, width int, key, value string) {
	pad := ""
	if n := width - len(key); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprintf(w, "  %s%s  %s\n", KeyStyle.Render(key), pad, ValueStyle.Render(value))
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// ContextMarkdown formats an assembled context block as markdown, with a
// heading that names how items were ordered.
func ContextMarkdown(scope, mode, block string, items, tokens int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Context for %s\n\n", scope)
	fmt.Fprintf(&b, "_%d item(s), ~%d tokens, %s ordering_\n\n", items, tokens, mode)
	if block == "" {
		b.WriteString("No history found.\n")
		return b.String()
	}
	b.WriteString("```text\n")
	b.WriteString(strings.TrimRight(block, "\n"))
	b.WriteString("\n```\n")
	return b.String()
}

// RenderMarkdown renders markdown content for terminal display using glamour.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
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

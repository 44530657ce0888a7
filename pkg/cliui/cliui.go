// Package cliui provides reusable terminal UI helpers (marks, styles, progress
// lines, markdown rendering) for devlens CLI commands.
package cliui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/devlens/gateway/pkg/utils"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	RetryMark   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("↻")
	StepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle    = lipgloss.NewStyle().Bold(true)
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	DimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	barFilled = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	barEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

const (
	barWidth         = 20
	maxMessageLength = 60
)

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

// Bar renders a fixed width progress bar for a 0-100 percentage.
func Bar(percent int) string {
	percent = min(max(percent, 0), 100)
	filled := percent * barWidth / 100
	return barFilled.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", barWidth-filled))
}

// ProgressLine renders one indexing progress update, e.g.
//
//	[████░░░░] 40%  parsing  Parsed 120 files  (eta 12s)
func ProgressLine(stage string, percent int, message string, eta *int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %3d%%  %s", Bar(percent), percent, KeyStyle.Render(stage))
	if message != "" {
		fmt.Fprintf(&b, "  %s", utils.Truncate(message, maxMessageLength))
	}
	if eta != nil {
		b.WriteString("  " + StepStyle.Render(fmt.Sprintf("(eta %s)", FormatDuration(time.Duration(*eta)*time.Second))))
	}
	return b.String()
}

// RenderMarkdown renders markdown content for terminal display using glamour.
// On failure the unrendered content is returned with the error.
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

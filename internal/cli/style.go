package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pinwater/pinwatch/internal/core/domain"
)

var (
	green  = lipgloss.Color("#10B981")
	red    = lipgloss.Color("#EF4444")
	yellow = lipgloss.Color("#F59E0B")
	dim    = lipgloss.Color("#6B7280")
	purple = lipgloss.Color("#7C3AED")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(purple)
	dimStyle   = lipgloss.NewStyle().Foreground(dim)
	liveStyle  = lipgloss.NewStyle().Foreground(green).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(yellow)
	deadStyle  = lipgloss.NewStyle().Foreground(red).Bold(true)

	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#374151")).
			Padding(0, 2)
)

func statusText(s domain.Status) string {
	switch s {
	case domain.StatusLive:
		return liveStyle.Render(string(s))
	case domain.StatusDegraded:
		return warnStyle.Render(string(s))
	case domain.StatusDead:
		return deadStyle.Render(string(s))
	default:
		return dimStyle.Render(string(s))
	}
}

// summary renders a boxed title with one "label: value" line per pair.
func summary(title string, pairs ...any) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, "\n%s %v", dimStyle.Render(fmt.Sprintf("%-12s", fmt.Sprint(pairs[i])+":")), pairs[i+1])
	}
	return summaryBox.Render(b.String())
}

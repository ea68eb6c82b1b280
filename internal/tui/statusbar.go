package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func renderStatusBar(done, total, failed int, width int, finished bool) string {
	left := fmt.Sprintf(" %d/%d topics", done, total)
	if failed > 0 {
		left += " · " + errorStyle.Render(fmt.Sprintf("%d failed", failed))
	}

	right := " ctrl+c cancel "
	if finished {
		right = " done "
	}

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + fmt.Sprintf("%*s", gap, "") + right

	return statusBarStyle.Width(max(width, lipgloss.Width(bar))).Render(bar)
}

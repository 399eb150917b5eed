package cli

import (
	"opsflow/internal/history"

	"github.com/charmbracelet/lipgloss"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Status labels used in result tables.
const (
	LabelPass = "PASS"
	LabelFail = "FAIL"
	LabelSkip = "SKIP"
	LabelRun  = "RUNNING"
)

func statusLabel(success, skipped bool) string {
	switch {
	case skipped:
		return skipStyle.Render(LabelSkip)
	case success:
		return passStyle.Render(LabelPass)
	default:
		return failStyle.Render(LabelFail)
	}
}

func runLabel(rec history.Record) string {
	if rec.Status == history.StatusRunning {
		return dimStyle.Render(LabelRun)
	}
	return statusLabel(rec.Success, false)
}

func healthLabel(healthy bool) string {
	if healthy {
		return passStyle.Render("healthy")
	}
	return failStyle.Render("unhealthy")
}

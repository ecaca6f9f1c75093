// ABOUTME: One-line status bar showing the artifact title, the active tab, and the preview phase.
// ABOUTME: Key hints fill the remaining width.
package tui

import (
	"fmt"

	"github.com/2389-research/vellum/artifact"
	"github.com/2389-research/vellum/preview"
	"github.com/charmbracelet/lipgloss"
)

// StatusBarModel renders the bottom status line.
type StatusBarModel struct {
	title  string
	tab    artifact.Tab
	status preview.Status
	notice string
	width  int
}

// NewStatusBarModel creates an empty status bar.
func NewStatusBarModel() StatusBarModel {
	return StatusBarModel{tab: artifact.TabCode, status: preview.Status{Phase: preview.PhaseIdle}}
}

// SetWidth sets the bar width.
func (m *StatusBarModel) SetWidth(w int) { m.width = w }

// SetArtifact updates the title and tab from a snapshot.
func (m *StatusBarModel) SetArtifact(snap artifact.Snapshot) {
	m.title = ""
	if snap.Open {
		m.title = snap.Artifact.Title
	}
	m.tab = snap.Tab
}

// SetStatus updates the preview status.
func (m *StatusBarModel) SetStatus(st preview.Status) { m.status = st }

// SetNotice shows a transient message, such as a failed action.
func (m *StatusBarModel) SetNotice(s string) { m.notice = s }

// View renders the bar.
func (m StatusBarModel) View() string {
	title := m.title
	if title == "" {
		title = "no artifact"
	}
	phase := StyleForPhase(m.status.Phase).Render(string(m.status.Phase))
	left := fmt.Sprintf("%s | %s | preview: %s", title, m.tab, phase)
	if m.notice != "" {
		left += " | " + FailedStyle.Render(m.notice)
	}
	hints := HintStyle.Render("↑↓ move  enter open  n/p file  tab view  r retry  q quit")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(hints) - 2
	line := left
	if gap > 0 {
		line += fmt.Sprintf("%*s", gap, "") + hints
	}
	return StatusBarStyle.Width(max(m.width, 1)).Render(line)
}

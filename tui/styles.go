// ABOUTME: Lipgloss styles for the viewer panels, preview phases, and the status bar.
// ABOUTME: StyleForPhase maps a preview phase to its display style.
package tui

import (
	"github.com/2389-research/vellum/preview"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Panel borders
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	FocusedBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("170"))

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Tree rows
	FolderStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	FileStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	ActiveFileStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	CursorStyle     = lipgloss.NewStyle().Background(lipgloss.Color("237"))
	IncompleteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	// Preview phases
	IdleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	WorkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	ReadyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	FailedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(10)
	HintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
)

// StyleForPhase returns the style used to display a preview phase.
func StyleForPhase(p preview.Phase) lipgloss.Style {
	switch p {
	case preview.PhaseReady:
		return ReadyStyle
	case preview.PhaseFailed:
		return FailedStyle
	case preview.PhasePreparing, preview.PhaseInstallingDependencies, preview.PhaseStartingServer:
		return WorkingStyle
	default:
		return IdleStyle
	}
}

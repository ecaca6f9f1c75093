// ABOUTME: File tree panel listing the visible rows of the open artifact with a movable cursor.
// ABOUTME: Folders toggle and files select through the app model; the panel only tracks the cursor.
package tui

import (
	"strings"

	"github.com/2389-research/vellum/artifact"
	"github.com/charmbracelet/lipgloss"
)

// TreePanelModel renders the artifact's file tree.
type TreePanelModel struct {
	rows     []artifact.Row
	cursor   int
	activeID string
	complete map[string]bool
	width    int
	height   int
	focused  bool
}

// NewTreePanelModel creates an empty tree panel.
func NewTreePanelModel() TreePanelModel {
	return TreePanelModel{complete: make(map[string]bool)}
}

// SetSnapshot rebuilds rows from the store snapshot. The cursor stays on the
// same path when it is still visible, otherwise it moves to the active file.
func (m *TreePanelModel) SetSnapshot(snap artifact.Snapshot) {
	var keep string
	if sel, ok := m.Selected(); ok {
		keep = sel.Path
	}
	m.rows = nil
	m.activeID = ""
	m.complete = make(map[string]bool)
	if !snap.Open {
		m.cursor = 0
		return
	}
	m.activeID = snap.ActiveFileID
	for _, f := range snap.Artifact.Files {
		m.complete[f.ID] = f.IsComplete
	}
	m.rows = artifact.VisibleRows(snap.Artifact.Files, snap.IsExpanded)

	m.cursor = 0
	for i, row := range m.rows {
		if keep != "" && row.Path == keep {
			m.cursor = i
			return
		}
	}
	for i, row := range m.rows {
		if row.FileID == m.activeID {
			m.cursor = i
			return
		}
	}
}

// Rows returns the visible rows.
func (m TreePanelModel) Rows() []artifact.Row {
	return m.rows
}

// Cursor returns the cursor index.
func (m TreePanelModel) Cursor() int {
	return m.cursor
}

// Selected returns the row under the cursor.
func (m TreePanelModel) Selected() (artifact.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return artifact.Row{}, false
	}
	return m.rows[m.cursor], true
}

// MoveUp moves the cursor up one row.
func (m *TreePanelModel) MoveUp() {
	if m.cursor > 0 {
		m.cursor--
	}
}

// MoveDown moves the cursor down one row.
func (m *TreePanelModel) MoveDown() {
	if m.cursor < len(m.rows)-1 {
		m.cursor++
	}
}

// SetSize sets the panel dimensions including the border.
func (m *TreePanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused marks the panel as receiving navigation keys.
func (m *TreePanelModel) SetFocused(focused bool) {
	m.focused = focused
}

// View renders the tree inside a bordered panel.
func (m TreePanelModel) View() string {
	innerW := max(m.width-2, 1)
	innerH := max(m.height-3, 1)

	var lines []string
	lines = append(lines, TitleStyle.Render("Files"))
	if len(m.rows) == 0 {
		lines = append(lines, HintStyle.Render("no artifact open"))
	}

	// scroll so the cursor stays visible
	start := 0
	if m.cursor >= innerH {
		start = m.cursor - innerH + 1
	}
	for i := start; i < len(m.rows) && i < start+innerH; i++ {
		lines = append(lines, m.renderRow(i, innerW))
	}

	style := BorderStyle
	if m.focused {
		style = FocusedBorderStyle
	}
	return style.Width(innerW).Height(innerH + 1).Render(strings.Join(lines, "\n"))
}

func (m TreePanelModel) renderRow(i, width int) string {
	row := m.rows[i]
	indent := strings.Repeat("  ", row.Depth)
	var label string
	switch {
	case row.IsDir && row.Expanded:
		label = FolderStyle.Render("▾ " + row.Name + "/")
	case row.IsDir:
		label = FolderStyle.Render("▸ " + row.Name + "/")
	case row.FileID == m.activeID:
		label = ActiveFileStyle.Render("● " + row.Name)
	default:
		label = FileStyle.Render("  " + row.Name)
	}
	if !row.IsDir && !m.complete[row.FileID] {
		label += IncompleteStyle.Render(" !")
	}
	line := lipgloss.NewStyle().MaxWidth(width).Render(indent + label)
	if i == m.cursor && m.focused {
		return CursorStyle.Render(line)
	}
	return line
}

// ABOUTME: Scrollable content panel showing the active tab: file source, preview status, or a file summary.
// ABOUTME: Uses the bubbles viewport for scrolling.
package tui

import (
	"fmt"
	"strings"

	"github.com/2389-research/vellum/artifact"
	"github.com/2389-research/vellum/preview"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// ContentPanelModel renders the tab selected in the store.
type ContentPanelModel struct {
	viewport viewport.Model
	title    string
	width    int
	height   int
}

// NewContentPanelModel creates an empty content panel.
func NewContentPanelModel() ContentPanelModel {
	return ContentPanelModel{viewport: viewport.New(80, 10)}
}

// SetSize sets the panel dimensions including the border.
func (m *ContentPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = max(w-2, 1)
	m.viewport.Height = max(h-3, 1)
}

// Title returns the panel heading.
func (m ContentPanelModel) Title() string {
	return m.title
}

// Content returns the unstyled body currently shown.
func (m ContentPanelModel) Content() string {
	return m.viewport.View()
}

// Refresh rebuilds the body from the snapshot and the preview status. The
// scroll position resets when the heading changes.
func (m *ContentPanelModel) Refresh(snap artifact.Snapshot, st preview.Status) {
	title, body := renderTab(snap, st)
	if title != m.title {
		m.viewport.GotoTop()
	}
	m.title = title
	m.viewport.SetContent(body)
}

// Update forwards scrolling keys to the viewport.
func (m ContentPanelModel) Update(msg tea.Msg) (ContentPanelModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the panel.
func (m ContentPanelModel) View() string {
	heading := TitleStyle.Render(m.title)
	return BorderStyle.Width(max(m.width-2, 1)).Render(heading + "\n" + m.viewport.View())
}

func renderTab(snap artifact.Snapshot, st preview.Status) (string, string) {
	if !snap.Open {
		return "vellum", HintStyle.Render("Open an artifact to view its files.")
	}
	switch snap.Tab {
	case artifact.TabPreview:
		return "Preview", previewBody(st)
	case artifact.TabFiles:
		return "Files", filesBody(snap.Artifact)
	default:
		f, ok := snap.ActiveFile()
		if !ok {
			return "Code", ""
		}
		return codeTitle(f, snap.Editing), codeBody(f, snap)
	}
}

func codeTitle(f artifact.File, editing bool) string {
	title := f.Path + " (" + f.Language + ")"
	if editing {
		title += " [editing]"
	}
	return title
}

func codeBody(f artifact.File, snap artifact.Snapshot) string {
	content := f.Content
	if snap.Editing {
		content = snap.Draft
	}
	var b strings.Builder
	for i, line := range strings.Split(content, "\n") {
		fmt.Fprintf(&b, "%4d  %s\n", i+1, line)
	}
	if len(f.Challenges) > 0 {
		b.WriteString("\n")
		b.WriteString(IncompleteStyle.Render("Challenges"))
		b.WriteString("\n")
		for _, c := range f.Challenges {
			fmt.Fprintf(&b, "  [%s] %s\n", c.Difficulty, c.Description)
			for _, h := range c.Hints {
				fmt.Fprintf(&b, "      hint: %s\n", h)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func previewBody(st preview.Status) string {
	var b strings.Builder
	b.WriteString(LabelStyle.Render("Phase"))
	b.WriteString(StyleForPhase(st.Phase).Render(string(st.Phase)))
	b.WriteString("\n")
	if st.URL != "" {
		b.WriteString(LabelStyle.Render("URL"))
		b.WriteString(st.URL)
		b.WriteString("\n")
	}
	if f := st.Failure; f != nil {
		b.WriteString(LabelStyle.Render("Reason"))
		b.WriteString(string(f.Reason))
		b.WriteString("\n\n")
		b.WriteString(f.Guidance())
		b.WriteString("\n")
		if f.StaticFallback() {
			b.WriteString(HintStyle.Render("Run with -static to write a static preview."))
			b.WriteString("\n")
		}
		b.WriteString(HintStyle.Render("Press r to retry."))
	}
	return strings.TrimRight(b.String(), "\n")
}

func filesBody(a artifact.Artifact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", a.Title)
	if a.Description != "" {
		fmt.Fprintf(&b, "%s\n", a.Description)
	}
	b.WriteString("\n")
	for _, f := range a.Files {
		mark := "✓"
		if !f.IsComplete {
			mark = "!"
		}
		fmt.Fprintf(&b, "%s %-40s %-12s %d lines\n", mark, f.Path, f.Language, strings.Count(f.Content, "\n")+1)
	}
	return strings.TrimRight(b.String(), "\n")
}

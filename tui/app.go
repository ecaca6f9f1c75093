// ABOUTME: Top-level Bubble Tea AppModel for browsing an open artifact and watching its live preview.
// ABOUTME: Routes keys to the store and orchestrator, and refreshes panels from store and preview events.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389-research/vellum/artifact"
	"github.com/2389-research/vellum/preview"
	"github.com/2389-research/vellum/studio"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var tabCycle = []artifact.Tab{artifact.TabCode, artifact.TabPreview, artifact.TabFiles}

// AppModel composes the tree, content, and status bar panels over a studio.
type AppModel struct {
	tree      TreePanelModel
	content   ContentPanelModel
	statusBar StatusBarModel

	studio   *studio.Studio
	storeCh  <-chan artifact.Event
	previews *preview.Subscription

	status preview.Status
	width  int
	height int
}

// NewAppModel subscribes to the studio's store and preview orchestrator and
// builds the initial panels. Call Close when the program exits.
func NewAppModel(st *studio.Studio) AppModel {
	m := AppModel{
		tree:      NewTreePanelModel(),
		content:   NewContentPanelModel(),
		statusBar: NewStatusBarModel(),
		studio:    st,
		storeCh:   st.Store().Subscribe(),
		previews:  st.Previews().Subscribe(),
	}
	m.tree.SetFocused(true)
	_, m.status = st.Previews().Status()
	m.refresh()
	return m
}

// Close releases the event subscriptions.
func (m AppModel) Close() {
	m.studio.Store().Unsubscribe(m.storeCh)
	m.previews.Close()
}

// Init implements tea.Model.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(
		WaitForStoreEventCmd(m.storeCh),
		WaitForPreviewEventCmd(m.previews),
	)
}

// Update implements tea.Model.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case StoreEventMsg:
		m.refresh()
		return m, WaitForStoreEventCmd(m.storeCh)

	case PreviewEventMsg:
		if id, _ := m.studio.Previews().Status(); id == msg.Event.SessionID {
			m.status = msg.Event.Status
			m.refresh()
		}
		return m, WaitForPreviewEventCmd(m.previews)

	case RetryResultMsg:
		if msg.Err != nil {
			m.statusBar.SetNotice(fmt.Sprintf("retry: %v", msg.Err))
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}
	return m, nil
}

func (m AppModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	store := m.studio.Store()
	m.statusBar.SetNotice("")

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.tree.MoveUp()
	case "down", "j":
		m.tree.MoveDown()
	case "enter", " ":
		row, ok := m.tree.Selected()
		if !ok {
			break
		}
		if row.IsDir {
			store.ToggleFolder(row.Path)
		} else if err := store.SelectFile(row.FileID); err != nil {
			m.statusBar.SetNotice(err.Error())
		}
	case "n":
		if err := store.NextFile(); err != nil {
			m.statusBar.SetNotice(err.Error())
		}
	case "p":
		if err := store.PrevFile(); err != nil {
			m.statusBar.SetNotice(err.Error())
		}
	case "tab":
		if err := store.SetTab(nextTab(store.Snapshot().Tab)); err != nil {
			m.statusBar.SetNotice(err.Error())
		}
	case "r":
		return m, m.retryCmd()
	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var cmd tea.Cmd
		m.content, cmd = m.content.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
	m.refresh()
	return m, nil
}

func (m AppModel) retryCmd() tea.Cmd {
	st := m.studio
	return func() tea.Msg {
		_, err := st.RetryPreview()
		return RetryResultMsg{Err: err}
	}
}

func nextTab(cur artifact.Tab) artifact.Tab {
	for i, t := range tabCycle {
		if t == cur {
			return tabCycle[(i+1)%len(tabCycle)]
		}
	}
	return artifact.TabCode
}

// refresh pulls the latest snapshot into every panel.
func (m *AppModel) refresh() {
	snap := m.studio.Store().Snapshot()
	m.tree.SetSnapshot(snap)
	m.content.Refresh(snap, m.status)
	m.statusBar.SetArtifact(snap)
	m.statusBar.SetStatus(m.status)
}

// layout sizes the panels: tree on the left, content on the right, status
// bar along the bottom.
func (m *AppModel) layout() {
	bodyHeight := m.height - 1
	treeWidth := max(m.width*30/100, 20)
	contentWidth := max(m.width-treeWidth, 20)

	m.tree.SetSize(treeWidth, bodyHeight)
	m.content.SetSize(contentWidth, bodyHeight)
	m.statusBar.SetWidth(m.width)
}

// View implements tea.Model.
func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.width < 40 || m.height < 10 {
		return fmt.Sprintf("Terminal too small (%dx%d). Minimum: 40x10.", m.width, m.height)
	}

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.tree.View(), m.content.View()))
	b.WriteString("\n")
	b.WriteString(m.statusBar.View())
	return b.String()
}

// Run starts the viewer on the terminal's alternate screen and blocks until
// the user quits or ctx is cancelled.
func Run(ctx context.Context, st *studio.Studio) error {
	model := NewAppModel(st)
	defer model.Close()
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run viewer: %w", err)
	}
	return nil
}

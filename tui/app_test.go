// ABOUTME: Tests for the AppModel: key routing to the store, preview event handling, and layout.
// ABOUTME: Builds a studio over a scripted preview runtime with a two-file artifact open.
package tui

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/vellum/artifact"
	"github.com/2389-research/vellum/preview"
	"github.com/2389-research/vellum/preview/previewtest"
	"github.com/2389-research/vellum/studio"
	tea "github.com/charmbracelet/bubbletea"
)

var quiet = log.New(io.Discard, "", 0)

func testStudio(t *testing.T) *studio.Studio {
	t.Helper()
	orch := preview.New(&previewtest.Runtime{}, preview.WithLogger(quiet), preview.WithoutScaffold())
	st := studio.New(artifact.NewStore(), orch, studio.WithLogger(quiet))
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	a := artifact.New("Demo", "A demo app", []artifact.File{
		artifact.NewFile("src/App.jsx", "export default function App() {\n  return <p>hi</p>\n}"),
		artifact.NewFile("index.html", "<div id=\"root\"></div>"),
	})
	if _, err := st.Open(context.Background(), a); err != nil {
		t.Fatalf("open: %v", err)
	}
	return st
}

func testAppModel(t *testing.T) AppModel {
	t.Helper()
	m := NewAppModel(testStudio(t))
	t.Cleanup(m.Close)
	return m
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m AppModel, msg tea.Msg) AppModel {
	t.Helper()
	next, _ := m.Update(msg)
	am, ok := next.(AppModel)
	if !ok {
		t.Fatalf("expected AppModel, got %T", next)
	}
	return am
}

func TestNewAppModelStartsOnActiveFile(t *testing.T) {
	m := testAppModel(t)
	rows := m.tree.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %+v", len(rows), rows)
	}
	sel, ok := m.tree.Selected()
	if !ok || sel.Path != "src/App.jsx" {
		t.Errorf("expected cursor on src/App.jsx, got %+v", sel)
	}
	if m.content.Title() != "src/App.jsx (jsx)" {
		t.Errorf("expected code title, got %q", m.content.Title())
	}
}

func TestAppModelInit(t *testing.T) {
	m := testAppModel(t)
	if m.Init() == nil {
		t.Fatal("Init() returned nil, expected a batch command")
	}
}

func TestEnterSelectsFile(t *testing.T) {
	m := testAppModel(t)
	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	f, ok := m.studio.Store().Snapshot().ActiveFile()
	if !ok || f.Path != "index.html" {
		t.Errorf("expected index.html active, got %+v", f)
	}
	if !strings.HasPrefix(m.content.Title(), "index.html") {
		t.Errorf("expected content to follow selection, got %q", m.content.Title())
	}
}

func TestEnterTogglesFolder(t *testing.T) {
	m := testAppModel(t)
	m = update(t, m, keyRunes("k"))
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if got := len(m.tree.Rows()); got != 2 {
		t.Fatalf("expected collapsed folder to hide its file, got %d rows", got)
	}
	sel, _ := m.tree.Selected()
	if sel.Path != "src" || sel.Expanded {
		t.Errorf("expected cursor on collapsed src, got %+v", sel)
	}
}

func TestNextAndPrevFile(t *testing.T) {
	m := testAppModel(t)
	m = update(t, m, keyRunes("n"))
	if f, _ := m.studio.Store().Snapshot().ActiveFile(); f.Path != "index.html" {
		t.Errorf("expected next file index.html, got %s", f.Path)
	}
	m = update(t, m, keyRunes("p"))
	if f, _ := m.studio.Store().Snapshot().ActiveFile(); f.Path != "src/App.jsx" {
		t.Errorf("expected previous file src/App.jsx, got %s", f.Path)
	}
}

func TestTabCyclesViews(t *testing.T) {
	m := testAppModel(t)
	want := []artifact.Tab{artifact.TabPreview, artifact.TabFiles, artifact.TabCode}
	for _, tab := range want {
		m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
		if got := m.studio.Store().Snapshot().Tab; got != tab {
			t.Fatalf("expected tab %s, got %s", tab, got)
		}
	}
	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.content.Title() != "Preview" {
		t.Errorf("expected preview title, got %q", m.content.Title())
	}
}

func TestPreviewEventUpdatesStatus(t *testing.T) {
	m := testAppModel(t)
	id, _ := m.studio.Previews().Status()

	ready := preview.Status{Phase: preview.PhaseReady, URL: "http://preview.test/1"}
	m = update(t, m, PreviewEventMsg{Event: preview.Event{SessionID: id, Status: ready}})
	if m.status.Phase != preview.PhaseReady {
		t.Errorf("expected ready status, got %s", m.status)
	}

	stale := preview.Status{Phase: preview.PhaseFailed, Failure: preview.Classify("boom")}
	m = update(t, m, PreviewEventMsg{Event: preview.Event{SessionID: "old", Status: stale}})
	if m.status.Phase != preview.PhaseReady {
		t.Errorf("expected stale session event ignored, got %s", m.status)
	}
}

func TestRetryKeyReturnsCommand(t *testing.T) {
	m := testAppModel(t)
	_, cmd := m.Update(keyRunes("r"))
	if cmd == nil {
		t.Fatal("expected retry command")
	}
	msg, ok := cmd().(RetryResultMsg)
	if !ok {
		t.Fatalf("expected RetryResultMsg, got %T", msg)
	}
	if msg.Err != nil {
		t.Errorf("expected retry to succeed, got %v", msg.Err)
	}
}

func TestRetryFailureShowsNotice(t *testing.T) {
	m := testAppModel(t)
	m = update(t, m, tea.WindowSizeMsg{Width: 160, Height: 30})
	m = update(t, m, RetryResultMsg{Err: errors.New("no files")})
	if !strings.Contains(m.statusBar.View(), "retry: no files") {
		t.Errorf("expected notice in status bar, got %q", m.statusBar.View())
	}
}

func TestQuitKeys(t *testing.T) {
	m := testAppModel(t)
	for _, msg := range []tea.KeyMsg{keyRunes("q"), {Type: tea.KeyCtrlC}} {
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Fatalf("expected quit command for %s", msg)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("expected QuitMsg for %s", msg)
		}
	}
}

func TestStoreEventRefreshes(t *testing.T) {
	m := testAppModel(t)
	if err := m.studio.Store().SelectFile(m.tree.Rows()[2].FileID); err != nil {
		t.Fatalf("select: %v", err)
	}
	m = update(t, m, StoreEventMsg{Event: artifact.Event{Kind: artifact.EventFileSelected}})
	if !strings.HasPrefix(m.content.Title(), "index.html") {
		t.Errorf("expected refresh after store event, got %q", m.content.Title())
	}
}

func TestStoreEventCommandDeliversEvent(t *testing.T) {
	m := testAppModel(t)
	go m.studio.Store().ToggleFolder("src")

	done := make(chan tea.Msg, 1)
	go func() { done <- WaitForStoreEventCmd(m.storeCh)() }()
	select {
	case msg := <-done:
		ev, ok := msg.(StoreEventMsg)
		if !ok || ev.Event.Kind != artifact.EventFolderToggled {
			t.Errorf("expected folder toggled event, got %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for store event")
	}
}

func TestViewLayout(t *testing.T) {
	m := testAppModel(t)
	if got := m.View(); got != "Initializing..." {
		t.Errorf("expected initializing view, got %q", got)
	}

	m = update(t, m, tea.WindowSizeMsg{Width: 30, Height: 8})
	if !strings.Contains(m.View(), "Terminal too small") {
		t.Error("expected size guard")
	}

	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	view := m.View()
	for _, want := range []string{"Files", "App.jsx", "return <p>hi</p>", "Demo"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

// ABOUTME: Tests for the tree, content, and status bar panels in isolation.
// ABOUTME: Drives each panel from hand-built snapshots and statuses.
package tui

import (
	"strings"
	"testing"

	"github.com/2389-research/vellum/artifact"
	"github.com/2389-research/vellum/preview"
)

func snapshot() artifact.Snapshot {
	app := artifact.NewFile("src/App.tsx", "line one\nline two")
	app.IsComplete = false
	app.Challenges = []artifact.Challenge{{Description: "Add a reset button", Difficulty: artifact.DifficultyEasy, Hints: []string{"useState"}}}
	util := artifact.NewFile("src/lib/util.ts", "export {}")
	a := artifact.New("Demo", "desc", []artifact.File{app, util})
	return artifact.Snapshot{
		Open:         true,
		Artifact:     a,
		ActiveFileID: app.ID,
		Expanded:     []string{"src", "src/lib"},
		Tab:          artifact.TabCode,
	}
}

func TestTreePanelRows(t *testing.T) {
	m := NewTreePanelModel()
	m.SetSnapshot(snapshot())
	rows := m.Rows()
	paths := make([]string, len(rows))
	for i, r := range rows {
		paths[i] = r.Path
	}
	if got := strings.Join(paths, ","); got != "src,src/lib,src/lib/util.ts,src/App.tsx" {
		t.Fatalf("unexpected rows %s", got)
	}
	if m.Cursor() != 3 {
		t.Errorf("expected cursor on active file, got %d", m.Cursor())
	}

	m.MoveDown()
	if m.Cursor() != 3 {
		t.Errorf("expected cursor clamped at bottom, got %d", m.Cursor())
	}
	for range 5 {
		m.MoveUp()
	}
	if m.Cursor() != 0 {
		t.Errorf("expected cursor clamped at top, got %d", m.Cursor())
	}
}

func TestTreePanelView(t *testing.T) {
	m := NewTreePanelModel()
	m.SetSize(40, 10)
	if !strings.Contains(m.View(), "no artifact open") {
		t.Error("expected empty hint")
	}
	m.SetSnapshot(snapshot())
	view := m.View()
	for _, want := range []string{"▾ src/", "● App.tsx", " !", "util.ts"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in tree view", want)
		}
	}
}

func TestContentPanelCode(t *testing.T) {
	m := NewContentPanelModel()
	m.SetSize(80, 20)
	m.Refresh(snapshot(), preview.Status{Phase: preview.PhaseIdle})
	if m.Title() != "src/App.tsx (tsx)" {
		t.Errorf("unexpected title %q", m.Title())
	}
	body := m.Content()
	for _, want := range []string{"   1  line one", "   2  line two", "[easy] Add a reset button", "hint: useState"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in body:\n%s", want, body)
		}
	}
}

func TestContentPanelShowsDraftWhileEditing(t *testing.T) {
	snap := snapshot()
	snap.Editing = true
	snap.Draft = "draft text"
	m := NewContentPanelModel()
	m.SetSize(80, 20)
	m.Refresh(snap, preview.Status{})
	if !strings.HasSuffix(m.Title(), "[editing]") {
		t.Errorf("expected editing marker, got %q", m.Title())
	}
	if !strings.Contains(m.Content(), "draft text") {
		t.Error("expected draft in body")
	}
}

func TestContentPanelPreviewFailure(t *testing.T) {
	snap := snapshot()
	snap.Tab = artifact.TabPreview
	st := preview.Status{Phase: preview.PhaseFailed, Failure: preview.Classify("SharedArrayBuffer is not defined")}
	m := NewContentPanelModel()
	m.SetSize(100, 20)
	m.Refresh(snap, st)
	body := m.Content()
	if !strings.Contains(body, string(preview.ReasonCrossOriginIsolation)) {
		t.Errorf("expected reason in body:\n%s", body)
	}
	if !strings.Contains(body, "-static") {
		t.Errorf("expected static fallback hint:\n%s", body)
	}
}

func TestContentPanelFiles(t *testing.T) {
	snap := snapshot()
	snap.Tab = artifact.TabFiles
	m := NewContentPanelModel()
	m.SetSize(100, 20)
	m.Refresh(snap, preview.Status{})
	body := m.Content()
	if !strings.Contains(body, "! src/App.tsx") || !strings.Contains(body, "✓ src/lib/util.ts") {
		t.Errorf("unexpected files body:\n%s", body)
	}
}

func TestContentPanelClosed(t *testing.T) {
	m := NewContentPanelModel()
	m.Refresh(artifact.Snapshot{}, preview.Status{})
	if m.Title() != "vellum" {
		t.Errorf("expected placeholder title, got %q", m.Title())
	}
}

func TestStatusBar(t *testing.T) {
	m := NewStatusBarModel()
	m.SetWidth(120)
	if !strings.Contains(m.View(), "no artifact") {
		t.Error("expected placeholder title")
	}
	m.SetArtifact(snapshot())
	m.SetStatus(preview.Status{Phase: preview.PhaseStartingServer})
	view := m.View()
	for _, want := range []string{"Demo", "code", "starting_server", "q quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in %q", want, view)
		}
	}
}

func TestStyleForPhase(t *testing.T) {
	if StyleForPhase(preview.PhaseReady).GetForeground() != ReadyStyle.GetForeground() {
		t.Error("expected ready style")
	}
	if StyleForPhase(preview.PhaseFailed).GetForeground() != FailedStyle.GetForeground() {
		t.Error("expected failed style")
	}
	if StyleForPhase(preview.PhaseIdle).GetForeground() != IdleStyle.GetForeground() {
		t.Error("expected idle style")
	}
}

// ABOUTME: Tests for sandbox error classification and scaffolding of preview file sets.
// ABOUTME: Checks classification markers, scaffold idempotence, and that user files are never replaced.
package preview

import (
	"reflect"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		want Reason
	}{
		{"crossOriginIsolated is false", ReasonCrossOriginIsolation},
		{"SharedArrayBuffer is not defined", ReasonCrossOriginIsolation},
		{"missing COOP/COEP headers", ReasonCrossOriginIsolation},
		{"Unable to create more instances", ReasonInstanceLimit},
		{"sandbox returned HTTP 429", ReasonInstanceLimit},
		{"npm ERR! code E404", ReasonGeneric},
		{"cooperative scheduling failed", ReasonGeneric},
		{"listening on port 4290", ReasonGeneric},
	}
	for _, c := range cases {
		if got := Classify(c.msg).Reason; got != c.want {
			t.Errorf("Classify(%q): expected %s, got %s", c.msg, c.want, got)
		}
	}
}

func TestClassifyEmptyMessage(t *testing.T) {
	f := Classify("  ")
	if f.Reason != ReasonGeneric || f.Message == "" {
		t.Errorf("expected generic failure with a message, got %+v", f)
	}
	if f.Guidance() != f.Message {
		t.Error("expected generic guidance to show the raw message")
	}
}

func TestScaffoldIsIdempotent(t *testing.T) {
	in := map[string]string{
		"src/App.tsx":               "export default function App() { return null }",
		"src/components/Widget.tsx": "export default function Widget() { return null }",
	}
	once := Scaffold(in)
	twice := Scaffold(once)
	if !reflect.DeepEqual(once, twice) {
		t.Error("expected scaffolding to be idempotent")
	}
	if !strings.Contains(once["src/main.tsx"], "import App from './App'") {
		t.Errorf("expected main to import App, got:\n%s", once["src/main.tsx"])
	}
	if !strings.Contains(once["index.html"], `src="/src/main.tsx"`) {
		t.Errorf("expected index.html to load the entry, got:\n%s", once["index.html"])
	}
	if !strings.Contains(once["package.json"], "typescript") {
		t.Error("expected typescript dev dependency for tsx sets")
	}
	if len(in) != 2 {
		t.Error("expected input map to be left untouched")
	}
}

func TestScaffoldNeverOverwrites(t *testing.T) {
	in := map[string]string{
		"package.json":   `{"name": "mine"}`,
		"index.html":     "<div id=app></div>",
		"vite.config.ts": "export default {}",
		"src/index.jsx":  "render()",
		"src/App.jsx":    "app",
	}
	out := Scaffold(in)
	for p, c := range in {
		if out[p] != c {
			t.Errorf("expected %s untouched, got %q", p, out[p])
		}
	}
	if len(out) != len(in) {
		t.Errorf("expected no additions, got %d files", len(out))
	}
}

func TestScaffoldUsesExistingEntryForIndex(t *testing.T) {
	out := Scaffold(map[string]string{"src/index.jsx": "x", "src/Thing.jsx": "y"})
	if _, ok := out["src/main.jsx"]; ok {
		t.Error("expected no generated main when src/index.jsx exists")
	}
	if !strings.Contains(out["index.html"], `src="/src/index.jsx"`) {
		t.Errorf("expected index.html to point at src/index.jsx, got:\n%s", out["index.html"])
	}
}

func TestScaffoldRootComponentOutsideSrc(t *testing.T) {
	out := Scaffold(map[string]string{"Widget.jsx": "w"})
	if !strings.Contains(out["src/main.jsx"], "import App from '../Widget'") {
		t.Errorf("expected import of the root-level component, got:\n%s", out["src/main.jsx"])
	}
}

func TestScaffoldPlainSetOnlyGetsManifest(t *testing.T) {
	out := Scaffold(map[string]string{"index.html": "<p>x</p>", "app.js": "1"})
	if len(out) != 3 {
		t.Fatalf("expected only package.json added, got %d files", len(out))
	}
	if !strings.Contains(out["package.json"], `"dev": "vite"`) {
		t.Errorf("expected vite dev script, got:\n%s", out["package.json"])
	}
}

func TestNeedsInstall(t *testing.T) {
	if NeedsInstall(map[string]string{"package.json": `{"dependencies": {}}`}) {
		t.Error("expected empty dependencies to need no install")
	}
	if !NeedsInstall(map[string]string{"package.json": `{"devDependencies": {"vite": "5"}}`}) {
		t.Error("expected dev dependencies to need install")
	}
	if NeedsInstall(map[string]string{"package.json": `not json`}) {
		t.Error("expected malformed manifest to need no install")
	}
}

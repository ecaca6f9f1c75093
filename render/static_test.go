// ABOUTME: Tests for the static preview renderer covering CSS injection and the file listing fallback.
// ABOUTME: Checks escaping, CSP placement, markup selection, and markdown rendering.
package render

import (
	"strings"
	"testing"

	"github.com/2389-research/vellum/artifact"
)

func files(pairs ...string) []artifact.File {
	var out []artifact.File
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, artifact.NewFile(pairs[i], pairs[i+1]))
	}
	return out
}

func TestRenderInjectsCSSBeforeHeadClose(t *testing.T) {
	doc := Render(files(
		"index.html", "<html><head><title>x</title></HEAD><body><p>hi</p></body></html>",
		"style.css", "p { color: red; }",
		"extra.css", "h1 { margin: 0; }",
	))
	headClose := strings.Index(doc, "</HEAD>")
	style := strings.Index(doc, "<style>")
	csp := strings.Index(doc, CSPMeta)
	if style < 0 || csp < 0 || headClose < 0 {
		t.Fatalf("expected style, csp, and head close in output:\n%s", doc)
	}
	if !(csp < headClose && style < headClose) {
		t.Errorf("expected injection before </head>, got csp=%d style=%d head=%d", csp, style, headClose)
	}
	if !strings.Contains(doc, "p { color: red; }") || !strings.Contains(doc, "h1 { margin: 0; }") {
		t.Error("expected every css file to be inlined")
	}
	if strings.Count(doc, "<style>") != 1 {
		t.Errorf("expected exactly one style block, got %d", strings.Count(doc, "<style>"))
	}
}

func TestRenderPolicyPrecedesScripts(t *testing.T) {
	cases := map[string]string{
		"head script":   `<html><head><script src="app.js"></script><title>x</title></head><body></body></html>`,
		"head attrs":    `<!DOCTYPE html><html><HEAD lang="en"><SCRIPT>alert(1)</SCRIPT></HEAD></html>`,
		"before head":   `<!doctype html><html><script>alert(1)</script><head></head></html>`,
		"no head":       `<html><script>alert(1)</script><body></body></html>`,
		"fragment only": `<script>alert(1)</script><p>x</p>`,
	}
	for name, markup := range cases {
		doc := Render(files("index.html", markup, "a.css", "p{}"))
		csp := strings.Index(doc, CSPMeta)
		script := strings.Index(strings.ToLower(doc), "<script")
		if csp < 0 || script < 0 || csp > script {
			t.Errorf("%s: expected csp before first script, got csp=%d script=%d:\n%s", name, csp, script, doc)
		}
		if strings.HasPrefix(strings.ToLower(markup), "<!doctype") && !strings.HasPrefix(strings.ToLower(doc), "<!doctype") {
			t.Errorf("%s: expected doctype kept first, got:\n%s", name, doc)
		}
	}
}

func TestRenderPolicyFollowsHeadOpen(t *testing.T) {
	doc := Render(files(
		"index.html", `<html><head><script src="app.js"></script></head><body></body></html>`,
		"a.css", "p{}",
	))
	want := "<html><head>" + CSPMeta + "\n<script"
	if !strings.HasPrefix(doc, want) {
		t.Errorf("expected csp right after <head>, got:\n%s", doc)
	}
	if style, head := strings.Index(doc, "<style>"), strings.Index(doc, "</head>"); style < 0 || style > head {
		t.Errorf("expected styles before </head>, got style=%d head=%d", style, head)
	}
}

func TestRenderNeutralizesStyleClose(t *testing.T) {
	doc := Render(files(
		"index.html", "<head></head><body></body>",
		"evil.css", "a{}</STYLE><script>alert(1)</script>",
	))
	if strings.Contains(doc, "</STYLE><script>") {
		t.Error("expected </style inside css to be neutralized")
	}
	if !strings.Contains(doc, `<\/style><script>`) {
		t.Errorf("expected escaped close tag, got:\n%s", doc)
	}
}

func TestRenderFallsBackToBodyThenPrepend(t *testing.T) {
	doc := Render(files("page.html", "<body><p>x</p></body>", "a.css", "b{}"))
	if !strings.HasPrefix(doc, CSPMeta) {
		t.Errorf("expected block inserted before <body, got:\n%s", doc)
	}
	if !strings.HasSuffix(doc, "<body><p>x</p></body>") {
		t.Errorf("expected body preserved, got:\n%s", doc)
	}

	doc = Render(files("frag.html", "<p>fragment</p>"))
	if !strings.HasPrefix(doc, CSPMeta) || !strings.HasSuffix(doc, "<p>fragment</p>") {
		t.Errorf("expected block prepended to fragment, got:\n%s", doc)
	}
}

func TestRenderPrefersIndexHTML(t *testing.T) {
	doc := Render(files(
		"about.html", "<p>about</p>",
		"pages/index.html", "<p>nested index</p>",
		"index.html", "<p>root index</p>",
	))
	if !strings.Contains(doc, "root index") || strings.Contains(doc, "about") {
		t.Errorf("expected root index.html to be chosen, got:\n%s", doc)
	}

	doc = Render(files("about.html", "<p>about</p>", "pages/index.html", "<p>nested index</p>"))
	if !strings.Contains(doc, "nested index") {
		t.Errorf("expected nested index.html over about.html, got:\n%s", doc)
	}
}

func TestRenderListsFilesWithoutMarkup(t *testing.T) {
	doc := Render(files(
		"src/<App>.tsx", "const a = <div>&</div>;",
		"src/main.js", "console.log('x')",
	))
	if !strings.Contains(doc, "No markup file found") {
		t.Error("expected listing title")
	}
	if !strings.Contains(doc, "src/&lt;App&gt;.tsx") {
		t.Errorf("expected escaped path, got:\n%s", doc)
	}
	if !strings.Contains(doc, "const a = &lt;div&gt;&amp;&lt;/div&gt;;") {
		t.Errorf("expected escaped content, got:\n%s", doc)
	}
	if strings.Count(doc, "<details>") != 2 {
		t.Errorf("expected one details block per file, got %d", strings.Count(doc, "<details>"))
	}
	if !strings.Contains(doc, "<summary>src/main.js</summary>") {
		t.Error("expected every path listed")
	}
	if strings.Contains(doc, "<script") {
		t.Error("expected no script elements")
	}
}

func TestRenderMarkdownSection(t *testing.T) {
	doc := Render(files("README.md", "# Title\n\n<script>alert(1)</script>\n\nsome *text*"))
	if !strings.Contains(doc, "<h1>Title</h1>") {
		t.Errorf("expected rendered heading, got:\n%s", doc)
	}
	if !strings.Contains(doc, "<em>text</em>") {
		t.Error("expected emphasis rendered")
	}
	if strings.Contains(doc, "<script>alert(1)</script>") {
		t.Error("expected raw html omitted from markdown output")
	}
}

func TestRenderEmptyInput(t *testing.T) {
	doc := Render(nil)
	if !strings.Contains(doc, "No files") {
		t.Errorf("expected no-files notice, got:\n%s", doc)
	}
}

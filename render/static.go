// ABOUTME: Static preview renderer that assembles a single script-free HTML document from a file set.
// ABOUTME: Inlines CSS into the markup file, or lists every file when no markup file exists.
package render

import (
	"bytes"
	"html/template"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/2389-research/vellum/artifact"
	"github.com/yuin/goldmark"
)

// CSPHeader is the policy applied to rendered documents: no scripts at all.
const CSPHeader = "script-src 'none'"

// CSPMeta embeds CSPHeader in the rendered document.
const CSPMeta = `<meta http-equiv="Content-Security-Policy" content="` + CSPHeader + `">`

var (
	closeStyle = regexp.MustCompile(`(?i)</style`)
	openHead   = regexp.MustCompile(`(?i)<head(?:\s[^>]*)?>`)
	closeHead  = regexp.MustCompile(`(?i)</head\s*>`)
	openBody   = regexp.MustCompile(`(?i)<body[\s>]`)
	openScript = regexp.MustCompile(`(?i)<script[\s>/]`)
	doctype    = regexp.MustCompile(`(?i)^\s*<!doctype[^>]*>`)
)

// Render produces a static HTML document for the files. It is pure and never
// fails: malformed input degrades to a file listing.
func Render(files []artifact.File) string {
	if markup, ok := findMarkup(files); ok {
		return injectPolicy(injectStyles(markup.Content, styleBlock(files)))
	}
	return listing(files)
}

// findMarkup prefers a root index.html, then any index.html, then the first
// html file in path order.
func findMarkup(files []artifact.File) (artifact.File, bool) {
	var htmlFiles []artifact.File
	for _, f := range files {
		ext := strings.ToLower(path.Ext(f.Path))
		if ext == ".html" || ext == ".htm" {
			htmlFiles = append(htmlFiles, f)
		}
	}
	if len(htmlFiles) == 0 {
		return artifact.File{}, false
	}
	sort.SliceStable(htmlFiles, func(i, j int) bool {
		return markupRank(htmlFiles[i].Path) < markupRank(htmlFiles[j].Path)
	})
	return htmlFiles[0], true
}

func markupRank(p string) int {
	switch {
	case strings.EqualFold(p, "index.html"):
		return 0
	case strings.EqualFold(path.Base(p), "index.html"):
		return 1
	default:
		return 2
	}
}

// styleBlock builds one style element holding every CSS file, or "" when
// there is no CSS.
func styleBlock(files []artifact.File) string {
	var css []artifact.File
	for _, f := range files {
		if strings.EqualFold(path.Ext(f.Path), ".css") {
			css = append(css, f)
		}
	}
	if len(css) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<style>\n")
	for _, f := range css {
		b.WriteString("/* ")
		b.WriteString(strings.ReplaceAll(f.Path, "*/", "* /"))
		b.WriteString(" */\n")
		b.WriteString(closeStyle.ReplaceAllString(f.Content, `<\/style`))
		b.WriteString("\n")
	}
	b.WriteString("</style>\n")
	return b.String()
}

// injectStyles inserts block before </head>, else before <body, else at the start.
func injectStyles(doc, block string) string {
	if block == "" {
		return doc
	}
	if loc := closeHead.FindStringIndex(doc); loc != nil {
		return doc[:loc[0]] + block + doc[loc[0]:]
	}
	if loc := openBody.FindStringIndex(doc); loc != nil {
		return doc[:loc[0]] + block + doc[loc[0]:]
	}
	return block + doc
}

// injectPolicy puts the CSP meta ahead of every script. A meta policy only
// covers markup parsed after it, so it goes right after <head> when no script
// precedes that tag, else right after the doctype, else first.
func injectPolicy(doc string) string {
	meta := CSPMeta + "\n"
	if loc := openHead.FindStringIndex(doc); loc != nil {
		if s := openScript.FindStringIndex(doc); s == nil || s[0] > loc[0] {
			return doc[:loc[1]] + meta + doc[loc[1]:]
		}
	}
	if loc := doctype.FindStringIndex(doc); loc != nil {
		return doc[:loc[1]] + meta + doc[loc[1]:]
	}
	return meta + doc
}

type listingEntry struct {
	Path     string
	Content  string
	Markdown template.HTML
}

var listingTemplate = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
` + CSPMeta + `
<title>No markup file found</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #1f2328; }
details { border: 1px solid #d0d7de; border-radius: 6px; margin-bottom: 0.75rem; padding: 0.5rem 0.75rem; }
summary { cursor: pointer; font-family: ui-monospace, monospace; }
pre { overflow-x: auto; background: #f6f8fa; padding: 0.75rem; }
.markdown { border-top: 1px dashed #d0d7de; margin-top: 0.5rem; }
</style>
</head>
<body>
<h1>No markup file found</h1>
{{if .}}<p>This artifact has no HTML entry point. Its files are listed below.</p>
{{range .}}<details>
<summary>{{.Path}}</summary>
<pre><code>{{.Content}}</code></pre>
{{if .Markdown}}<div class="markdown">{{.Markdown}}</div>
{{end}}</details>
{{end}}{{else}}<p>No files</p>
{{end}}</body>
</html>
`))

// listing renders every file as a collapsible block with escaped content.
func listing(files []artifact.File) string {
	entries := make([]listingEntry, 0, len(files))
	for _, f := range files {
		e := listingEntry{Path: f.Path, Content: f.Content}
		if isMarkdown(f.Path) {
			e.Markdown = markdownToHTML(f.Content)
		}
		entries = append(entries, e)
	}

	var buf bytes.Buffer
	if err := listingTemplate.Execute(&buf, entries); err != nil {
		return "<!DOCTYPE html><html><head>" + CSPMeta + "</head><body><p>" +
			template.HTMLEscapeString(err.Error()) + "</p></body></html>"
	}
	return buf.String()
}

func isMarkdown(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// markdownToHTML converts markdown with goldmark. Raw HTML in the source is
// omitted by goldmark's default renderer.
func markdownToHTML(src string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.New().Convert([]byte(src), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(buf.String())
}

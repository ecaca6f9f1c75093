// ABOUTME: Text heuristics for the extractor: file path hints and component-name recovery.
// ABOUTME: Also holds the stub sources emitted when no usable code was found.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/2389-research/vellum/artifact"
)

var (
	// pathLike matches a relative file path with an extension.
	pathLike = regexp.MustCompile(`^[\w@.-]+(?:/[\w@.-]+)*\.[A-Za-z0-9]+$`)

	// markerComment matches "// file: src/App.tsx" style first lines.
	markerComment = regexp.MustCompile(`^\s*(?://|#|<!--|/\*|--)\s*(?i:file(?:name)?|path)\s*:\s*([^\s*>]+)`)

	// leadHeading matches a prose line that is only a path, optionally decorated
	// as a heading, bold text, or inline code.
	leadHeading = regexp.MustCompile("^(?:#{1,6}\\s*)?(?:\\d+\\.\\s*)?[*_`]*([\\w@./-]+\\.[A-Za-z0-9]+)[*_`]*:?$")

	generationPhrase = regexp.MustCompile(`(?i)\b(generated|created|built|implemented|here is|here's)\b`)

	tokenAfterVerb  = regexp.MustCompile(`(?i:\b(?:component|file|created|generated|built|implemented))\s+(?:(?i:a|an|the|new)\s+)?([A-Z][A-Za-z0-9]*)`)
	tokenBeforeNoun = regexp.MustCompile(`\b([A-Z][A-Za-z0-9]*)\s+(?i:component)\b`)
)

var stopTokens = map[string]bool{
	"I": true, "A": true, "An": true, "The": true, "This": true, "That": true,
	"It": true, "Here": true, "React": true, "JavaScript": true, "TypeScript": true,
	"HTML": true, "CSS": true, "JSX": true, "TSX": true, "Vue": true, "Svelte": true,
}

// pathHint finds an explicit file path for a fence: a second info-string token,
// a marker comment on the first body line, or a path-only prose line right
// before the fence. A marker comment line is removed from the body.
func pathHint(f fence) (body, path string) {
	body = f.body
	for _, tok := range f.info[min(1, len(f.info)):] {
		tok = strings.Trim(tok, `"'`)
		for _, prefix := range []string{"filename=", "file=", "title=", "path="} {
			tok = strings.TrimPrefix(tok, prefix)
		}
		tok = strings.Trim(tok, `"'`)
		if pathLike.MatchString(tok) {
			return body, tok
		}
	}

	first, rest, _ := strings.Cut(body, "\n")
	if m := markerComment.FindStringSubmatch(first); m != nil {
		candidate := strings.TrimSuffix(strings.TrimSuffix(m[1], "-->"), "*/")
		if pathLike.MatchString(candidate) {
			return trimBlankLines(strings.Split(rest, "\n")), candidate
		}
	}

	if m := leadHeading.FindStringSubmatch(f.lead); m != nil && strings.Contains(m[1], ".") {
		return body, m[1]
	}
	return body, ""
}

// componentTokens returns distinct capitalized identifiers that the prose
// names as generated components, in order of first mention.
func componentTokens(text string) []string {
	type hit struct {
		pos  int
		name string
	}
	var hits []hit
	for _, re := range []*regexp.Regexp{tokenAfterVerb, tokenBeforeNoun} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			hits = append(hits, hit{pos: m[2], name: text[m[2]:m[3]]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[string]bool)
	var names []string
	for _, h := range hits {
		if stopTokens[h.name] || seen[h.name] {
			continue
		}
		seen[h.name] = true
		names = append(names, h.name)
	}
	return names
}

// NotImplementedMarker tags synthesized stubs so viewers can flag them.
const NotImplementedMarker = "NOT IMPLEMENTED"

func componentStub(name string) artifact.File {
	src := fmt.Sprintf(`// %s: the response described a %s component but did not include its source.
export default function %s() {
  return <div className="not-implemented">%s (not implemented yet)</div>;
}
`, NotImplementedMarker, name, name, name)
	f := artifact.NewFile("src/components/"+name+".tsx", src)
	f.IsComplete = false
	f.Challenges = []artifact.Challenge{{
		Description: fmt.Sprintf("Implement the %s component. The response mentioned it but shipped no code.", name),
		Difficulty:  artifact.DifficultyHard,
		Hints: []string{
			fmt.Sprintf("Reread the conversation for what %s should render.", name),
			"Keep the default export so other files can import it.",
		},
	}}
	return f
}

var placeholderSource = `// ` + NotImplementedMarker + `: no source files could be recovered from the response.
export default function App() {
  return (
    <main className="not-implemented">
      <h1>Nothing to show yet</h1>
      <p>The generated response did not include any code.</p>
    </main>
  );
}
`

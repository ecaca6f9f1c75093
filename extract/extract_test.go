// ABOUTME: Tests for the extraction cascade across structured, loose, fenced, and heuristic inputs.
// ABOUTME: Verifies the never-empty guarantee, deduplication, and whitespace preservation.
package extract

import (
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/vellum/artifact"
)

func quietExtractor(opts ...Option) *Extractor {
	return New(append([]Option{WithLogger(log.New(io.Discard, "", 0))}, opts...)...)
}

func paths(files []artifact.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestStructuredBlock(t *testing.T) {
	raw := "Here is your project:\n```json\n" +
		`{"projectName": "Todo", "description": "A list", "files": [{"path": "a.txt", "content": "x"}]}` +
		"\n```\nEnjoy!"
	res := quietExtractor().Parse(raw)
	if res.Strategy != StrategyStructured {
		t.Fatalf("expected structured strategy, got %s", res.Strategy)
	}
	if res.ProjectName != "Todo" || res.Description != "A list" {
		t.Errorf("unexpected metadata: %q %q", res.ProjectName, res.Description)
	}
	if len(res.Files) != 1 || res.Files[0].Path != "a.txt" || res.Files[0].Content != "x" {
		t.Fatalf("expected one file a.txt with content x, got %+v", res.Files)
	}
	if !res.Files[0].IsComplete {
		t.Error("expected structured files to default to complete")
	}
}

func TestStructuredBlockCarriesChallenges(t *testing.T) {
	raw := "```json\n" + `{
  "projectName": "Quiz",
  "description": "d",
  "files": [
    {"path": "src/App.jsx", "content": "app", "isComplete": false,
     "challenges": [{"description": "add scoring", "difficulty": "hard", "hints": ["use state"]}]},
    {"name": "missing-content.txt"},
    "not an object"
  ]
}` + "\n```"
	res := quietExtractor().Parse(raw)
	if len(res.Files) != 1 {
		t.Fatalf("expected malformed entries skipped, got %v", paths(res.Files))
	}
	f := res.Files[0]
	if f.IsComplete {
		t.Error("expected isComplete=false to be honored")
	}
	if len(f.Challenges) != 1 || f.Challenges[0].Difficulty != artifact.DifficultyHard || f.Challenges[0].Hints[0] != "use state" {
		t.Errorf("unexpected challenges: %+v", f.Challenges)
	}
	if f.Language != "jsx" {
		t.Errorf("expected jsx language, got %q", f.Language)
	}
}

func TestStructuredBlockWithoutDescriptionFallsToLooseScan(t *testing.T) {
	raw := "```json\n" + `{"files": [{"path": "b.js", "content": "1"}]}` + "\n```"
	res := quietExtractor().Parse(raw)
	if res.Strategy != StrategyLoose {
		t.Fatalf("expected loose strategy, got %s", res.Strategy)
	}
	if res.ProjectName != DefaultProjectName {
		t.Errorf("expected default project name, got %q", res.ProjectName)
	}
}

func TestStructuredBlockIgnoresNameAliases(t *testing.T) {
	raw := "```json\n{\"title\": \"Todo\", \"name\": \"todo\", \"description\": \"d\", \"files\": [{\"path\": \"a.txt\", \"content\": \"x\"}]}\n```"
	res := quietExtractor().Parse(raw)
	if res.Strategy != StrategyLoose {
		t.Fatalf("expected loose strategy without projectName, got %s", res.Strategy)
	}
	if res.ProjectName != DefaultProjectName {
		t.Errorf("expected default project name, got %q", res.ProjectName)
	}
}

func TestLooseScanHandlesBracesInStrings(t *testing.T) {
	raw := `Result: {"meta": {"x": 1}, "files": [{"path": "b.js", "content": "let s = \"}\";"}]} trailing }`
	res := quietExtractor().Parse(raw)
	if res.Strategy != StrategyLoose {
		t.Fatalf("expected loose strategy, got %s", res.Strategy)
	}
	if len(res.Files) != 1 || res.Files[0].Content != `let s = "}";` {
		t.Errorf("unexpected files: %+v", res.Files)
	}
}

func TestLooseScanPrefersShortestSpan(t *testing.T) {
	raw := `{"outer": {"files": [{"path": "inner.txt", "content": "i"}]}, "files": [{"path": "outer.txt", "content": "o"}]}`
	res := quietExtractor().Parse(raw)
	if len(res.Files) != 1 || res.Files[0].Path != "inner.txt" {
		t.Errorf("expected inner.txt from the shortest span, got %v", paths(res.Files))
	}
}

func TestLooseScanStrayQuoteOnEarlierLine(t *testing.T) {
	raw := "The panel is 12\" wide.\n{\"files\": [{\"path\": \"panel.txt\", \"content\": \"p\"}]}"
	res := quietExtractor().Parse(raw)
	if res.Strategy != StrategyLoose || len(res.Files) != 1 || res.Files[0].Path != "panel.txt" {
		t.Errorf("expected panel.txt from loose scan, got %s %v", res.Strategy, paths(res.Files))
	}
}

func TestLooseScanUnclosedMarkersStayLinear(t *testing.T) {
	raw := strings.Repeat(`{"files":`, 1<<20/len(`{"files":`))
	start := time.Now()
	res := quietExtractor().Parse(raw)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("expected parse of %d bytes to finish quickly, took %v", len(raw), elapsed)
	}
	if res.Strategy != StrategyPlaceholder {
		t.Errorf("expected placeholder strategy, got %s", res.Strategy)
	}
}

func TestLooseScanNestedInvalidSpansStayBounded(t *testing.T) {
	n := 20000
	raw := strings.Repeat(`{"files":`, n) + strings.Repeat("}", n)
	start := time.Now()
	res := quietExtractor().Parse(raw)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("expected nested parse to finish quickly, took %v", elapsed)
	}
	if res.Strategy != StrategyPlaceholder {
		t.Errorf("expected placeholder strategy, got %s", res.Strategy)
	}
}

func TestFencedBlocksGetSequentialNames(t *testing.T) {
	raw := "Here is the code:\n```js\nconsole.log('hi')\n```\nAnd the styles:\n```css\nbody { color: red; }\n```\n"
	res := quietExtractor().Parse(raw)
	if res.Strategy != StrategyFences {
		t.Fatalf("expected fences strategy, got %s", res.Strategy)
	}
	got := paths(res.Files)
	if len(got) != 2 || got[0] != "file1.js" || got[1] != "file2.css" {
		t.Fatalf("expected [file1.js file2.css], got %v", got)
	}
	if res.Files[1].Content != "body { color: red; }" {
		t.Errorf("unexpected css content %q", res.Files[1].Content)
	}
}

func TestFenceTrimmingPreservesIndentation(t *testing.T) {
	raw := "```python\n\n    def f():\n        return 1\n\n   \n```"
	files := quietExtractor().Extract(raw)
	want := "    def f():\n        return 1"
	if files[0].Content != want {
		t.Errorf("expected %q, got %q", want, files[0].Content)
	}
	if files[0].Path != "file1.py" {
		t.Errorf("expected file1.py, got %q", files[0].Path)
	}
}

func TestFencePathHints(t *testing.T) {
	raw := "```tsx src/App.tsx\nexport default function App() {}\n```\n" +
		"```ts\n// file: src/util.ts\nexport const x = 1\n```\n" +
		"**styles/main.css**\n```css\nh1 {}\n```\n" +
		"```txt\nplain\n```\n"
	res := quietExtractor().Parse(raw)
	want := []string{"src/App.tsx", "src/util.ts", "styles/main.css", "file4.txt"}
	got := paths(res.Files)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if res.Files[1].Content != "export const x = 1" {
		t.Errorf("expected marker line removed, got %q", res.Files[1].Content)
	}
}

func TestUnterminatedFenceStillYieldsBody(t *testing.T) {
	files := quietExtractor().Extract("```js\nconsole.log(1)")
	if len(files) != 1 || files[0].Content != "console.log(1)" {
		t.Errorf("unexpected files: %+v", files)
	}
}

func TestStructuredLookingJSONFenceIsNotHarvested(t *testing.T) {
	raw := "```json\n{\"files\": [}\n```\n```css\nbody {}\n```"
	res := quietExtractor().Parse(raw)
	got := paths(res.Files)
	if len(got) != 1 || got[0] != "file1.css" {
		t.Errorf("expected only file1.css, got %v", got)
	}
}

func TestCustomLanguageMapping(t *testing.T) {
	files := quietExtractor(WithLanguage("elm", "elm")).Extract("```elm\nmain = text \"hi\"\n```")
	if files[0].Path != "file1.elm" {
		t.Errorf("expected file1.elm, got %q", files[0].Path)
	}
	files = quietExtractor().Extract("```cobol\nDISPLAY 'HI'.\n```")
	if files[0].Path != "file1.txt" {
		t.Errorf("expected file1.txt fallback, got %q", files[0].Path)
	}
}

func TestComponentNameHeuristic(t *testing.T) {
	res := quietExtractor().Parse("I generated a Widget component that shows the weather.")
	if res.Strategy != StrategyComponents {
		t.Fatalf("expected components strategy, got %s", res.Strategy)
	}
	if len(res.Files) != 1 {
		t.Fatalf("expected one stub, got %v", paths(res.Files))
	}
	f := res.Files[0]
	if f.Path != "src/components/Widget.tsx" {
		t.Errorf("expected src/components/Widget.tsx, got %q", f.Path)
	}
	if !strings.Contains(f.Content, NotImplementedMarker) {
		t.Error("expected stub to carry the not-implemented marker")
	}
	if f.IsComplete || len(f.Challenges) != 1 || f.Challenges[0].Difficulty != artifact.DifficultyHard {
		t.Errorf("expected incomplete file with one hard challenge, got %+v", f)
	}
}

func TestComponentNamesKeepMentionOrder(t *testing.T) {
	got := componentTokens("I created the Header component, then built a Footer and the Sidebar component. The React component tree is done.")
	want := "Header,Footer,Sidebar"
	if strings.Join(got, ",") != want {
		t.Errorf("expected %s, got %v", want, got)
	}
}

func TestComponentHeuristicSkippedWhenFencesExist(t *testing.T) {
	res := quietExtractor().Parse("I generated a Widget component.\n```js\n\n```")
	if res.Strategy != StrategyPlaceholder {
		t.Errorf("expected placeholder when fences exist but are empty, got %s", res.Strategy)
	}
}

func TestPlaceholderForUnrecognizedText(t *testing.T) {
	res := quietExtractor().Parse("Sorry, I cannot help with that.")
	if res.Strategy != StrategyPlaceholder {
		t.Fatalf("expected placeholder, got %s", res.Strategy)
	}
	f := res.Files[0]
	if f.Path != "src/App.tsx" || len(f.Challenges) != 1 || f.Challenges[0].Difficulty != artifact.DifficultyHard {
		t.Errorf("unexpected placeholder %+v", f)
	}
}

func TestDuplicatePathsKeepFirst(t *testing.T) {
	raw := "```json\n" + `{"projectName": "p", "description": "d", "files": [
{"path": "a.txt", "content": "first"}, {"path": "./a.txt", "content": "second"}]}` + "\n```"
	files := quietExtractor().Extract(raw)
	if len(files) != 1 || files[0].Content != "first" {
		t.Errorf("expected first a.txt kept, got %+v", files)
	}
}

func TestExtractNeverReturnsEmpty(t *testing.T) {
	inputs := []string{
		"",
		"```",
		"{",
		"}",
		`"files"`,
		`{"files": []}`,
		"```json\n{\"projectName\": \"x\", \"description\": \"y\", \"files\": []}\n```",
		strings.Repeat("{", 500) + `"files"` + strings.Repeat("}", 3),
		"\x00\xff\xfe",
		"built",
	}
	for _, in := range inputs {
		if files := Extract(in); len(files) == 0 {
			t.Errorf("expected non-empty result for %q", in)
		}
	}
}

func TestResultArtifactOpensInStore(t *testing.T) {
	res := quietExtractor().Parse("```html\n<h1>hi</h1>\n```")
	s := artifact.NewStore()
	if err := s.Open(res.Artifact()); err != nil {
		t.Fatalf("expected extracted artifact to open, got %v", err)
	}
}

// ABOUTME: FileSetExtractor turning raw model output into a non-empty, ordered list of files.
// ABOUTME: Runs a five-stage cascade where the first stage that yields files wins.
package extract

import (
	"fmt"
	"log"
	"strings"

	"github.com/2389-research/vellum/artifact"
)

// DefaultProjectName is used when the output does not name its project.
const DefaultProjectName = "Generated Project"

// Strategy names the cascade stage that produced a result.
type Strategy string

const (
	StrategyStructured  Strategy = "structured"
	StrategyLoose       Strategy = "loose"
	StrategyFences      Strategy = "fences"
	StrategyComponents  Strategy = "components"
	StrategyPlaceholder Strategy = "placeholder"
)

// Result is the outcome of one extraction.
type Result struct {
	ProjectName string
	Description string
	Files       []artifact.File
	Strategy    Strategy
}

// Artifact wraps the result into an artifact with a fresh id.
func (r Result) Artifact() artifact.Artifact {
	return artifact.New(r.ProjectName, r.Description, r.Files)
}

// input is the raw text plus its pre-scanned fences, shared by every stage.
type input struct {
	text   string
	fences []fence
}

// stage attempts one extraction strategy.
type stage struct {
	strategy Strategy
	run      func(e *Extractor, in *input) (Result, bool)
}

var cascade = []stage{
	{StrategyStructured, (*Extractor).structuredBlock},
	{StrategyLoose, (*Extractor).looseScan},
	{StrategyFences, (*Extractor).harvestFences},
	{StrategyComponents, (*Extractor).componentNames},
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for advisory messages.
func WithLogger(l *log.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// WithLanguage maps an additional fence tag to a file extension.
func WithLanguage(tag, ext string) Option {
	return func(e *Extractor) {
		e.extensions[strings.ToLower(tag)] = strings.TrimPrefix(ext, ".")
	}
}

// WithDefaultProjectName overrides the project name used for unnamed output.
func WithDefaultProjectName(name string) Option {
	return func(e *Extractor) {
		if name != "" {
			e.defaultName = name
		}
	}
}

// Extractor recovers file sets from model output. The zero value is not usable;
// construct with New.
type Extractor struct {
	logger      *log.Logger
	extensions  map[string]string
	defaultName string
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		logger:      log.Default(),
		extensions:  make(map[string]string),
		defaultName: DefaultProjectName,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = New()

// Extract runs the default extractor and returns only the files.
func Extract(raw string) []artifact.File {
	return defaultExtractor.Parse(raw).Files
}

// Parse runs the default extractor.
func Parse(raw string) Result {
	return defaultExtractor.Parse(raw)
}

// Extract returns the files recovered from raw. The list is never empty.
func (e *Extractor) Extract(raw string) []artifact.File {
	return e.Parse(raw).Files
}

// Parse runs the cascade. It never panics and never returns an empty file list.
func (e *Extractor) Parse(raw string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("component=extract action=recovered panic=%v", r)
			res = e.placeholder()
		}
	}()

	in := &input{text: raw, fences: scanFences(raw)}
	for _, st := range cascade {
		r, ok := st.run(e, in)
		if !ok {
			continue
		}
		r.Files = dedupe(r.Files)
		if len(r.Files) == 0 {
			continue
		}
		r.Strategy = st.strategy
		e.logger.Printf("component=extract action=parsed strategy=%s files=%d", r.Strategy, len(r.Files))
		return r
	}

	e.logger.Printf("component=extract action=placeholder reason=no_files_found bytes=%d", len(raw))
	return e.placeholder()
}

// structuredBlock accepts the first json fence that carries a project name,
// a description, and at least one file.
func (e *Extractor) structuredBlock(in *input) (Result, bool) {
	for _, f := range in.fences {
		if f.lang != "json" {
			continue
		}
		p, ok := decodePayload(f.body)
		if !ok || !p.hasProjectName || !p.hasDescription {
			continue
		}
		return Result{ProjectName: p.projectName, Description: p.description, Files: p.files}, true
	}
	return Result{}, false
}

const (
	// maxCandidatesPerMarker bounds how many enclosing braces are tried for one
	// "files" marker.
	maxCandidatesPerMarker = 64

	// maxDecodeBytes caps the bytes handed to the JSON decoder across all
	// candidates of one scan.
	maxDecodeBytes = 16 << 20
)

// looseScan searches the whole text for a JSON object containing a "files"
// array. For each marker the nearest enclosing brace is tried first, so the
// shortest parseable span wins. Each brace is decoded at most once.
func (e *Extractor) looseScan(in *input) (Result, bool) {
	text := in.text
	bi := indexBraces(text, `"files"`)
	tried := make([]bool, len(bi.opens))
	budget := maxDecodeBytes
	skipped := 0

	for _, innermost := range bi.markers {
		n := 0
		for k := innermost; k >= 0 && n < maxCandidatesPerMarker; k = bi.parents[k] {
			n++
			end := bi.ends[k]
			if end < 0 {
				// every enclosing brace of an unclosed brace is unclosed too
				break
			}
			if tried[k] {
				continue
			}
			tried[k] = true
			span := text[bi.opens[k] : end+1]
			if len(span) > budget {
				skipped++
				continue
			}
			budget -= len(span)

			p, ok := decodePayload(span)
			if !ok {
				continue
			}
			name := p.projectName
			if !p.hasProjectName || strings.TrimSpace(name) == "" {
				name = e.defaultName
			}
			return Result{ProjectName: name, Description: p.description, Files: p.files}, true
		}
	}
	if skipped > 0 {
		e.logger.Printf("component=extract action=loose_scan_budget_exhausted bytes=%d skipped=%d", len(text), skipped)
	}
	return Result{}, false
}

// harvestFences turns every non-structured fenced block into one file.
func (e *Extractor) harvestFences(in *input) (Result, bool) {
	var files []artifact.File
	n := 0
	for _, f := range in.fences {
		if f.lang == "json" && strings.Contains(f.body, `"files"`) {
			continue
		}
		body, hint := pathHint(f)
		if strings.TrimSpace(body) == "" {
			continue
		}
		n++
		path := hint
		if path == "" {
			path = fmt.Sprintf("file%d.%s", n, e.extensionFor(f.lang))
		}
		files = append(files, artifact.NewFile(path, body))
	}
	if len(files) == 0 {
		return Result{}, false
	}
	return Result{ProjectName: e.defaultName, Files: files}, true
}

func (e *Extractor) extensionFor(tag string) string {
	if ext, ok := e.extensions[tag]; ok {
		return ext
	}
	return artifact.ExtensionForFence(tag)
}

// componentNames synthesizes stub files for components the prose claims were
// generated. It only runs when the text has no fenced blocks at all.
func (e *Extractor) componentNames(in *input) (Result, bool) {
	if len(in.fences) > 0 || !generationPhrase.MatchString(in.text) {
		return Result{}, false
	}
	names := componentTokens(in.text)
	if len(names) == 0 {
		return Result{}, false
	}
	files := make([]artifact.File, 0, len(names))
	for _, name := range names {
		files = append(files, componentStub(name))
	}
	e.logger.Printf("component=extract action=synthesized_components count=%d", len(files))
	return Result{ProjectName: e.defaultName, Files: files}, true
}

func (e *Extractor) placeholder() Result {
	f := artifact.NewFile("src/App.tsx", placeholderSource)
	f.IsComplete = false
	f.Challenges = []artifact.Challenge{{
		Description: "The response did not contain any recognizable source files. Write the App component from the project description.",
		Difficulty:  artifact.DifficultyHard,
		Hints: []string{
			"Start from the feature list in the conversation.",
			"Ask the generator again for the code in fenced blocks.",
		},
	}}
	return Result{ProjectName: e.defaultName, Files: []artifact.File{f}, Strategy: StrategyPlaceholder}
}

// dedupe keeps the first file for each path.
func dedupe(files []artifact.File) []artifact.File {
	seen := make(map[string]bool, len(files))
	out := files[:0:0]
	for _, f := range files {
		if seen[f.Path] {
			continue
		}
		seen[f.Path] = true
		out = append(out, f)
	}
	return out
}

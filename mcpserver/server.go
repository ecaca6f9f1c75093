// ABOUTME: MCP tool server exposing file-set extraction and static preview rendering.
// ABOUTME: Tools are registered on the official go-sdk server and served over stdio by the CLI.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/2389-research/vellum/artifact"
	"github.com/2389-research/vellum/extract"
	"github.com/2389-research/vellum/render"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Option configures the tool server.
type Option func(*config)

type config struct {
	extractor *extract.Extractor
	static    *render.Cache
	logger    *log.Logger
}

// WithExtractor replaces the extractor used by extract_files.
func WithExtractor(e *extract.Extractor) Option {
	return func(c *config) {
		c.extractor = e
	}
}

// WithStaticCache sets the cache used by render_static_preview.
func WithStaticCache(rc *render.Cache) Option {
	return func(c *config) {
		c.static = rc
	}
}

// WithLogger sets the logger for tool calls.
func WithLogger(l *log.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// ExtractInput is the argument of extract_files.
type ExtractInput struct {
	Text string `json:"text" jsonschema:"raw model output containing a project"`
}

// FileOutput is one extracted file.
type FileOutput struct {
	Path       string `json:"path"`
	Language   string `json:"language"`
	Content    string `json:"content"`
	IsComplete bool   `json:"is_complete"`
}

// ExtractOutput is the result of extract_files.
type ExtractOutput struct {
	ProjectName string       `json:"project_name"`
	Description string       `json:"description,omitempty"`
	Strategy    string       `json:"strategy"`
	Files       []FileOutput `json:"files"`
}

// FileInput is one file handed to render_static_preview.
type FileInput struct {
	Path    string `json:"path" jsonschema:"slash-separated relative path"`
	Content string `json:"content" jsonschema:"file contents"`
}

// RenderInput is the argument of render_static_preview. Text is extracted
// first when Files is empty.
type RenderInput struct {
	Files []FileInput `json:"files,omitempty" jsonschema:"files to render"`
	Text  string      `json:"text,omitempty" jsonschema:"raw model output to extract and render when files is empty"`
}

// RenderOutput is the result of render_static_preview.
type RenderOutput struct {
	HTML string `json:"html"`
	CSP  string `json:"csp"`
}

// ErrNoInput is returned when render_static_preview gets neither files nor text.
var ErrNoInput = errors.New("either files or text is required")

// New builds an MCP server with the extraction and rendering tools registered.
func New(version string, opts ...Option) *mcp.Server {
	cfg := &config{
		extractor: extract.New(),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.static == nil {
		cfg.static = render.NewCache(10 * time.Minute)
	}

	server := mcp.NewServer(&mcp.Implementation{Name: "vellum", Version: version}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "extract_files",
		Description: "Extract a set of project files from raw model output. Always returns at least one file.",
	}, cfg.extractFiles)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "render_static_preview",
		Description: "Render files as a single static HTML page with scripts disabled.",
	}, cfg.renderStatic)
	return server
}

// Serve runs the server over stdin/stdout until the client disconnects or
// ctx is cancelled.
func Serve(ctx context.Context, server *mcp.Server) error {
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve mcp: %w", err)
	}
	return nil
}

func (c *config) extractFiles(ctx context.Context, req *mcp.CallToolRequest, in ExtractInput) (*mcp.CallToolResult, ExtractOutput, error) {
	res := c.extractor.Parse(in.Text)
	c.logger.Printf("component=mcp action=extract_files strategy=%s files=%d", res.Strategy, len(res.Files))

	out := ExtractOutput{
		ProjectName: res.ProjectName,
		Description: res.Description,
		Strategy:    string(res.Strategy),
		Files:       make([]FileOutput, 0, len(res.Files)),
	}
	for _, f := range res.Files {
		out.Files = append(out.Files, FileOutput{
			Path:       f.Path,
			Language:   f.Language,
			Content:    f.Content,
			IsComplete: f.IsComplete,
		})
	}
	return nil, out, nil
}

func (c *config) renderStatic(ctx context.Context, req *mcp.CallToolRequest, in RenderInput) (*mcp.CallToolResult, RenderOutput, error) {
	var files []artifact.File
	switch {
	case len(in.Files) > 0:
		for _, f := range in.Files {
			if artifact.NormalizePath(f.Path) == "" {
				return nil, RenderOutput{}, fmt.Errorf("invalid file path %q", f.Path)
			}
			files = append(files, artifact.NewFile(f.Path, f.Content))
		}
	case in.Text != "":
		files = c.extractor.Extract(in.Text)
	default:
		return nil, RenderOutput{}, ErrNoInput
	}

	html := c.static.Render(files)
	c.logger.Printf("component=mcp action=render_static_preview files=%d bytes=%d", len(files), len(html))
	return nil, RenderOutput{HTML: html, CSP: render.CSPHeader}, nil
}

// ABOUTME: CLI entrypoint for vellum: one-shot extraction, HTTP server, terminal viewer, and MCP modes.
// ABOUTME: Loads .env and config, wires the pipeline, and handles signals for graceful shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/2389-research/vellum/artifact"
	"github.com/2389-research/vellum/config"
	"github.com/2389-research/vellum/extract"
	"github.com/2389-research/vellum/mcpserver"
	"github.com/2389-research/vellum/tui"
)

var version = "dev"

// options holds CLI flags and the positional input.
type options struct {
	configPath  string
	dataDir     string
	outDir      string
	staticOut   string
	prompt      string
	serverMode  bool
	watch       bool
	tuiMode     bool
	mcpMode     bool
	verbose     bool
	showVersion bool
	input       string
}

func main() {
	loadDotEnvAuto()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Printf("vellum %s\n", version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, opts, os.Stdin, os.Stdout, os.Stderr))
}

// parseFlags parses command-line flags into options.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("vellum", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Config file (.yaml, .yml or .toml)")
	fs.StringVar(&opts.dataDir, "data-dir", "", "Data directory (default: $XDG_DATA_HOME/vellum)")
	fs.StringVar(&opts.outDir, "out", "", "Write extracted files into this directory")
	fs.StringVar(&opts.staticOut, "static", "", "Write the static preview to this HTML file")
	fs.StringVar(&opts.prompt, "prompt", "", "Generate model output from this prompt instead of reading input")
	fs.BoolVar(&opts.serverMode, "server", false, "Start the HTTP API")
	fs.BoolVar(&opts.watch, "watch", false, "Reopen the input file whenever it changes (server mode)")
	fs.BoolVar(&opts.tuiMode, "tui", false, "Browse the artifact in the terminal viewer")
	fs.BoolVar(&opts.mcpMode, "mcp", false, "Serve extraction tools over MCP on stdio")
	fs.BoolVar(&opts.verbose, "verbose", false, "Verbose logging")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		printHelp(stderr, version)
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		opts.input = fs.Arg(0)
	}
	if opts.watch && (opts.input == "" || opts.input == "-") {
		fmt.Fprintln(stderr, "error: -watch needs an input file")
		return opts, errors.New("watch without input file")
	}
	return opts, nil
}

// run dispatches to the selected mode. Returns the process exit code.
func run(ctx context.Context, opts options, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(opts, os.Getenv)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	logger := newLogger(stderr, opts.verbose || opts.serverMode)

	if opts.mcpMode {
		server := mcpserver.New(version,
			mcpserver.WithExtractor(newExtractor(cfg, logger)),
			mcpserver.WithLogger(logger),
		)
		if err := mcpserver.Serve(ctx, server); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	if opts.serverMode || opts.tuiMode {
		return runInteractive(ctx, opts, cfg, logger, stdin, stderr)
	}

	if opts.input == "" && opts.prompt == "" {
		printHelp(stderr, version)
		return 0
	}
	return runOnce(ctx, opts, cfg, logger, stdin, stdout, stderr)
}

// runOnce extracts a file set, prints a summary, and optionally writes the
// files and the static preview.
func runOnce(ctx context.Context, opts options, cfg config.Config, logger *log.Logger, stdin io.Reader, stdout, stderr io.Writer) int {
	raw, err := readRaw(ctx, opts, cfg, stdin, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	res := newExtractor(cfg, logger).Parse(raw)
	printSummary(stdout, res)

	if opts.outDir != "" {
		if err := writeFiles(opts.outDir, res.Files); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Wrote %d files to %s\n", len(res.Files), opts.outDir)
	}
	if opts.staticOut != "" {
		doc := newStaticCache(cfg).Render(res.Files)
		if err := os.WriteFile(opts.staticOut, []byte(doc), 0o644); err != nil {
			fmt.Fprintf(stderr, "error: write static preview: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Wrote static preview to %s\n", opts.staticOut)
	}
	return 0
}

// runInteractive builds the full pipeline and runs the HTTP API, the
// terminal viewer, or both.
func runInteractive(ctx context.Context, opts options, cfg config.Config, logger *log.Logger, stdin io.Reader, stderr io.Writer) int {
	if opts.tuiMode && !opts.verbose {
		// log lines would tear the alternate screen
		logger.SetOutput(io.Discard)
	}

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer app.close()

	if opts.input != "" || opts.prompt != "" {
		raw, err := readRaw(ctx, opts, cfg, stdin, logger)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		if _, _, err := app.studio.OpenRaw(ctx, raw); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
	}

	if opts.watch {
		go func() {
			err := watchFile(ctx, opts.input, logger, func(raw string) {
				if _, _, err := app.studio.OpenRaw(ctx, raw); err != nil {
					logger.Printf("component=cli action=reopen_failed path=%s err=%v", opts.input, err)
				}
			})
			if err != nil && ctx.Err() == nil {
				logger.Printf("component=cli action=watch_failed path=%s err=%v", opts.input, err)
			}
		}()
	}

	if opts.serverMode && opts.tuiMode {
		srv := newHTTPServer(app.studio, cfg, logger)
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Printf("component=cli action=server_failed err=%v", err)
			}
		}()
		return runViewer(ctx, app, stderr)
	}
	if opts.tuiMode {
		return runViewer(ctx, app, stderr)
	}

	fmt.Fprintf(stderr, "listening on %s\n", cfg.Server.Bind)
	if err := newHTTPServer(app.studio, cfg, logger).Run(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runViewer(ctx context.Context, app *app, stderr io.Writer) int {
	if err := tui.Run(ctx, app.studio); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// readRaw returns the model output from -prompt, stdin ("-"), or a file.
func readRaw(ctx context.Context, opts options, cfg config.Config, stdin io.Reader, logger *log.Logger) (string, error) {
	if opts.prompt != "" {
		src, err := newSource(ctx, cfg, logger)
		if err != nil {
			return "", err
		}
		return src.Generate(ctx, opts.prompt)
	}
	if opts.input == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(opts.input)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

func printSummary(w io.Writer, res extract.Result) {
	fmt.Fprintf(w, "%s (%s, %d files)\n", res.ProjectName, res.Strategy, len(res.Files))
	if res.Description != "" {
		fmt.Fprintf(w, "%s\n", res.Description)
	}
	for _, f := range res.Files {
		mark := " "
		if !f.IsComplete {
			mark = "!"
		}
		fmt.Fprintf(w, "  %s %-40s %s\n", mark, f.Path, f.Language)
	}
}

// writeFiles writes files under dir. Paths are already normalized, so none
// escapes dir.
func writeFiles(dir string, files []artifact.File) error {
	for _, f := range files {
		full := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("create directories for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(full, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	return nil
}

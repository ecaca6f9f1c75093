// ABOUTME: Help display for the vellum CLI with grouped flags, examples, and environment status.
// ABOUTME: Provides printHelp for usage output and envStatus for API key detection.
package main

import (
	"fmt"
	"io"
	"os"
)

// printHelp writes usage, grouped flags, examples, and environment status to w.
func printHelp(w io.Writer, ver string) {
	fmt.Fprintf(w, "vellum %s - turn model output into browsable, previewable projects\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  vellum [flags] <model-output.txt|->   Extract files and print a summary")
	fmt.Fprintln(w, "  vellum -prompt \"a todo app\"           Generate with the configured LLM, then extract")
	fmt.Fprintln(w, "  vellum -server [input]                Start the HTTP API")
	fmt.Fprintln(w, "  vellum -tui <input>                   Browse the artifact in the terminal")
	fmt.Fprintln(w, "  vellum -mcp                           Serve extraction tools over MCP (stdio)")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Output Flags:")
	fmt.Fprintln(w, "  -out <dir>            Write extracted files into dir")
	fmt.Fprintln(w, "  -static <file.html>   Write a static preview (scripts disabled)")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Server Flags:")
	fmt.Fprintln(w, "  -server               Start the HTTP API (bind from config, default 127.0.0.1:2389)")
	fmt.Fprintln(w, "  -watch                Reopen the input file on every change")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Other:")
	fmt.Fprintln(w, "  -config <file>        Config file (.yaml, .yml, .toml)")
	fmt.Fprintln(w, "  -data-dir <dir>       Data directory (default: $XDG_DATA_HOME/vellum)")
	fmt.Fprintln(w, "  -verbose              Verbose logging")
	fmt.Fprintln(w, "  -version              Print version and exit")
	fmt.Fprintln(w, "  -help                 Show this help")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  vellum -out ./app response.md")
	fmt.Fprintln(w, "  pbpaste | vellum -static preview.html -")
	fmt.Fprintln(w, "  vellum -server -watch response.md")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  ANTHROPIC_API_KEY     %s\n", envStatus("ANTHROPIC_API_KEY"))
	fmt.Fprintf(w, "  OPENAI_API_KEY        %s\n", envStatus("OPENAI_API_KEY"))
	fmt.Fprintf(w, "  GEMINI_API_KEY        %s\n", envStatus("GEMINI_API_KEY"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  An API key is only needed for -prompt and prompt requests to the HTTP API.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Docs: https://github.com/2389-research/vellum")
}

// envStatus returns "[set]" if the named environment variable is non-empty,
// or "[not set]" otherwise.
func envStatus(key string) string {
	if os.Getenv(key) != "" {
		return "[set]"
	}
	return "[not set]"
}

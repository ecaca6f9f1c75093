// ABOUTME: Loads environment variables from .env files at startup.
// ABOUTME: Sets variables only when not already present in the environment (no clobber).
package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// loadDotEnv reads a .env file and sets any variables not already in the
// environment. Missing files are ignored. Supports KEY=VALUE, quoted values,
// and an export prefix.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := parseDotEnvLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
}

// parseDotEnvLine splits one .env line. Comments, blank lines, and lines
// without '=' are rejected.
func parseDotEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	// values can contain '='
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return "", "", false
	}

	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return key, value, true
}

// loadDotEnvAuto loads .env from the working directory and its parents, then
// next to the executable. Earlier files win.
func loadDotEnvAuto() {
	seen := map[string]bool{}
	load := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		loadDotEnv(p)
	}

	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for {
			load(filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if exe, err := os.Executable(); err == nil {
		load(filepath.Join(filepath.Dir(exe), ".env"))
	}
}

// ABOUTME: Environment filtering for sandbox child processes.
// ABOUTME: Keeps secrets such as API keys out of generated code's dev servers by default.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389-research/vellum/artifact"
)

// EnvPolicy controls how environment variables reach sandbox processes.
type EnvPolicy string

const (
	// EnvInheritCore passes the environment minus anything that looks secret.
	EnvInheritCore EnvPolicy = "inherit_core"
	// EnvInheritAll passes the environment unchanged.
	EnvInheritAll EnvPolicy = "inherit_all"
	// EnvInheritNone passes only the explicit variables.
	EnvInheritNone EnvPolicy = "inherit_none"
)

// ParseEnvPolicy validates a policy name. Empty means EnvInheritCore.
func ParseEnvPolicy(s string) (EnvPolicy, error) {
	switch EnvPolicy(s) {
	case "", EnvInheritCore:
		return EnvInheritCore, nil
	case EnvInheritAll, EnvInheritNone:
		return EnvPolicy(s), nil
	}
	return "", fmt.Errorf("unknown env policy %q", s)
}

var sensitiveSuffixes = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
	"_CREDENTIALS",
}

// alwaysKept survive inherit_core even if a suffix rule would drop them.
var alwaysKept = map[string]bool{
	"PATH":     true,
	"HOME":     true,
	"USER":     true,
	"SHELL":    true,
	"LANG":     true,
	"TERM":     true,
	"TMPDIR":   true,
	"NVM_DIR":  true,
	"NODE_ENV": true,
}

func isSensitive(name string) bool {
	upper := strings.ToUpper(name)
	for _, suffix := range sensitiveSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}

// buildEnv returns the environment for a child process under policy, with
// explicit variables appended last.
func buildEnv(policy EnvPolicy, base []string, explicit map[string]string) []string {
	var env []string
	switch policy {
	case EnvInheritAll:
		env = append(env, base...)
	case EnvInheritNone:
	default:
		for _, entry := range base {
			name, _, ok := strings.Cut(entry, "=")
			if !ok {
				continue
			}
			if alwaysKept[name] || !isSensitive(name) {
				env = append(env, entry)
			}
		}
	}
	for k, v := range explicit {
		if policy != EnvInheritAll && isSensitive(k) {
			continue
		}
		env = append(env, k+"="+v)
	}
	return env
}

// writeFiles materializes a file set under dir. Paths are normalized first, so
// no entry can escape dir.
func writeFiles(dir string, files map[string]string) error {
	for p, content := range files {
		rel := artifact.NormalizePath(p)
		if rel == "" {
			continue
		}
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("create directories for %s: %w", rel, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write file %s: %w", rel, err)
		}
	}
	return nil
}

// ABOUTME: XDG base directory lookups for the vellum CLI: the data dir and the default config file.
// ABOUTME: Relative XDG values are ignored and the home directory fallbacks are used instead.
package main

import (
	"fmt"
	"os"
	"path/filepath"
)

const appDirName = "vellum"

// xdgBase is one XDG base directory: the variable that overrides it and its
// location under $HOME.
type xdgBase struct {
	env      string
	fallback []string
}

var (
	xdgData   = xdgBase{env: "XDG_DATA_HOME", fallback: []string{".local", "share"}}
	xdgConfig = xdgBase{env: "XDG_CONFIG_HOME", fallback: []string{".config"}}
)

// dir returns the vellum directory inside b.
func (b xdgBase) dir() (string, error) {
	if v := os.Getenv(b.env); v != "" && filepath.IsAbs(v) {
		return filepath.Join(v, appDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	parts := append([]string{home}, b.fallback...)
	return filepath.Join(append(parts, appDirName)...), nil
}

// configFileNames are tried in order inside the config dir.
var configFileNames = []string{"config.yaml", "config.yml", "config.toml"}

// defaultConfigFile returns the first regular config file in the XDG config
// dir, or "" when there is none.
func defaultConfigFile() string {
	dir, err := xdgConfig.dir()
	if err != nil {
		return ""
	}
	for _, name := range configFileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

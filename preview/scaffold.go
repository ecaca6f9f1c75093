// ABOUTME: Injects the project boilerplate a dev server needs to preview a generated file set.
// ABOUTME: Idempotent and never overwrites a file the user already has.
package preview

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
)

type packageManifest struct {
	Name            string            `json:"name"`
	Private         bool              `json:"private"`
	Version         string            `json:"version"`
	Type            string            `json:"type"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`
}

const viteConfigSource = `import { defineConfig } from 'vite';
import react from '@vitejs/plugin-react';

export default defineConfig({
  plugins: [react()],
});
`

// Scaffold returns a copy of files with missing boilerplate added. Files that
// already exist are never replaced, so Scaffold(Scaffold(x)) equals Scaffold(x).
func Scaffold(files map[string]string) map[string]string {
	out := make(map[string]string, len(files)+4)
	for p, c := range files {
		out[p] = c
	}

	react, typescript := detectReact(files)
	if _, ok := out["package.json"]; !ok {
		out["package.json"] = manifest(react, typescript)
	}
	if !react {
		return out
	}

	if !hasPrefixFile(out, "vite.config.") {
		out["vite.config.js"] = viteConfigSource
	}

	entry := existingEntry(out)
	if entry == "" {
		ext := "jsx"
		if typescript {
			ext = "tsx"
		}
		entry = "src/main." + ext
		out[entry] = mainSource(rootComponent(files))
	}

	if _, ok := out["index.html"]; !ok {
		out["index.html"] = indexSource("/" + entry)
	}
	return out
}

// NeedsInstall reports whether the file set declares dependencies that must be
// installed before the dev server can start.
func NeedsInstall(files map[string]string) bool {
	raw, ok := files["package.json"]
	if !ok {
		return false
	}
	var m struct {
		Dependencies    map[string]any `json:"dependencies"`
		DevDependencies map[string]any `json:"devDependencies"`
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return false
	}
	return len(m.Dependencies) > 0 || len(m.DevDependencies) > 0
}

func detectReact(files map[string]string) (react, typescript bool) {
	for p := range files {
		switch strings.ToLower(path.Ext(p)) {
		case ".tsx":
			react, typescript = true, true
		case ".jsx":
			react = true
		}
	}
	return react, typescript
}

func manifest(react, typescript bool) string {
	m := packageManifest{
		Name:    "vellum-preview",
		Private: true,
		Version: "0.0.0",
		Type:    "module",
		Scripts: map[string]string{"dev": "vite", "build": "vite build"},
		DevDependencies: map[string]string{
			"vite": "^5.4.0",
		},
	}
	if react {
		m.Dependencies = map[string]string{
			"react":     "^18.3.1",
			"react-dom": "^18.3.1",
		}
		m.DevDependencies["@vitejs/plugin-react"] = "^4.3.1"
	}
	if typescript {
		m.DevDependencies["typescript"] = "^5.5.0"
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		// static value; cannot fail
		panic(err)
	}
	return string(data) + "\n"
}

func hasPrefixFile(files map[string]string, prefix string) bool {
	for p := range files {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// existingEntry finds a user-provided src/main.* or src/index.* script.
func existingEntry(files map[string]string) string {
	var candidates []string
	for p := range files {
		dir, base := path.Split(p)
		if dir != "src/" {
			continue
		}
		stem := strings.TrimSuffix(base, path.Ext(base))
		switch strings.ToLower(path.Ext(base)) {
		case ".js", ".jsx", ".ts", ".tsx":
		default:
			continue
		}
		if stem == "main" || stem == "index" {
			candidates = append(candidates, p)
		}
	}
	sort.Strings(candidates)
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

// rootComponent picks the component the generated entry renders: App when
// present, else the first component file in path order.
func rootComponent(files map[string]string) string {
	var components []string
	for p := range files {
		switch strings.ToLower(path.Ext(p)) {
		case ".tsx", ".jsx":
			components = append(components, p)
		}
	}
	sort.Strings(components)
	for _, p := range components {
		if stem := strings.TrimSuffix(path.Base(p), path.Ext(p)); stem == "App" {
			return p
		}
	}
	if len(components) == 0 {
		return ""
	}
	return components[0]
}

func mainSource(component string) string {
	importPath := strings.TrimSuffix(component, path.Ext(component))
	if strings.HasPrefix(importPath, "src/") {
		importPath = "./" + strings.TrimPrefix(importPath, "src/")
	} else {
		importPath = "../" + importPath
	}
	return fmt.Sprintf(`import React from 'react';
import ReactDOM from 'react-dom/client';
import App from '%s';

ReactDOM.createRoot(document.getElementById('root')).render(
  <React.StrictMode>
    <App />
  </React.StrictMode>,
);
`, importPath)
}

func indexSource(entry string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <title>Preview</title>
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="%s"></script>
  </body>
</html>
`, entry)
}

// ABOUTME: Language tag table shared by extraction and display code.
// ABOUTME: Maps fence info strings to file extensions and extensions back to language tags.
package artifact

import (
	"path"
	"strings"
)

// fenceExtensions maps a fenced-block language tag to a file extension.
var fenceExtensions = map[string]string{
	"js":         "js",
	"javascript": "js",
	"mjs":        "js",
	"jsx":        "jsx",
	"ts":         "ts",
	"typescript": "ts",
	"tsx":        "tsx",
	"html":       "html",
	"htm":        "html",
	"css":        "css",
	"scss":       "scss",
	"json":       "json",
	"md":         "md",
	"markdown":   "md",
	"py":         "py",
	"python":     "py",
	"go":         "go",
	"golang":     "go",
	"rs":         "rs",
	"rust":       "rs",
	"java":       "java",
	"sh":         "sh",
	"bash":       "sh",
	"shell":      "sh",
	"zsh":        "sh",
	"yaml":       "yml",
	"yml":        "yml",
	"toml":       "toml",
	"sql":        "sql",
	"c":          "c",
	"cpp":        "cpp",
	"c++":        "cpp",
	"rb":         "rb",
	"ruby":       "rb",
	"php":        "php",
	"svg":        "svg",
	"xml":        "xml",
	"vue":        "vue",
	"svelte":     "svelte",
}

// extensionLanguages maps a file extension to the language tag shown in viewers.
var extensionLanguages = map[string]string{
	"js":     "javascript",
	"mjs":    "javascript",
	"cjs":    "javascript",
	"jsx":    "jsx",
	"ts":     "typescript",
	"tsx":    "tsx",
	"html":   "html",
	"htm":    "html",
	"css":    "css",
	"scss":   "scss",
	"json":   "json",
	"md":     "markdown",
	"py":     "python",
	"go":     "go",
	"rs":     "rust",
	"java":   "java",
	"sh":     "shell",
	"yml":    "yaml",
	"yaml":   "yaml",
	"toml":   "toml",
	"sql":    "sql",
	"c":      "c",
	"h":      "c",
	"cpp":    "cpp",
	"rb":     "ruby",
	"php":    "php",
	"svg":    "svg",
	"xml":    "xml",
	"vue":    "vue",
	"svelte": "svelte",
	"txt":    "text",
}

// ExtensionForFence returns the extension for a fence tag, or "txt" when unknown.
func ExtensionForFence(tag string) string {
	if ext, ok := fenceExtensions[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return ext
	}
	return "txt"
}

// LanguageForPath derives a language tag from the file extension.
func LanguageForPath(p string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}
	if ext == "" {
		return "text"
	}
	return ext
}

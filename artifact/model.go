// ABOUTME: Core data model for generated artifacts: files, challenges, and the artifact itself.
// ABOUTME: Includes boundary validation that normalizes paths and fills missing identifiers.
package artifact

import (
	"crypto/rand"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Sentinel errors returned by the store.
var (
	ErrInvalidArtifact = errors.New("invalid artifact")
	ErrFileNotFound    = errors.New("file not found")
	ErrNotEditing      = errors.New("no file is being edited")
	ErrNoArtifact      = errors.New("no artifact is open")
)

// Difficulty grades a learning challenge attached to a file.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps free text onto a Difficulty, defaulting to medium.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy", "beginner":
		return DifficultyEasy
	case "hard", "advanced":
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Challenge describes a gap or exercise the learner is expected to resolve.
type Challenge struct {
	Description string     `json:"description"`
	Difficulty  Difficulty `json:"difficulty"`
	Hints       []string   `json:"hints,omitempty"`
}

// File is one source file of an artifact.
type File struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Path       string      `json:"path"`
	Language   string      `json:"language"`
	Content    string      `json:"content"`
	IsComplete bool        `json:"is_complete"`
	Challenges []Challenge `json:"challenges,omitempty"`
}

// NewFile builds a complete file for the given path, deriving name and language.
func NewFile(p, content string) File {
	p = NormalizePath(p)
	return File{
		ID:         uuid.New().String(),
		Name:       path.Base(p),
		Path:       p,
		Language:   LanguageForPath(p),
		Content:    content,
		IsComplete: true,
	}
}

// Artifact is a titled, non-empty collection of files produced by one generation.
type Artifact struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Files       []File `json:"files"`
}

// New wraps a file list into an artifact with a fresh ULID.
func New(title, description string, files []File) Artifact {
	return Artifact{
		ID:          NewID(),
		Title:       title,
		Description: description,
		Files:       files,
	}
}

// NewID returns a new time-sortable artifact identifier.
func NewID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// FileByID returns the file with the given id.
func (a *Artifact) FileByID(id string) (File, bool) {
	for _, f := range a.Files {
		if f.ID == id {
			return f, true
		}
	}
	return File{}, false
}

// FileMap returns a path to content map of every file.
func (a *Artifact) FileMap() map[string]string {
	m := make(map[string]string, len(a.Files))
	for _, f := range a.Files {
		m[f.Path] = f.Content
	}
	return m
}

// Clone returns a deep copy of the artifact.
func (a Artifact) Clone() Artifact {
	out := a
	out.Files = make([]File, len(a.Files))
	for i, f := range a.Files {
		out.Files[i] = f.clone()
	}
	return out
}

func (f File) clone() File {
	out := f
	if f.Challenges != nil {
		out.Challenges = make([]Challenge, len(f.Challenges))
		for i, c := range f.Challenges {
			c.Hints = append([]string(nil), c.Hints...)
			out.Challenges[i] = c
		}
	}
	return out
}

// NormalizePath converts a path into the slash-separated relative form used for
// file identity: backslashes become slashes, leading "./" and "/" are removed and
// ".." segments are dropped.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	parts := strings.Split(p, "/")
	kept := parts[:0]
	for _, part := range parts {
		switch part {
		case "", ".", "..":
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "/")
}

// FolderPrefixes returns every ancestor folder of a path, outermost first.
// "src/components/App.tsx" yields "src" and "src/components".
func FolderPrefixes(p string) []string {
	parts := strings.Split(p, "/")
	if len(parts) < 2 {
		return nil
	}
	out := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		out = append(out, strings.Join(parts[:i], "/"))
	}
	return out
}

// Validate normalizes an artifact in place and reports why it cannot be opened.
// Missing ids, names and languages are filled in.
func (a *Artifact) Validate() error {
	if len(a.Files) == 0 {
		return fmt.Errorf("%w: artifact has no files", ErrInvalidArtifact)
	}
	if strings.TrimSpace(a.Title) == "" {
		a.Title = "Untitled Project"
	}
	if a.ID == "" {
		a.ID = NewID()
	}

	seenPaths := make(map[string]bool, len(a.Files))
	seenIDs := make(map[string]bool, len(a.Files))
	for i := range a.Files {
		f := &a.Files[i]
		f.Path = NormalizePath(f.Path)
		if f.Path == "" {
			return fmt.Errorf("%w: file %d has an empty path", ErrInvalidArtifact, i)
		}
		if seenPaths[f.Path] {
			return fmt.Errorf("%w: duplicate path %s", ErrInvalidArtifact, f.Path)
		}
		seenPaths[f.Path] = true

		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		if seenIDs[f.ID] {
			return fmt.Errorf("%w: duplicate file id %s", ErrInvalidArtifact, f.ID)
		}
		seenIDs[f.ID] = true

		if f.Name == "" {
			f.Name = path.Base(f.Path)
		}
		if f.Language == "" {
			f.Language = LanguageForPath(f.Path)
		}
		for j := range f.Challenges {
			if f.Challenges[j].Difficulty == "" {
				f.Challenges[j].Difficulty = DifficultyMedium
			}
		}
	}
	return nil
}

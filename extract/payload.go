// ABOUTME: Decoding of structured file payloads and brace matching for the loose JSON scan.
// ABOUTME: Coerces loosely typed JSON objects into artifact files, skipping malformed entries.
package extract

import (
	"encoding/json"
	"strings"

	"github.com/2389-research/vellum/artifact"
)

// payload is a decoded structured response.
type payload struct {
	projectName    string
	hasProjectName bool
	description    string
	hasDescription bool
	files          []artifact.File
}

// decodePayload parses an object holding a files array. It reports false when
// the text is not a JSON object or no file-like entry survives coercion.
func decodePayload(text string) (payload, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return payload{}, false
	}

	var p payload
	for _, key := range []string{"projectName", "project_name"} {
		if s, ok := obj[key].(string); ok {
			p.projectName, p.hasProjectName = s, true
			break
		}
	}
	if s, ok := obj["description"].(string); ok {
		p.description, p.hasDescription = s, true
	}
	p.files = coerceFiles(obj["files"])
	return p, len(p.files) > 0
}

func coerceFiles(v any) []artifact.File {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var files []artifact.File
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		path := firstString(obj, "path", "filename", "file", "name")
		content, hasContent := firstStringOK(obj, "content", "code", "contents")
		if artifact.NormalizePath(path) == "" || !hasContent {
			continue
		}
		f := artifact.NewFile(path, content)
		if lang := firstString(obj, "language", "lang"); lang != "" {
			f.Language = strings.ToLower(lang)
		}
		if done, ok := obj["isComplete"].(bool); ok {
			f.IsComplete = done
		} else if done, ok := obj["is_complete"].(bool); ok {
			f.IsComplete = done
		}
		f.Challenges = coerceChallenges(obj["challenges"])
		files = append(files, f)
	}
	return files
}

func coerceChallenges(v any) []artifact.Challenge {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []artifact.Challenge
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		desc := firstString(obj, "description", "title")
		if desc == "" {
			continue
		}
		c := artifact.Challenge{
			Description: desc,
			Difficulty:  artifact.ParseDifficulty(firstString(obj, "difficulty")),
		}
		if hints, ok := obj["hints"].([]any); ok {
			for _, h := range hints {
				if s, ok := h.(string); ok && s != "" {
					c.Hints = append(c.Hints, s)
				}
			}
		}
		out = append(out, c)
	}
	return out
}

func firstString(obj map[string]any, keys ...string) string {
	s, _ := firstStringOK(obj, keys...)
	return s
}

func firstStringOK(obj map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok {
			return s, true
		}
	}
	return "", false
}

// braceIndex locates every '{' outside a JSON string in one pass: where it
// closes, which brace encloses it, and the innermost open brace at each marker.
type braceIndex struct {
	opens   []int
	ends    []int // -1 when the brace never closes
	parents []int // index into opens, -1 at top level
	markers []int // index into opens of the innermost brace at each marker, -1 if none
}

// indexBraces scans text once. String state resets at newlines because a JSON
// string never spans lines, so a stray quote in prose only affects its line.
func indexBraces(text, marker string) braceIndex {
	var bi braceIndex
	var stack []int
	top := func() int {
		if len(stack) == 0 {
			return -1
		}
		return stack[len(stack)-1]
	}

	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case c == '\n':
				inString, escaped = false, false
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if strings.HasPrefix(text[i:], marker) {
				bi.markers = append(bi.markers, top())
			}
			inString = true
		case '{':
			bi.opens = append(bi.opens, i)
			bi.ends = append(bi.ends, -1)
			bi.parents = append(bi.parents, top())
			stack = append(stack, len(bi.opens)-1)
		case '}':
			if k := top(); k >= 0 {
				bi.ends[k] = i
				stack = stack[:len(stack)-1]
			}
		}
	}
	return bi
}

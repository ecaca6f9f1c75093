// ABOUTME: Markdown fenced code block scanner used by the extraction stages.
// ABOUTME: Captures info string, body, and the prose line preceding each fence.
package extract

import (
	"strings"
)

// fence is one fenced code block found in model output.
type fence struct {
	lang  string
	info  []string
	body  string
	lead  string
	index int
}

// scanFences returns every fenced block in order. A fence opens with three or
// more backticks and closes on a line of at least as many backticks. An
// unterminated fence runs to the end of the text.
func scanFences(text string) []fence {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var fences []fence
	var lastProse string
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		ticks := leadingBackticks(trimmed)
		if ticks < 3 {
			if trimmed != "" {
				lastProse = trimmed
			}
			continue
		}

		info := strings.Fields(strings.TrimSpace(trimmed[ticks:]))
		f := fence{info: info, lead: lastProse, index: len(fences)}
		if len(info) > 0 {
			f.lang = strings.ToLower(info[0])
		}

		var body []string
		j := i + 1
		for ; j < len(lines); j++ {
			t := strings.TrimSpace(lines[j])
			if n := leadingBackticks(t); n >= ticks && n == len(t) {
				break
			}
			body = append(body, lines[j])
		}
		f.body = trimBlankLines(body)
		fences = append(fences, f)
		lastProse = ""
		i = j
	}
	return fences
}

func leadingBackticks(s string) int {
	n := 0
	for n < len(s) && s[n] == '`' {
		n++
	}
	return n
}

// trimBlankLines drops leading and trailing whitespace-only lines and keeps the
// rest byte for byte.
func trimBlankLines(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

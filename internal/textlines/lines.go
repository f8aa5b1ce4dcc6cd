// Package textlines splits chapter text into the lines that are synthesized
// and played one at a time, and locates those lines in the original text so
// a reader can highlight the line being spoken.
package textlines

import "strings"

// Range is an inclusive byte range into the chapter text.
// A line that could not be located has Start == End == -1.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Found reports whether the range points into the text.
func (r Range) Found() bool {
	return r.Start >= 0 && r.End >= r.Start
}

// Split breaks text on newlines and drops blank lines. Lines are not trimmed
// beyond a trailing carriage return so they can still be found verbatim.
func Split(text string) []string {
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Ranges locates each line in text, scanning forward from the end of the
// previous match so repeated lines map to successive occurrences.
func Ranges(text string, lines []string) []Range {
	ranges := make([]Range, len(lines))
	cursor := 0
	for i, line := range lines {
		if line == "" || cursor > len(text) {
			ranges[i] = Range{Start: -1, End: -1}
			continue
		}
		idx := strings.Index(text[cursor:], line)
		if idx < 0 {
			ranges[i] = Range{Start: -1, End: -1}
			continue
		}
		start := cursor + idx
		ranges[i] = Range{Start: start, End: start + len(line) - 1}
		cursor = start + len(line)
	}
	return ranges
}

// Highlight cuts text around r. When r is not found the whole text is
// returned as before.
func Highlight(text string, r Range) (before, line, after string) {
	if !r.Found() || r.End >= len(text) {
		return text, "", ""
	}
	return text[:r.Start], text[r.Start : r.End+1], text[r.End+1:]
}

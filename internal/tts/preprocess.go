package tts

import (
	"regexp"
	"strings"
)

// Preprocessor normalizes a line before it is sent to an engine. Stored
// chapter text is never modified.
type Preprocessor struct {
	abbreviations *strings.Replacer
	punctuation   *strings.Replacer
	whitespace    *regexp.Regexp
	repeatedDots  *regexp.Regexp
}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		abbreviations: strings.NewReplacer(
			"Mr.", "Mister",
			"Mrs.", "Missus",
			"Ms.", "Miss",
			"Dr.", "Doctor",
			"St.", "Saint",
			"Prof.", "Professor",
			"Capt.", "Captain",
			"Gen.", "General",
			"Col.", "Colonel",
			"Lt.", "Lieutenant",
			"Sgt.", "Sergeant",
			"Jr.", "Junior",
			"Sr.", "Senior",
			"vs.", "versus",
			"etc.", "et cetera",
			"e.g.", "for example",
			"i.e.", "that is",
		),
		punctuation: strings.NewReplacer(
			"\u2014", ", ", // em dash
			"\u2013", "-", // en dash
			"\u2012", "-", // figure dash
			"\u2026", "...",
			"\u201c", `"`, "\u201d", `"`,
			"\u2018", "'", "\u2019", "'",
			"\u00a0", " ",
		),
		whitespace:   regexp.MustCompile(`\s+`),
		repeatedDots: regexp.MustCompile(`\.{4,}`),
	}
}

// Normalize expands abbreviations, flattens typographic punctuation and
// collapses whitespace.
func (p *Preprocessor) Normalize(text string) string {
	text = p.abbreviations.Replace(text)
	text = p.punctuation.Replace(text)
	text = p.repeatedDots.ReplaceAllString(text, "...")
	text = p.whitespace.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, " ,", ",")
	return strings.TrimSpace(text)
}

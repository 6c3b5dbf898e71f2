// Package prescription encodes discontinued prescription lines. A prescription
// is newline-delimited text; a line starting with Marker is discontinued.
package prescription

import (
	"errors"
	"strings"
)

// Marker prefixes a discontinued line.
const Marker = "~~"

// ErrLineOutOfRange is returned by Toggle for an index outside the text.
var ErrLineOutOfRange = errors.New("prescription line out of range")

// Line is one prescription line.
type Line struct {
	Text         string `json:"text"`
	Discontinued bool   `json:"discontinued"`
}

// Decode splits text into lines. Empty text decodes to no lines, so a
// prescription made of a single empty line does not survive a round trip.
func Decode(text string) []Line {
	if text == "" {
		return nil
	}
	raw := strings.Split(text, "\n")
	lines := make([]Line, len(raw))
	for i, s := range raw {
		if rest, ok := strings.CutPrefix(s, Marker); ok {
			lines[i] = Line{Text: rest, Discontinued: true}
			continue
		}
		lines[i] = Line{Text: s}
	}
	return lines
}

// Encode joins lines back into text.
func Encode(lines []Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if l.Discontinued {
			b.WriteString(Marker)
		}
		b.WriteString(l.Text)
	}
	return b.String()
}

// Toggle flips the discontinued state of the line at index, leaving the rest
// of the text untouched.
func Toggle(text string, index int) (string, error) {
	lines := Decode(text)
	if index < 0 || index >= len(lines) {
		return text, ErrLineOutOfRange
	}
	lines[index].Discontinued = !lines[index].Discontinued
	return Encode(lines), nil
}

// Active returns the text of lines that are not discontinued.
func Active(text string) []string {
	var out []string
	for _, l := range Decode(text) {
		if !l.Discontinued && strings.TrimSpace(l.Text) != "" {
			out = append(out, l.Text)
		}
	}
	return out
}

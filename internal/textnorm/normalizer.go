// Package textnorm sanitizes extracted plain text before chunking.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize cleans already-extracted text: CRLF to LF, control characters and
// invalid UTF-8 removed, horizontal whitespace runs collapsed, and blank-line
// runs reduced to a single paragraph break. It performs no chunking.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		switch {
		case r == utf8.RuneError:
			continue
		case r == '\n' || r == '\t':
			sb.WriteRune(r)
		case unicode.IsControl(r):
			continue
		default:
			sb.WriteRune(r)
		}
	}

	lines := strings.Split(sb.String(), "\n")
	for i, line := range lines {
		lines[i] = collapseSpaces(line)
	}

	var out []string
	blank := 0
	for _, line := range lines {
		if line == "" {
			blank++
			continue
		}
		if blank > 0 && len(out) > 0 {
			out = append(out, "")
		}
		blank = 0
		out = append(out, line)
	}

	return strings.Join(out, "\n")
}

// collapseSpaces reduces runs of spaces and tabs to a single space and trims
// the line ends.
func collapseSpaces(line string) string {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t'
	})
	return strings.Join(fields, " ")
}

package connectors

import "strings"

// SplitParagraphs splits text into blank-line separated paragraphs.
// Paragraphs are trimmed and empty ones dropped; CRLF is treated as LF.
func SplitParagraphs(text string) []string {
	var out []string
	forEachParagraph(normalizeNewlines(text), func(lines []string) {
		out = append(out, joinParagraph(lines))
	}, nil)
	return out
}

// ReplaceParagraph replaces every paragraph of text equal to prior, after
// trimming, with replacement. Blank lines and all other paragraphs are kept
// verbatim. It returns the new text and the number of paragraphs replaced.
func ReplaceParagraph(text, prior, replacement string) (string, int) {
	target := strings.TrimSpace(prior)
	if target == "" {
		return text, 0
	}
	replacement = strings.TrimSpace(normalizeNewlines(replacement))

	var out []string
	count := 0
	forEachParagraph(normalizeNewlines(text), func(lines []string) {
		if joinParagraph(lines) == target {
			out = append(out, replacement)
			count++
			return
		}
		out = append(out, lines...)
	}, func(blank string) {
		out = append(out, blank)
	})
	if count == 0 {
		return text, 0
	}
	return strings.Join(out, "\n"), count
}

// forEachParagraph walks text line by line, calling para for each run of
// non-blank lines and blank for each blank line.
func forEachParagraph(text string, para func(lines []string), blank func(line string)) {
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); {
		if isBlank(lines[i]) {
			if blank != nil {
				blank(lines[i])
			}
			i++
			continue
		}
		j := i
		for j < len(lines) && !isBlank(lines[j]) {
			j++
		}
		para(lines[i:j])
		i = j
	}
}

func joinParagraph(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

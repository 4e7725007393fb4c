package chunker

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	fencedCodeRegex = regexp.MustCompile("(?s)```.*?```|~~~.*?~~~")
	linkRegex       = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	urlRegex        = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	htmlTagRegex    = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	headingRegex    = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]*`)
	markupRegex     = regexp.MustCompile("[#*`\\[\\]]+")
	underscoreRegex = regexp.MustCompile(`(^|[^\p{L}\p{N}_])_{1,2}([^_\s](?:[^_\n]*?[^_\s])?)_{1,2}([^\p{L}\p{N}_]|$)`)
	dashRegex       = regexp.MustCompile(`\s*(?:—|--)\s*`)
	newlineRegex    = regexp.MustCompile(`\r?\n[\s]*`)
)

// closers may follow a sentence terminator without ending the sentence.
const closers = `"')]}»”’`

// Truncate caps text at maxChars runes. A word cut in half by the cap is
// dropped.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}

	cut := runes[:maxChars]
	if !unicode.IsSpace(runes[maxChars]) && !unicode.IsSpace(cut[len(cut)-1]) {
		for i := len(cut) - 1; i >= 0; i-- {
			if unicode.IsSpace(cut[i]) {
				cut = cut[:i]
				break
			}
		}
	}
	return string(cut)
}

// Normalize strips markup that should not be read aloud and reduces the text
// to single-spaced sentences. Line breaks become sentence breaks.
func Normalize(text string) string {
	text = norm.NFC.String(text)

	text = fencedCodeRegex.ReplaceAllString(text, "\n")
	text = linkRegex.ReplaceAllString(text, "$1")
	text = urlRegex.ReplaceAllString(text, "")
	text = htmlTagRegex.ReplaceAllString(text, "")
	text = headingRegex.ReplaceAllString(text, "")
	text = stripUnderscores(text)
	text = markupRegex.ReplaceAllString(text, "")
	text = dashRegex.ReplaceAllString(text, " — ")

	lines := newlineRegex.Split(text, -1)
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" || isDashOnly(line) {
			continue
		}
		if !endsSentence(line) {
			line += "."
		}
		parts = append(parts, line)
	}

	// A trailing period was only added to break lines apart.
	if len(parts) > 0 && !endsSentence(strings.TrimSpace(text)) {
		last := parts[len(parts)-1]
		parts[len(parts)-1] = strings.TrimSuffix(last, ".")
	}
	return strings.Join(parts, " ")
}

// stripUnderscores removes _emphasis_ and __strong__ markers around words.
// Underscores inside identifiers such as snake_case are kept. Adjacent runs
// share a boundary character, so replacement repeats until nothing changes.
func stripUnderscores(text string) string {
	for {
		next := underscoreRegex.ReplaceAllString(text, "${1}${2}${3}")
		if next == text {
			return text
		}
		text = next
	}
}

// endsSentence reports whether s ends with a terminator, allowing closing
// quotes and brackets after it.
func endsSentence(s string) bool {
	s = strings.TrimRight(s, closers)
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

func isDashOnly(s string) bool {
	return strings.Trim(s, "— ") == ""
}

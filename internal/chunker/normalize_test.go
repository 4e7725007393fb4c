package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapse spaces", "Hello   world.\tAgain .", "Hello world. Again ."},
		{"heading", "## Big News\nIt happened.", "Big News. It happened."},
		{"emphasis", "This is **very** *important*.", "This is very important."},
		{"underscore emphasis", "This is _really_ __bold__ text.", "This is really bold text."},
		{"snake case kept", "Call read_all_files now.", "Call read_all_files now."},
		{"inline code", "Run `make test` now.", "Run make test now."},
		{"fenced code", "Before.\n```go\nfmt.Println()\n```\nAfter.", "Before. After."},
		{"link", "Read [the report](https://example.com/r) today.", "Read the report today."},
		{"bare url", "Visit https://example.com/x?y=1 for more.", "Visit for more."},
		{"html", "A <b>bold</b> move.", "A bold move."},
		{"newline runs", "Line one\n\n\nLine two", "Line one. Line two"},
		{"dash", "Fast—really fast -- today.", "Fast — really fast — today."},
		{"nfc", "Café open.", "Café open."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate kept %q", got)
	}
	if got := Truncate("hello world", 8); got != "hello" {
		t.Errorf("Truncate mid-word = %q, want %q", got, "hello")
	}
	if got := Truncate("hello world", 6); got != "hello " {
		t.Errorf("Truncate at space = %q", got)
	}

	long := strings.Repeat("é", 6000)
	if got := utf8.RuneCountInString(Truncate(long, 5000)); got != 5000 {
		t.Errorf("Truncate without spaces kept %d runes", got)
	}
}

func TestSplitCapsLongInput(t *testing.T) {
	text := strings.Repeat("Words fill the page. ", 500) // about 10500 chars
	chunks := Split(text)

	total := 0
	for _, c := range chunks {
		total += utf8.RuneCountInString(c.Text) + 1
	}
	if total > 5001 {
		t.Errorf("chunks hold %d chars, cap is 5000", total)
	}
}

package chunker

import (
	"strings"
	"testing"
)

func TestSplitFirstChunkIsFirstSentence(t *testing.T) {
	chunks := Split("AI breakthrough today. Researchers announced a new model. It outperforms prior systems.")

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %+v", len(chunks), chunks)
	}
	if chunks[0].Text != "AI breakthrough today." {
		t.Errorf("chunk 0 = %q", chunks[0].Text)
	}
	if chunks[1].Text != "Researchers announced a new model. It outperforms prior systems." {
		t.Errorf("chunk 1 = %q", chunks[1].Text)
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has Index %d", i, c.Index)
		}
	}
}

func TestSplitEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t\n", "```\ncode only\n```"} {
		if got := Split(in); len(got) != 0 {
			t.Errorf("Split(%q) = %+v, want no chunks", in, got)
		}
	}
}

func TestSplitCoverage(t *testing.T) {
	inputs := []string{
		"One. Two! Three? Four.",
		"A single sentence without a terminator",
		strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40),
		"This sentence rambles on, and on; it keeps going: past every limit — and then some more words, " +
			strings.Repeat("word ", 120) + "end.",
		"Headline\n\nFirst paragraph here.\nSecond line of it",
	}

	c := New(DefaultOptions())
	for _, in := range inputs {
		chunks := c.Split(in)
		if len(chunks) == 0 {
			t.Fatalf("Split(%.30q) returned nothing", in)
		}

		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			if strings.TrimSpace(ch.Text) != ch.Text || ch.Text == "" {
				t.Errorf("chunk %d is not trimmed: %q", i, ch.Text)
			}
			texts[i] = ch.Text
		}

		want := Normalize(Truncate(in, c.Options().MaxChars))
		if got := strings.Join(texts, " "); got != want {
			t.Errorf("chunks do not cover the input\n got: %q\nwant: %q", got, want)
		}
	}
}

func TestSplitWordBounds(t *testing.T) {
	opts := DefaultOptions()
	text := strings.Repeat("Short sentence here. ", 10) +
		"An enormous sentence " + strings.Repeat("that keeps adding words, ", 30) + "finally ends. " +
		strings.Repeat("word ", 200) + "done."

	chunks := New(opts).Split(text)
	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	if chunks[0].Words > opts.FirstMaxWords {
		t.Errorf("first chunk has %d words, max %d", chunks[0].Words, opts.FirstMaxWords)
	}
	for _, c := range chunks[1:] {
		if c.Words > opts.MaxWords {
			t.Errorf("chunk %d has %d words, max %d: %q", c.Index, c.Words, opts.MaxWords, c.Text)
		}
	}
}

func TestSplitOversizedFirstSentence(t *testing.T) {
	opts := Options{MaxChars: 5000, MaxWords: 12, MinWords: 6, FirstMaxWords: 4}
	text := "When the storm hit, the town lost power, and nobody could call for help. Then it cleared."

	chunks := New(opts).Split(text)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if chunks[0].Text != "When the storm hit," {
		t.Errorf("chunk 0 = %q, want the first clause", chunks[0].Text)
	}
	if chunks[0].Words > opts.FirstMaxWords {
		t.Errorf("chunk 0 has %d words", chunks[0].Words)
	}
	// The rest of the first sentence must precede the second sentence.
	var rest []string
	for _, c := range chunks[1:] {
		rest = append(rest, c.Text)
	}
	if got := strings.Join(rest, " "); got != "the town lost power, and nobody could call for help. Then it cleared." {
		t.Errorf("remaining chunks = %q", got)
	}
}

func TestSplitFirstChunkLatencyBound(t *testing.T) {
	text := "Breaking. Markets rallied on Tuesday as investors cheered. Analysts were surprised. More follows."
	chunks := Split(text)

	sentences := Sentences(Normalize(text))
	firstTwo := strings.Join(sentences[:2], " ")
	if !strings.HasPrefix(firstTwo, chunks[0].Text) {
		t.Errorf("chunk 0 %q is not drawn from the first two sentences", chunks[0].Text)
	}
	if len(chunks) == 1 {
		t.Error("a multi-sentence input produced a single chunk")
	}
}

func TestSplitHardCut(t *testing.T) {
	opts := Options{MaxWords: 5, MinWords: 5, FirstMaxWords: 3}
	chunks := New(opts).Split("one two three four five six seven eight nine ten eleven")

	want := []string{"one two three", "four five six seven eight", "nine ten eleven"}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks: %+v", len(chunks), chunks)
	}
	for i, w := range want {
		if chunks[i].Text != w {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i].Text, w)
		}
	}
}

func TestNewFixesOptions(t *testing.T) {
	c := New(Options{MaxWords: 30, MinWords: 50, FirstMaxWords: 100})
	got := c.Options()
	if got.MinWords > got.MaxWords {
		t.Errorf("MinWords %d > MaxWords %d", got.MinWords, got.MaxWords)
	}
	if got.FirstMaxWords != 10 {
		t.Errorf("FirstMaxWords = %d, want a third of MaxWords", got.FirstMaxWords)
	}
	if got.MaxChars != 5000 {
		t.Errorf("MaxChars = %d, want default", got.MaxChars)
	}
}

func TestSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hi. There.", []string{"Hi.", "There."}},
		{`He said "stop." Then left.`, []string{`He said "stop."`, "Then left."}},
		{"Really?! Yes.", []string{"Really?!", "Yes."}},
		{"Version 2.0 shipped. Done", []string{"Version 2.0 shipped.", "Done"}},
	}
	for _, tt := range tests {
		got := Sentences(tt.in)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("Sentences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

package chunker

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one unit of synthesis and playback.
type Chunk struct {
	Index int
	Text  string
	Words int
}

// Options bounds chunk sizes.
type Options struct {
	// MaxChars caps the input; the rest is not spoken.
	MaxChars int `yaml:"max_chars"`

	// MaxWords is the largest chunk after the first.
	MaxWords int `yaml:"max_words"`

	// MinWords closes a chunk once reached.
	MinWords int `yaml:"min_words"`

	// FirstMaxWords is the largest first chunk.
	FirstMaxWords int `yaml:"first_max_words"`
}

// DefaultOptions returns the chunk sizes used by the player.
func DefaultOptions() Options {
	return Options{
		MaxChars:      5000,
		MaxWords:      42,
		MinWords:      20,
		FirstMaxWords: 14,
	}
}

// Chunker splits text with a fixed set of Options.
type Chunker struct {
	opts Options
}

// New returns a Chunker. Zero or inconsistent options fall back to
// DefaultOptions values.
func New(opts Options) *Chunker {
	def := DefaultOptions()
	if opts.MaxChars <= 0 {
		opts.MaxChars = def.MaxChars
	}
	if opts.MaxWords <= 0 {
		opts.MaxWords = def.MaxWords
	}
	if opts.MinWords <= 0 || opts.MinWords > opts.MaxWords {
		opts.MinWords = min(def.MinWords, opts.MaxWords)
	}
	if opts.FirstMaxWords <= 0 || opts.FirstMaxWords > opts.MaxWords {
		opts.FirstMaxWords = max(1, opts.MaxWords/3)
	}
	return &Chunker{opts: opts}
}

// Options returns the effective options.
func (c *Chunker) Options() Options {
	return c.opts
}

// Split splits text using DefaultOptions.
func Split(text string) []Chunk {
	return New(DefaultOptions()).Split(text)
}

// Split returns the chunks of text in speaking order. Empty or
// whitespace-only text yields no chunks.
func (c *Chunker) Split(text string) []Chunk {
	text = Normalize(Truncate(text, c.opts.MaxChars))
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var texts []string

	// The first chunk is a single sentence, or the head of one.
	head := c.fit(sentences[0], c.opts.FirstMaxWords)
	texts = append(texts, head[0])
	rest := sentences[1:]
	if len(head) > 1 {
		rest = append([]string{strings.Join(head[1:], " ")}, rest...)
	}

	var cur []string
	words := 0
	flush := func() {
		if len(cur) > 0 {
			texts = append(texts, strings.Join(cur, " "))
			cur, words = nil, 0
		}
	}
	for _, s := range rest {
		for _, unit := range c.fit(s, c.opts.MaxWords) {
			n := wordCount(unit)
			if words > 0 && words+n > c.opts.MaxWords {
				flush()
			}
			cur = append(cur, unit)
			words += n
			if words >= c.opts.MinWords {
				flush()
			}
		}
	}
	flush()

	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Index: i, Text: t, Words: wordCount(t)}
	}
	return chunks
}

// Sentences splits normalized text after '.', '!' or '?' followed by
// whitespace. Closing quotes and brackets stay with their sentence.
func Sentences(text string) []string {
	var (
		out []string
		cur []string
	)
	for _, tok := range strings.Fields(text) {
		cur = append(cur, tok)
		if endsSentence(tok) {
			out = append(out, strings.Join(cur, " "))
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

// fit breaks a sentence into pieces of at most limit words: first at clause
// punctuation, then at the limit itself.
func (c *Chunker) fit(sentence string, limit int) []string {
	if wordCount(sentence) <= limit {
		return []string{sentence}
	}

	var (
		out   []string
		cur   []string
		words int
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, " "))
			cur, words = nil, 0
		}
	}
	for _, clause := range clauses(sentence) {
		n := wordCount(clause)
		if n > limit {
			flush()
			out = append(out, hardSplit(clause, limit)...)
			continue
		}
		if words+n > limit {
			flush()
		}
		cur = append(cur, clause)
		words += n
	}
	flush()
	return out
}

// clauses splits after ',', ';', ':' and em-dashes.
func clauses(sentence string) []string {
	var (
		out []string
		cur []string
	)
	for _, tok := range strings.Fields(sentence) {
		cur = append(cur, tok)
		if endsClause(tok) {
			out = append(out, strings.Join(cur, " "))
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}

func endsClause(tok string) bool {
	tok = strings.TrimRight(tok, closers)
	r, _ := utf8.DecodeLastRuneInString(tok)
	switch r {
	case ',', ';', ':', '—':
		return true
	}
	return false
}

func hardSplit(text string, limit int) []string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words)/limit+1)
	for len(words) > limit {
		out = append(out, strings.Join(words[:limit], " "))
		words = words[limit:]
	}
	if len(words) > 0 {
		out = append(out, strings.Join(words, " "))
	}
	return out
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

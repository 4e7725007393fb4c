package synth

import (
	"context"
	"os"
	"time"

	"github.com/dgnsrekt/listen/internal/audio"
)

// EdgeOptions configures an EdgeSynthesizer.
type EdgeOptions struct {
	Binary  string
	Voice   string
	Rate    string
	Format  audio.Format
	Timeout time.Duration
	Decoder Decoder
}

// EdgeSynthesizer shells out to edge-tts, which writes MP3 to a file that
// is then decoded with ffmpeg.
type EdgeSynthesizer struct {
	opts EdgeOptions
}

// NewEdgeSynthesizer fills in defaults for unset options.
func NewEdgeSynthesizer(opts EdgeOptions) *EdgeSynthesizer {
	if opts.Binary == "" {
		opts.Binary = "edge-tts"
	}
	if opts.Voice == "" {
		opts.Voice = "en-US-AvaNeural"
	}
	if opts.Format == (audio.Format{}) {
		opts.Format = audio.DefaultFormat()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	opts.Decoder.Format = opts.Format
	return &EdgeSynthesizer{opts: opts}
}

// Name implements Synthesizer.
func (s *EdgeSynthesizer) Name() string { return "edge" }

// Format implements Synthesizer.
func (s *EdgeSynthesizer) Format() audio.Format { return s.opts.Format }

// Synthesize implements Synthesizer.
func (s *EdgeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "listen-edge-*.mp3")
	if err != nil {
		return nil, &Error{Backend: "edge", Op: "create temp file", Err: err}
	}
	name := f.Name()
	_ = f.Close()
	defer os.Remove(name) //nolint:errcheck

	args := []string{"--voice", s.opts.Voice, "--text", text, "--write-media", name}
	if s.opts.Rate != "" {
		// edge-tts parses "+12%" as a flag unless it is attached.
		args = append(args, "--rate="+s.opts.Rate)
	}
	if _, err := runCommand(ctx, s.opts.Timeout, nil, s.opts.Binary, args...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Backend: "edge", Op: "synthesize", Err: err}
	}

	mp3, err := os.ReadFile(name)
	if err != nil {
		return nil, &Error{Backend: "edge", Op: "read media", Err: err}
	}
	if len(mp3) == 0 {
		return nil, &Error{Backend: "edge", Op: "synthesize", Err: ErrNoAudio}
	}

	pcm, err := s.opts.Decoder.Decode(ctx, mp3)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Backend: "edge", Op: "decode", Err: err}
	}
	return pcm, nil
}

package synth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dgnsrekt/listen/internal/audio"
)

// PiperOptions configures a PiperSynthesizer.
type PiperOptions struct {
	Binary      string
	Model       string
	SampleRate  int
	SpeakerID   int
	LengthScale float64
	Timeout     time.Duration
}

// PiperSynthesizer runs piper with --output-raw. Its format is fixed by the
// voice model, so the device has to be opened at Format().
type PiperSynthesizer struct {
	opts   PiperOptions
	format audio.Format
}

// NewPiperSynthesizer fills in defaults for unset options.
func NewPiperSynthesizer(opts PiperOptions) *PiperSynthesizer {
	if opts.Binary == "" {
		opts.Binary = "piper"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 22050
	}
	if opts.LengthScale <= 0 {
		opts.LengthScale = 1.0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &PiperSynthesizer{
		opts:   opts,
		format: audio.Format{SampleRate: opts.SampleRate, Channels: 1, BitDepth: 16},
	}
}

// Name implements Synthesizer.
func (s *PiperSynthesizer) Name() string { return "piper" }

// Format implements Synthesizer.
func (s *PiperSynthesizer) Format() audio.Format { return s.format }

// Synthesize implements Synthesizer.
func (s *PiperSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	args := []string{"--model", s.opts.Model, "--output-raw"}
	if s.opts.SpeakerID > 0 {
		args = append(args, "--speaker", strconv.Itoa(s.opts.SpeakerID))
	}
	if s.opts.LengthScale != 1.0 {
		args = append(args, "--length_scale", strconv.FormatFloat(s.opts.LengthScale, 'f', 2, 64))
	}

	// piper reads one utterance per line.
	input := strings.ReplaceAll(strings.TrimSpace(text), "\n", " ") + "\n"
	pcm, err := runCommand(ctx, s.opts.Timeout, []byte(input), s.opts.Binary, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Backend: "piper", Op: "synthesize", Err: err}
	}
	if len(pcm) == 0 {
		return nil, &Error{Backend: "piper", Op: "synthesize", Err: ErrNoAudio}
	}
	// Drop a trailing odd byte so frames stay aligned.
	if n := len(pcm) % s.format.FrameSize(); n != 0 {
		pcm = pcm[:len(pcm)-n]
	}
	return pcm, nil
}

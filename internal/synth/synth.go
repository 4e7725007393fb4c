// Package synth turns text into PCM audio. Backends call a remote
// /stream_audio endpoint, the edge-tts or piper command line tools, or
// generate placeholder tones for offline use.
package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgnsrekt/listen/internal/audio"
)

// MaxTextLength is the longest text a backend accepts, in characters.
const MaxTextLength = 5000

var (
	// ErrEmptyText is returned for blank input.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrTextTooLong is returned for input over MaxTextLength.
	ErrTextTooLong = errors.New("text too long")

	// ErrNoAudio is returned when a backend answered without audio.
	ErrNoAudio = errors.New("backend returned no audio")

	// ErrUnknownEngine is returned by New for an unsupported engine name.
	ErrUnknownEngine = errors.New("unknown synthesis engine")
)

// Synthesizer produces signed 16-bit little-endian PCM in Format.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Format() audio.Format
	Name() string
}

type prefetchKey struct{}

// WithPrefetch marks ctx as synthesis of audio that is not needed yet.
// Rate limited backends hold such requests back so that audio needed now
// is never queued behind them.
func WithPrefetch(ctx context.Context) context.Context {
	return context.WithValue(ctx, prefetchKey{}, true)
}

// IsPrefetch reports whether ctx was marked with WithPrefetch.
func IsPrefetch(ctx context.Context) bool {
	v, _ := ctx.Value(prefetchKey{}).(bool)
	return v
}

// Error describes a failed backend call.
type Error struct {
	Backend string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		return fmt.Errorf("%w: %d characters (max %d)", ErrTextTooLong, n, MaxTextLength)
	}
	return nil
}

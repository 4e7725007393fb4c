package synth

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/listen/internal/audio"
)

// ErrMockFailure is returned when the mock rolls a simulated failure.
var ErrMockFailure = errors.New("simulated synthesis failure")

// MockOptions configures a MockSynthesizer.
type MockOptions struct {
	Delay          time.Duration
	WordsPerMinute int

	// FailureRate is the probability in [0,1] that a call fails.
	FailureRate float64

	Format audio.Format
}

// MockSynthesizer produces a quiet tone whose length follows the word count.
// It needs no network or tools and is used for offline runs and tests.
type MockSynthesizer struct {
	opts MockOptions

	mu      sync.Mutex
	calls   int
	texts   []string
	failure error
}

// NewMockSynthesizer fills in defaults for unset options.
func NewMockSynthesizer(opts MockOptions) *MockSynthesizer {
	if opts.WordsPerMinute <= 0 {
		opts.WordsPerMinute = 180
	}
	if opts.Format == (audio.Format{}) {
		opts.Format = audio.DefaultFormat()
	}
	return &MockSynthesizer{opts: opts}
}

// Name implements Synthesizer.
func (m *MockSynthesizer) Name() string { return "mock" }

// Format implements Synthesizer.
func (m *MockSynthesizer) Format() audio.Format { return m.opts.Format }

// Synthesize implements Synthesizer.
func (m *MockSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls++
	m.texts = append(m.texts, text)
	failure := m.failure
	m.mu.Unlock()

	if m.opts.Delay > 0 {
		t := time.NewTimer(m.opts.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	if failure != nil {
		return nil, &Error{Backend: "mock", Op: "synthesize", Err: failure}
	}
	if m.opts.FailureRate > 0 && rand.Float64() < m.opts.FailureRate {
		return nil, &Error{Backend: "mock", Op: "synthesize", Err: ErrMockFailure}
	}

	return m.tone(m.Duration(text)), nil
}

// Duration is the length of audio Synthesize returns for text.
func (m *MockSynthesizer) Duration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	return time.Duration(words) * time.Minute / time.Duration(m.opts.WordsPerMinute)
}

// tone renders a 220Hz sine at low volume.
func (m *MockSynthesizer) tone(d time.Duration) []byte {
	f := m.opts.Format
	frames := f.ByteOffset(d) / f.FrameSize()
	if frames == 0 {
		frames = 1
	}
	out := make([]byte, frames*f.FrameSize())
	const amplitude = 0.05 * math.MaxInt16
	for i := 0; i < frames; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*220*float64(i)/float64(f.SampleRate)))
		for c := 0; c < f.Channels; c++ {
			off := (i*f.Channels + c) * 2
			binary.LittleEndian.PutUint16(out[off:], uint16(v))
		}
	}
	return out
}

// SetFailure makes every following call fail with err. Pass nil to clear.
func (m *MockSynthesizer) SetFailure(err error) {
	m.mu.Lock()
	m.failure = err
	m.mu.Unlock()
}

// Calls returns the number of Synthesize calls.
func (m *MockSynthesizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Texts returns the text of every call in order.
func (m *MockSynthesizer) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/listen/internal/arbiter"
	"github.com/dgnsrekt/listen/internal/audio"
	"github.com/dgnsrekt/listen/internal/cache"
	"github.com/dgnsrekt/listen/internal/chunker"
	"github.com/google/uuid"
)

var (
	// ErrNoText is returned by Start when the text holds nothing to speak.
	ErrNoText = errors.New("no text to speak")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
)

// IsCancellation reports whether err only records an abandoned operation.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Resolver returns the audio for a chunk of text. *cache.Store implements it.
type Resolver interface {
	Resolve(ctx context.Context, key string) (*cache.Resource, error)
}

// Options configures an Engine.
type Options struct {
	Chunker  *chunker.Chunker
	Resolver Resolver
	Arbiter  *arbiter.Arbiter
	Device   audio.Device

	// PrefetchWindow is how many chunks past the current one are requested
	// ahead of time.
	PrefetchWindow int

	// PrefetchConcurrency bounds background synthesis per session.
	PrefetchConcurrency int

	// ErrorResetDelay is how long a session shows StateError.
	ErrorResetDelay time.Duration

	Logger *log.Logger
}

// Engine builds sessions that share one cache, arbiter and device.
type Engine struct {
	opts Options
	log  *log.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// NewEngine returns an Engine. Resolver and Device are required.
func NewEngine(opts Options) *Engine {
	if opts.Chunker == nil {
		opts.Chunker = chunker.New(chunker.DefaultOptions())
	}
	if opts.Logger == nil {
		opts.Logger = log.Default().WithPrefix("playback")
	}
	if opts.Arbiter == nil {
		opts.Arbiter = arbiter.New(opts.Logger)
	}
	if opts.PrefetchWindow < 0 {
		opts.PrefetchWindow = 0
	}
	if opts.PrefetchConcurrency <= 0 {
		opts.PrefetchConcurrency = 2
	}
	if opts.ErrorResetDelay <= 0 {
		opts.ErrorResetDelay = 3 * time.Second
	}
	return &Engine{
		opts:     opts,
		log:      opts.Logger,
		sessions: make(map[*Session]struct{}),
	}
}

// Arbiter returns the arbiter shared by the engine's sessions.
func (e *Engine) Arbiter() *arbiter.Arbiter {
	return e.opts.Arbiter
}

// Chunker returns the chunker sessions split their text with.
func (e *Engine) Chunker() *chunker.Chunker {
	return e.opts.Chunker
}

// Option configures a Session.
type Option func(*Session)

// WithID sets the session ID. IDs default to a random UUID.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// WithPlaybackStarted registers fn to run once per successful start, before
// the first audio is heard.
func WithPlaybackStarted(fn func()) Option {
	return func(s *Session) {
		s.onStarted = fn
	}
}

// WithStateChange registers fn to receive a snapshot after every change.
// It may be called from any goroutine but never with an older snapshot
// than one it has already seen.
func WithStateChange(fn func(Snapshot)) Option {
	return func(s *Session) {
		s.onChange = fn
	}
}

// NewSession returns an idle session for text.
func (e *Engine) NewSession(text string, opts ...Option) *Session {
	s := &Session{
		engine: e,
		id:     uuid.NewString(),
		text:   text,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = e.log.With("session", s.id)

	e.mu.Lock()
	e.sessions[s] = struct{}{}
	e.mu.Unlock()
	return s
}

// Sessions returns the number of open sessions.
func (e *Engine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// StopAll silences whichever session is playing.
func (e *Engine) StopAll() {
	e.opts.Arbiter.StopAll()
}

// Close closes every session. The device and resolver stay with the caller.
func (e *Engine) Close() {
	e.mu.Lock()
	sessions := make([]*Session, 0, len(e.sessions))
	for s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (e *Engine) forget(s *Session) {
	e.mu.Lock()
	delete(e.sessions, s)
	e.mu.Unlock()
}

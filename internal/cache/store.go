package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/listen/internal/audio"
	"github.com/google/uuid"
)

// Options configures a Store.
type Options struct {
	// MemoryCapacity bounds L1 in bytes; zero or less is unbounded.
	MemoryCapacity int64

	// Format is the PCM layout the synthesizer returns.
	Format audio.Format

	// Namespace separates L2 entries made with different voices or formats.
	Namespace string

	// Backing is the optional L2 tier.
	Backing Backing

	// PersistTimeout bounds a single L2 write.
	PersistTimeout time.Duration

	// MaxAge drops L1 entries that have not been used for this long. Zero
	// keeps them until evicted.
	MaxAge time.Duration

	Logger *log.Logger
}

// Store is the synthesis cache. It is safe for concurrent use.
type Store struct {
	synth   Synthesizer
	format  audio.Format
	ns      string
	backing Backing
	persist time.Duration
	log     *log.Logger

	mem *MemoryCache

	mu        sync.Mutex
	flights   map[string]*flight
	backHits  int64
	syntheses int64
	joined    int64

	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
}

// flight is one synthesis shared by every caller waiting for the same key.
type flight struct {
	done    chan struct{}
	res     *Resource
	err     error
	waiters int
	cancel  context.CancelFunc
}

// New returns a Store that fills misses from synth.
func New(synth Synthesizer, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = log.Default().WithPrefix("cache")
	}
	if opts.Format == (audio.Format{}) {
		opts.Format = audio.DefaultFormat()
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 10 * time.Second
	}
	s := &Store{
		synth:   synth,
		format:  opts.Format,
		ns:      opts.Namespace,
		backing: opts.Backing,
		persist: opts.PersistTimeout,
		log:     opts.Logger,
		mem:     NewMemoryCache(opts.MemoryCapacity),
		flights: make(map[string]*flight),
		quit:    make(chan struct{}),
	}
	if opts.MaxAge > 0 {
		s.wg.Add(1)
		go s.cleanup(opts.MaxAge)
	}
	return s
}

// cleanup prunes idle L1 entries until the store is closed.
func (s *Store) cleanup(maxAge time.Duration) {
	defer s.wg.Done()

	interval := min(maxAge/2, time.Minute)
	if interval <= 0 {
		interval = maxAge
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.mem.Prune(maxAge); n > 0 {
				s.log.Debug("pruned idle audio", "clips", n)
			}
		case <-s.quit:
			return
		}
	}
}

// Get returns the cached resource for key without synthesizing.
func (s *Store) Get(key string) (*Resource, bool) {
	return s.mem.Get(key)
}

// Set stores pcm under key and returns the handle. If key is already cached
// the existing handle is returned and pcm is discarded.
func (s *Store) Set(key string, pcm []byte) *Resource {
	res := &Resource{
		ID:      "blob:listen/" + uuid.NewString(),
		Key:     key,
		Clip:    audio.Clip{Data: pcm, Format: s.format},
		Created: time.Now(),
	}
	got, err := s.mem.Add(res)
	if err != nil {
		s.log.Warn("audio not cached", "key", preview(key), "bytes", res.Size(), "err", err)
	}
	return got
}

// Resolve returns the resource for key, synthesizing it on a miss.
// Concurrent callers for one key share a single synthesis. When every caller
// has given up the synthesis is cancelled. A cancelled ctx yields ctx.Err().
func (s *Store) Resolve(ctx context.Context, key string) (*Resource, error) {
	if res, ok := s.mem.Get(key); ok {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if res, ok := s.mem.peek(key); ok {
		s.mu.Unlock()
		return res, nil
	}
	f, ok := s.flights[key]
	if ok {
		s.joined++
	} else {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{done: make(chan struct{}), cancel: cancel}
		s.flights[key] = f
		s.wg.Add(1)
		go s.run(fctx, key, f)
	}
	f.waiters++
	s.mu.Unlock()

	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		s.leave(key, f)
		return nil, ctx.Err()
	}
}

// leave drops one waiter and cancels the flight when none remain.
func (s *Store) leave(key string, f *flight) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}
	if s.flights[key] == f {
		delete(s.flights, key)
	}
	f.cancel()
}

func (s *Store) run(ctx context.Context, key string, f *flight) {
	defer s.wg.Done()
	defer f.cancel()

	data, fromBacking, err := s.fetch(ctx, key)

	s.mu.Lock()
	if err == nil {
		f.res = s.Set(key, data)
	}
	f.err = err
	if s.flights[key] == f {
		delete(s.flights, key)
	}
	s.mu.Unlock()
	close(f.done)

	if err == nil && !fromBacking && s.backing != nil {
		pctx, cancel := context.WithTimeout(context.Background(), s.persist)
		defer cancel()
		if err := s.backing.Store(pctx, s.backingKey(key), data); err != nil {
			s.log.Warn("persisting audio failed", "key", preview(key), "err", err)
		}
	}
}

func (s *Store) fetch(ctx context.Context, key string) ([]byte, bool, error) {
	if s.backing != nil {
		data, err := s.backing.Load(ctx, s.backingKey(key))
		switch {
		case err == nil && len(data) > 0:
			s.mu.Lock()
			s.backHits++
			s.mu.Unlock()
			return data, true, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			s.log.Warn("cache backing read failed", "key", preview(key), "err", err)
		}
	}

	s.mu.Lock()
	s.syntheses++
	s.mu.Unlock()

	start := time.Now()
	data, err := s.synth.Synthesize(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, fmt.Errorf("synthesize %q: %w", preview(key), err)
	}
	if len(data) == 0 {
		return nil, false, fmt.Errorf("synthesize %q: %w", preview(key), ErrEmptyAudio)
	}
	s.log.Debug("synthesized", "key", preview(key), "bytes", len(data), "took", time.Since(start))
	return data, false, nil
}

func (s *Store) backingKey(key string) string {
	return s.ns + "\x00" + key
}

// Purge empties the memory tier and returns how many clips it dropped. The
// L2 tier is left alone.
func (s *Store) Purge() int {
	return s.mem.Clear()
}

// Stats returns the cache counters.
func (s *Store) Stats() Stats {
	st := s.mem.Stats()

	s.mu.Lock()
	defer s.mu.Unlock()
	st.BackingHits = s.backHits
	st.Syntheses = s.syntheses
	st.Joined = s.joined
	st.InFlight = int64(len(s.flights))
	return st
}

// Close waits for pending L2 writes and closes the backing.
func (s *Store) Close() error {
	s.once.Do(func() { close(s.quit) })

	s.mu.Lock()
	for _, f := range s.flights {
		f.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	if s.backing != nil {
		return s.backing.Close()
	}
	return nil
}

func preview(s string) string {
	const n = 32
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

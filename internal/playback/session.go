package playback

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/listen/internal/audio"
	"github.com/dgnsrekt/listen/internal/cache"
	"github.com/dgnsrekt/listen/internal/chunker"
	"github.com/dgnsrekt/listen/internal/synth"
	"golang.org/x/sync/errgroup"
)

// Session plays one text. It is safe for concurrent use.
//
// Continuations (a finished synthesis, a drained stream) carry the seq they
// were started under and are dropped once seq has moved on. run counts
// starts; it scopes arbiter claims and prefetch results.
type Session struct {
	engine    *Engine
	id        string
	log       *log.Logger
	onStarted func()
	onChange  func(Snapshot)

	mu       sync.Mutex
	text     string
	state    State
	chunks   []chunker.Chunk
	resolved []*cache.Resource
	index    int
	offset   time.Duration
	stream   audio.Stream
	ctx      context.Context
	cancel   context.CancelFunc
	prefetch *errgroup.Group
	ahead    int
	run      uint64
	seq      uint64
	version  uint64
	errTimer *time.Timer
	closed   bool

	notifyMu  sync.Mutex
	delivered uint64

	wg sync.WaitGroup
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current state and position.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Text returns the text the session speaks.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// SetText replaces the text. A session that is loading, playing or paused
// is stopped first.
func (s *Session) SetText(text string) {
	s.mu.Lock()
	if s.text == text {
		s.mu.Unlock()
		return
	}
	s.text = text
	active := s.state.Active()
	s.mu.Unlock()

	if active {
		s.Stop()
	}
}

// Toggle is the single user action: it pauses a playing session, resumes a
// paused one, stops a loading one and starts an idle or failed one. It
// returns the state the session ended up in.
func (s *Session) Toggle() State {
	switch s.State() {
	case StatePlaying:
		s.Pause()
	case StatePaused:
		s.Resume()
	case StateLoading:
		s.Stop()
	default:
		if err := s.Start(); err != nil {
			s.log.Debug("start ignored", "err", err)
		}
	}
	return s.State()
}

// Start splits the text, synthesizes the first chunk and plays it. It
// returns once the session is playing, has failed or was stopped. Failures
// are reported through the state, not the returned error.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != StateIdle && s.state != StateError {
		s.mu.Unlock()
		return nil
	}
	chunks := s.engine.opts.Chunker.Split(s.text)
	if len(chunks) == 0 {
		s.mu.Unlock()
		return ErrNoText
	}
	if s.errTimer != nil {
		s.errTimer.Stop()
		s.errTimer = nil
	}

	s.run++
	s.seq++
	seq := s.seq
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.prefetch = new(errgroup.Group)
	s.prefetch.SetLimit(s.engine.opts.PrefetchConcurrency)
	s.chunks = chunks
	s.resolved = make([]*cache.Resource, len(chunks))
	s.index, s.offset, s.ahead = 0, 0, 1
	s.setStateLocked(StateLoading)
	s.extendPrefetchLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Info("starting playback", "chunks", len(chunks))
	s.notify(snap)
	s.play(seq)
	return nil
}

// Pause stops output and remembers the position within the current chunk.
// The session gives up the audio device but keeps its chunks.
func (s *Session) Pause() bool {
	s.mu.Lock()
	if s.state != StatePlaying {
		s.mu.Unlock()
		return false
	}
	stream := s.stream
	if stream != nil {
		s.offset = stream.Position()
		s.stream = nil
	}
	s.seq++
	claim := s.claimLocked()
	s.setStateLocked(StatePaused)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	s.engine.opts.Arbiter.Release(claim)
	s.log.Debug("paused", "chunk", snap.Index, "offset", snap.Offset)
	s.notify(snap)
	return true
}

// Resume takes the audio device back, stopping whoever holds it, and
// continues the current chunk where Pause left it.
func (s *Session) Resume() bool {
	s.mu.Lock()
	if s.state != StatePaused {
		s.mu.Unlock()
		return false
	}
	run, seq := s.run, s.seq
	claim := s.claimLocked()
	s.mu.Unlock()

	s.engine.opts.Arbiter.Acquire(claim, s.preempter(run))

	s.mu.Lock()
	if s.state != StatePaused || s.seq != seq {
		s.mu.Unlock()
		s.engine.opts.Arbiter.Release(claim)
		return false
	}
	s.seq++
	seq = s.seq
	s.setStateLocked(StatePlaying)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Debug("resuming", "chunk", snap.Index, "offset", snap.Offset)
	s.notify(snap)
	s.play(seq)
	return true
}

// Stop cancels synthesis, silences output, releases the audio device and
// forgets the chunks. It is a no-op on an idle session.
func (s *Session) Stop() {
	s.mu.Lock()
	stop := s.resetLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if stop != nil {
		stop()
		s.log.Debug("stopped")
		s.notify(snap)
	}
}

// Close stops the session for good and waits for background synthesis to
// wind down. No notifications are sent after Close.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stop := s.resetLocked()
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.wg.Wait()
	s.engine.forget(s)
}

// play makes the current chunk audible, synthesizing it first if the
// prefetch has not. The first chunk of a run also claims the arbiter and
// fires the playback started callback.
func (s *Session) play(seq uint64) {
	s.mu.Lock()
	if s.seq != seq {
		s.mu.Unlock()
		return
	}
	ctx, run, index, offset := s.ctx, s.run, s.index, s.offset
	res := s.resolved[index]
	key := s.chunks[index].Text
	first := s.state == StateLoading
	claim := s.claimLocked()
	s.mu.Unlock()

	if res == nil {
		r, err := s.engine.opts.Resolver.Resolve(ctx, key)
		if err != nil {
			if ctx.Err() != nil || IsCancellation(err) {
				return
			}
			s.fail(seq, index, err)
			return
		}
		res = r

		s.mu.Lock()
		if s.seq != seq {
			s.mu.Unlock()
			return
		}
		s.resolved[index] = res
		s.mu.Unlock()
	}

	if first {
		s.engine.opts.Arbiter.Acquire(claim, s.preempter(run))
		if !s.current(seq) {
			s.engine.opts.Arbiter.Release(claim)
			return
		}
		if s.onStarted != nil {
			s.onStarted()
		}
	}

	s.mu.Lock()
	if s.seq != seq {
		s.mu.Unlock()
		if first {
			s.engine.opts.Arbiter.Release(claim)
		}
		return
	}
	stream, err := s.engine.opts.Device.Play(res.Clip, offset)
	if err != nil {
		s.mu.Unlock()
		s.fail(seq, index, err)
		return
	}
	s.stream = stream
	if first {
		s.setStateLocked(StatePlaying)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Debug("playing chunk", "chunk", index, "offset", offset, "length", res.Duration())
	s.notify(snap)
	go s.watch(seq, stream)
}

// watch waits for stream to end and moves on to the next chunk.
func (s *Session) watch(seq uint64, stream audio.Stream) {
	<-stream.Done()

	s.mu.Lock()
	if s.seq != seq || s.stream != stream {
		s.mu.Unlock()
		return
	}
	s.stream = nil

	if !stream.Completed() {
		// The device dropped the stream without being asked to.
		index := s.index
		stop := s.resetLocked()
		snap := s.snapshotLocked()
		s.mu.Unlock()

		if stop != nil {
			stop()
		}
		s.log.Warn("audio stream ended early", "chunk", index)
		s.notify(snap)
		return
	}

	s.offset = 0
	s.index++
	if s.index >= len(s.chunks) {
		total := len(s.chunks)
		stop := s.resetLocked()
		snap := s.snapshotLocked()
		s.mu.Unlock()

		if stop != nil {
			stop()
		}
		s.log.Info("playback finished", "chunks", total)
		s.notify(snap)
		return
	}
	s.extendPrefetchLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	s.play(seq)
}

// fail moves the session to StateError if seq is still current. The
// session goes back to StateIdle after the configured delay.
func (s *Session) fail(seq uint64, index int, err error) {
	s.mu.Lock()
	if s.seq != seq {
		s.mu.Unlock()
		return
	}
	stop := s.teardownLocked()
	s.setStateLocked(StateError)
	run := s.run
	s.errTimer = time.AfterFunc(s.engine.opts.ErrorResetDelay, func() {
		s.recover(run)
	})
	snap := s.snapshotLocked()
	s.mu.Unlock()

	stop()
	s.log.Error("playback failed", "chunk", index, "err", err)
	s.notify(snap)
}

// recover returns a failed session to idle.
func (s *Session) recover(run uint64) {
	s.mu.Lock()
	if s.state != StateError || s.run != run {
		s.mu.Unlock()
		return
	}
	s.errTimer = nil
	s.setStateLocked(StateIdle)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// preempter returns the callback the arbiter runs when another session
// takes the device from run.
func (s *Session) preempter(run uint64) func() {
	return func() {
		s.mu.Lock()
		if s.run != run || !s.state.Active() {
			s.mu.Unlock()
			return
		}
		stop := s.resetLocked()
		snap := s.snapshotLocked()
		s.mu.Unlock()

		if stop != nil {
			stop()
		}
		s.log.Debug("pre-empted")
		s.notify(snap)
	}
}

// resetLocked returns the session to idle. The returned func silences
// output and releases the arbiter; it is nil when nothing changed.
func (s *Session) resetLocked() func() {
	switch s.state {
	case StateIdle:
		return nil
	case StateError:
		if s.errTimer != nil {
			s.errTimer.Stop()
			s.errTimer = nil
		}
		s.setStateLocked(StateIdle)
		return func() {}
	}
	stop := s.teardownLocked()
	s.setStateLocked(StateIdle)
	return stop
}

// teardownLocked cancels in-flight work and clears the run. The returned
// func must be called without s.mu held.
func (s *Session) teardownLocked() func() {
	s.seq++
	if s.cancel != nil {
		s.cancel()
	}
	stream := s.stream
	claim := s.claimLocked()

	s.stream = nil
	s.chunks = nil
	s.resolved = nil
	s.index, s.offset, s.ahead = 0, 0, 0

	return func() {
		if stream != nil {
			stream.Stop()
		}
		s.engine.opts.Arbiter.Release(claim)
	}
}

// extendPrefetchLocked requests the chunks up to the prefetch window past
// the current one.
func (s *Session) extendPrefetchLocked() {
	want := min(s.index+1+s.engine.opts.PrefetchWindow, len(s.chunks))
	if want <= s.ahead {
		return
	}
	from := s.ahead
	s.ahead = want

	ctx, run, group := s.ctx, s.run, s.prefetch
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for i := from; i < want; i++ {
			if ctx.Err() != nil {
				return
			}
			s.wg.Add(1)
			group.Go(func() error {
				defer s.wg.Done()
				s.fetchAhead(ctx, run, i)
				return nil
			})
		}
	}()
}

// fetchAhead resolves a chunk that is not needed yet. Failures are left
// for play to retry when the chunk becomes current.
func (s *Session) fetchAhead(ctx context.Context, run uint64, index int) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	if s.run != run || index >= len(s.resolved) || s.resolved[index] != nil {
		s.mu.Unlock()
		return
	}
	key := s.chunks[index].Text
	s.mu.Unlock()

	res, err := s.engine.opts.Resolver.Resolve(synth.WithPrefetch(ctx), key)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Debug("prefetch failed", "chunk", index, "err", err)
		}
		return
	}

	s.mu.Lock()
	if s.run == run && index < len(s.resolved) && s.resolved[index] == nil {
		s.resolved[index] = res
	}
	s.mu.Unlock()
}

func (s *Session) current(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq == seq
}

// claimLocked names this run to the arbiter, so a late release from an
// earlier run cannot free a later one's claim.
func (s *Session) claimLocked() string {
	return s.id + "#" + strconv.FormatUint(s.run, 10)
}

func (s *Session) setStateLocked(to State) {
	if s.state == to {
		return
	}
	if !CanTransition(s.state, to) {
		s.log.Warn("unexpected state change", "from", s.state, "to", to)
	}
	s.state = to
}

func (s *Session) snapshotLocked() Snapshot {
	s.version++
	offset := s.offset
	if s.stream != nil {
		offset = s.stream.Position()
	}
	var chunk string
	if s.index < len(s.chunks) {
		chunk = s.chunks[s.index].Text
	}
	return Snapshot{
		ID:      s.id,
		State:   s.state,
		Index:   s.index,
		Total:   len(s.chunks),
		Offset:  offset,
		Chunk:   chunk,
		version: s.version,
	}
}

// notify delivers snap unless a newer snapshot already went out.
func (s *Session) notify(snap Snapshot) {
	if s.onChange == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if snap.version <= s.delivered {
		return
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.delivered = snap.version
	s.onChange(snap)
}

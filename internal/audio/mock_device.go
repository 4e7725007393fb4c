package audio

import (
	"sync"
	"time"
)

// MockDevice implements Device without producing sound. Streams either wait
// for the caller to finish them or, when simulated, end after the clip's
// playing time.
type MockDevice struct {
	format    Format
	simulated bool

	mu      sync.Mutex
	streams []*MockStream
	err     error
	closed  bool

	started chan *MockStream
}

// NewMockDevice returns a device whose streams only end on Stop or Finish.
func NewMockDevice(format Format) *MockDevice {
	return &MockDevice{
		format:  format,
		started: make(chan *MockStream, 256),
	}
}

// NewSimulatedDevice returns a device whose streams play out in real time.
func NewSimulatedDevice(format Format) *MockDevice {
	d := NewMockDevice(format)
	d.simulated = true
	return d
}

// Format implements Device.
func (d *MockDevice) Format() Format {
	return d.format
}

// FailWith makes subsequent Play calls return err. A nil err clears it.
func (d *MockDevice) FailWith(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

// Play implements Device.
func (d *MockDevice) Play(clip Clip, offset time.Duration) (Stream, error) {
	d.mu.Lock()
	if d.err != nil {
		err := d.err
		d.mu.Unlock()
		return nil, err
	}
	if len(clip.From(offset)) == 0 {
		d.mu.Unlock()
		return nil, ErrEmptyClip
	}

	s := &MockStream{
		Clip:   clip,
		Offset: offset,
		pos:    offset,
		start:  time.Now(),
		done:   make(chan struct{}),
	}
	d.streams = append(d.streams, s)
	d.mu.Unlock()

	if d.simulated {
		s.mu.Lock()
		s.timer = time.AfterFunc(clip.Duration()-offset, s.Finish)
		s.mu.Unlock()
	}

	select {
	case d.started <- s:
	default:
	}
	return s, nil
}

// Close implements Device.
func (d *MockDevice) Close() error {
	d.mu.Lock()
	streams := d.streams
	d.closed = true
	d.mu.Unlock()

	for _, s := range streams {
		s.Stop()
	}
	return nil
}

// Streams returns every stream opened so far, oldest first.
func (d *MockDevice) Streams() []*MockStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*MockStream(nil), d.streams...)
}

// Playing returns the streams that have not ended.
func (d *MockDevice) Playing() []*MockStream {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []*MockStream
	for _, s := range d.streams {
		select {
		case <-s.done:
		default:
			out = append(out, s)
		}
	}
	return out
}

// Next waits for the next stream to be opened.
func (d *MockDevice) Next(timeout time.Duration) (*MockStream, bool) {
	select {
	case s := <-d.started:
		return s, true
	case <-time.After(timeout):
		return nil, false
	}
}

// MockStream is a stream opened on a MockDevice.
type MockStream struct {
	Clip   Clip
	Offset time.Duration

	mu        sync.Mutex
	pos       time.Duration
	start     time.Time
	timer     *time.Timer
	once      sync.Once
	done      chan struct{}
	completed bool
	stopped   bool
}

// Position implements Stream. Simulated streams advance with the wall clock.
func (s *MockStream) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil && !s.completed && !s.stopped {
		pos := s.Offset + time.Since(s.start)
		if d := s.Clip.Duration(); pos > d {
			pos = d
		}
		return pos
	}
	return s.pos
}

// SetPosition moves the playhead, as if the stream had been heard up to d.
func (s *MockStream) SetPosition(d time.Duration) {
	s.mu.Lock()
	s.pos = d
	s.mu.Unlock()
}

// Stop implements Stream.
func (s *MockStream) Stop() {
	s.end(false)
}

// Finish ends the stream as if the clip played to the end.
func (s *MockStream) Finish() {
	s.end(true)
}

func (s *MockStream) end(completed bool) {
	s.once.Do(func() {
		s.mu.Lock()
		if s.timer != nil {
			s.timer.Stop()
		}
		if completed {
			s.pos = s.Clip.Duration()
		} else if s.timer != nil {
			pos := s.Offset + time.Since(s.start)
			if d := s.Clip.Duration(); pos > d {
				pos = d
			}
			s.pos = pos
		}
		s.completed = completed
		s.stopped = !completed
		s.mu.Unlock()
		close(s.done)
	})
}

// Done implements Stream.
func (s *MockStream) Done() <-chan struct{} {
	return s.done
}

// Completed implements Stream.
func (s *MockStream) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Stopped reports whether the stream was silenced before its end.
func (s *MockStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

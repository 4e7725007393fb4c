//go:build cgo

package audio

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process, so every OtoDevice shares it.
var (
	otoOnce   sync.Once
	otoCtx    *oto.Context
	otoFormat Format
	otoErr    error
)

const pollInterval = 20 * time.Millisecond

// OtoDevice plays clips through the system sound card.
type OtoDevice struct {
	format Format
	volume float64

	mu      sync.Mutex
	streams map[*otoStream]struct{}
}

// NewOtoDevice opens the sound card with the given format. The first call
// fixes the format for the lifetime of the process.
func NewOtoDevice(format Format, volume float64) (*OtoDevice, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if volume <= 0 || volume > 1 {
		volume = 1
	}

	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   100 * time.Millisecond,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("%w: %w", ErrNoAudioDevice, err)
			return
		}
		<-ready
		otoCtx = ctx
		otoFormat = format
		log.Debug("audio device ready", "format", format)
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoFormat != format {
		return nil, fmt.Errorf("%w: device already opened as %s", ErrInvalidFormat, otoFormat)
	}

	return &OtoDevice{
		format:  format,
		volume:  volume,
		streams: make(map[*otoStream]struct{}),
	}, nil
}

// Format implements Device.
func (d *OtoDevice) Format() Format {
	return d.format
}

// Play implements Device.
func (d *OtoDevice) Play(clip Clip, offset time.Duration) (Stream, error) {
	if clip.Format != d.format {
		return nil, fmt.Errorf("%w: clip is %s, device is %s", ErrInvalidFormat, clip.Format, d.format)
	}
	data := clip.From(offset)
	if len(data) == 0 {
		return nil, ErrEmptyClip
	}

	src := &countingReader{r: bytes.NewReader(data)}
	s := &otoStream{
		player: otoCtx.NewPlayer(src),
		src:    src,
		format: d.format,
		offset: offset,
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	s.player.SetVolume(d.volume)

	d.mu.Lock()
	d.streams[s] = struct{}{}
	d.mu.Unlock()

	s.player.Play()
	go func() {
		s.watch()
		d.mu.Lock()
		delete(d.streams, s)
		d.mu.Unlock()
	}()

	return s, nil
}

// Close implements Device. The shared oto context stays alive; oto cannot
// reopen one.
func (d *OtoDevice) Close() error {
	d.mu.Lock()
	streams := make([]*otoStream, 0, len(d.streams))
	for s := range d.streams {
		streams = append(streams, s)
	}
	d.mu.Unlock()

	for _, s := range streams {
		s.Stop()
	}
	return nil
}

type otoStream struct {
	player *oto.Player
	src    *countingReader
	format Format
	offset time.Duration

	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	completed atomic.Bool
}

func (s *otoStream) Position() time.Duration {
	heard := s.src.n.Load() - int64(s.player.BufferedSize())
	if heard < 0 {
		heard = 0
	}
	return s.offset + s.format.Duration(int(heard))
}

// Stop silences the player before returning; the watcher closes it.
func (s *otoStream) Stop() {
	s.stopOnce.Do(func() {
		s.player.Pause()
		close(s.stop)
	})
}

func (s *otoStream) Done() <-chan struct{} {
	return s.done
}

func (s *otoStream) Completed() bool {
	return s.completed.Load()
}

// watch polls the player until it drains or is stopped.
func (s *otoStream) watch() {
	defer close(s.done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			if err := s.player.Close(); err != nil {
				log.Debug("closing audio player", "err", err)
			}
			return
		case <-ticker.C:
			if s.player.IsPlaying() {
				continue
			}
			if err := s.player.Err(); err != nil {
				log.Error("audio playback failed", "err", err)
			} else if s.src.eof.Load() {
				s.completed.Store(true)
			}
			_ = s.player.Close()
			return
		}
	}
}

// countingReader tracks how much of the clip oto has pulled.
type countingReader struct {
	r   io.Reader
	n   atomic.Int64
	eof atomic.Bool
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	if err == io.EOF {
		c.eof.Store(true)
	}
	return n, err
}

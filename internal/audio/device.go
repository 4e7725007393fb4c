package audio

import (
	"errors"
	"time"
)

// ErrNoAudioDevice is returned when the build or the host has no sound output.
var ErrNoAudioDevice = errors.New("no audio output device available")

// ErrEmptyClip is returned when asked to play a clip without samples.
var ErrEmptyClip = errors.New("audio clip is empty")

// Device opens clips for playback. Implementations are safe for concurrent
// use.
type Device interface {
	// Format is the PCM layout the device was opened with.
	Format() Format

	// Play starts the clip at offset and returns immediately.
	Play(clip Clip, offset time.Duration) (Stream, error)

	// Close releases the device. Open streams are stopped.
	Close() error
}

// Stream is one clip being played.
type Stream interface {
	// Position is the offset within the clip that has been heard so far.
	Position() time.Duration

	// Stop silences the stream. It is idempotent and never blocks on the
	// device.
	Stop()

	// Done is closed once the stream stopped or played to the end.
	Done() <-chan struct{}

	// Completed reports whether the clip was played to its end. It is only
	// meaningful after Done is closed.
	Completed() bool
}

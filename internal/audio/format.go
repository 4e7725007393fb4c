package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidFormat is returned when a PCM format cannot be played.
var ErrInvalidFormat = errors.New("invalid audio format")

// Format describes signed little-endian PCM.
type Format struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
	BitDepth   int `yaml:"bit_depth"`
}

// DefaultFormat is CD-rate mono 16-bit audio, what the synthesizers decode to.
func DefaultFormat() Format {
	return Format{
		SampleRate: 44100,
		Channels:   1,
		BitDepth:   16,
	}
}

// Validate reports whether the format can be fed to an output device.
func (f Format) Validate() error {
	if f.SampleRate < 8000 || f.SampleRate > 192000 {
		return fmt.Errorf("%w: sample rate %d Hz", ErrInvalidFormat, f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("%w: %d channels", ErrInvalidFormat, f.Channels)
	}
	if f.BitDepth != 16 {
		return fmt.Errorf("%w: %d-bit samples", ErrInvalidFormat, f.BitDepth)
	}
	return nil
}

// FrameSize is the number of bytes holding one sample for every channel.
func (f Format) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

// BytesPerSecond returns the data rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// Duration converts a byte count to playback time.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 || n <= 0 {
		return 0
	}
	frames := int64(n / f.FrameSize())
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// ByteOffset converts a playback time to a frame-aligned byte offset.
func (f Format) ByteOffset(d time.Duration) int {
	if d <= 0 || f.SampleRate == 0 {
		return 0
	}
	frames := int64(d) * int64(f.SampleRate) / int64(time.Second)
	return int(frames) * f.FrameSize()
}

// String implements fmt.Stringer.
func (f Format) String() string {
	ch := "mono"
	if f.Channels == 2 {
		ch = "stereo"
	}
	return fmt.Sprintf("%d Hz %s s%dle", f.SampleRate, ch, f.BitDepth)
}

// Clip is a block of PCM audio with its format.
type Clip struct {
	Data   []byte
	Format Format
}

// Duration returns the playing time of the clip.
func (c Clip) Duration() time.Duration {
	return c.Format.Duration(len(c.Data))
}

// From returns the part of the clip starting at offset. An offset past the
// end yields an empty slice.
func (c Clip) From(offset time.Duration) []byte {
	start := c.Format.ByteOffset(offset)
	if start >= len(c.Data) {
		return nil
	}
	return c.Data[start:]
}

package audio

import (
	"errors"
	"testing"
	"time"
)

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{"default", DefaultFormat(), false},
		{"piper", Format{SampleRate: 22050, Channels: 1, BitDepth: 16}, false},
		{"stereo 48k", Format{SampleRate: 48000, Channels: 2, BitDepth: 16}, false},
		{"zero rate", Format{SampleRate: 0, Channels: 1, BitDepth: 16}, true},
		{"surround", Format{SampleRate: 44100, Channels: 6, BitDepth: 16}, true},
		{"24 bit", Format{SampleRate: 44100, Channels: 1, BitDepth: 24}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFormat) {
				t.Errorf("error %v does not wrap ErrInvalidFormat", err)
			}
		})
	}
}

func TestFormatConversions(t *testing.T) {
	f := DefaultFormat()

	if got := f.BytesPerSecond(); got != 88200 {
		t.Fatalf("BytesPerSecond() = %d, want 88200", got)
	}
	if got := f.Duration(88200); got != time.Second {
		t.Errorf("Duration(88200) = %v, want 1s", got)
	}
	if got := f.ByteOffset(500 * time.Millisecond); got != 44100 {
		t.Errorf("ByteOffset(500ms) = %d, want 44100", got)
	}
	if got := f.ByteOffset(-time.Second); got != 0 {
		t.Errorf("ByteOffset(-1s) = %d, want 0", got)
	}

	stereo := Format{SampleRate: 48000, Channels: 2, BitDepth: 16}
	if off := stereo.ByteOffset(time.Millisecond); off%stereo.FrameSize() != 0 {
		t.Errorf("ByteOffset(1ms) = %d is not frame aligned", off)
	}
}

func TestClipFrom(t *testing.T) {
	clip := Clip{Data: make([]byte, 88200), Format: DefaultFormat()}

	if got := clip.Duration(); got != time.Second {
		t.Fatalf("Duration() = %v, want 1s", got)
	}
	if got := len(clip.From(0)); got != 88200 {
		t.Errorf("From(0) returned %d bytes", got)
	}
	if got := len(clip.From(250 * time.Millisecond)); got != 66150 {
		t.Errorf("From(250ms) returned %d bytes, want 66150", got)
	}
	if got := clip.From(2 * time.Second); got != nil {
		t.Errorf("From past the end returned %d bytes", len(got))
	}
}

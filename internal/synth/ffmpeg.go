package synth

import (
	"context"
	"strconv"
	"time"

	"github.com/dgnsrekt/listen/internal/audio"
)

// Decoder converts compressed audio to PCM with ffmpeg.
type Decoder struct {
	Binary  string
	Format  audio.Format
	Timeout time.Duration
}

// Decode converts data (any container ffmpeg understands) to PCM in the
// decoder's format.
func (d Decoder) Decode(ctx context.Context, data []byte) ([]byte, error) {
	bin := d.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	pcm, err := runCommand(ctx, timeout, data, bin,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(d.Format.SampleRate),
		"-ac", strconv.Itoa(d.Format.Channels),
		"pipe:1",
	)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}
	return pcm, nil
}

package synth

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/listen/internal/audio"
	"github.com/dgnsrekt/listen/internal/config"
)

// New builds the backend named by cfg.Engine. Backends that decode through
// ffmpeg produce format; piper produces whatever its model dictates.
func New(cfg config.SynthConfig, format audio.Format, logger *log.Logger) (Synthesizer, error) {
	if logger == nil {
		logger = log.Default().WithPrefix("synth")
	}
	decoder := Decoder{Binary: cfg.FFmpeg, Format: format, Timeout: cfg.Timeout}

	switch cfg.Engine {
	case "http":
		return NewHTTPSynthesizer(HTTPOptions{
			Endpoint:          cfg.HTTP.Endpoint,
			Rate:              cfg.HTTP.Rate,
			Format:            format,
			Timeout:           cfg.Timeout,
			RequestsPerMinute: cfg.RequestsPerMinute,
			Decoder:           decoder,
			Logger:            logger,
		})
	case "edge":
		return NewEdgeSynthesizer(EdgeOptions{
			Binary:  cfg.Edge.Binary,
			Voice:   cfg.Edge.Voice,
			Rate:    cfg.Edge.Rate,
			Format:  format,
			Timeout: cfg.Timeout,
			Decoder: decoder,
		}), nil
	case "piper":
		return NewPiperSynthesizer(PiperOptions{
			Binary:      cfg.Piper.Binary,
			Model:       cfg.Piper.Model,
			SampleRate:  cfg.Piper.SampleRate,
			SpeakerID:   cfg.Piper.SpeakerID,
			LengthScale: cfg.Piper.LengthScale,
			Timeout:     cfg.Timeout,
		}), nil
	case "mock":
		return NewMockSynthesizer(MockOptions{
			Delay:          cfg.Mock.Delay,
			WordsPerMinute: cfg.Mock.WordsPerMinute,
			FailureRate:    cfg.Mock.FailureRate,
			Format:         format,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
}

// Package config holds the settings for every part of the player: the
// synthesis backend, the audio device, chunk sizes, playback behaviour and
// the cache tiers.
//
// Defaults come from struct tags and LISTEN_* environment variables; a
// listen.yml read through viper overrides them.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/dustin/go-humanize"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config contains all player configuration.
type Config struct {
	Synth    SynthConfig    `yaml:"synth"`
	Audio    AudioConfig    `yaml:"audio"`
	Chunker  ChunkerConfig  `yaml:"chunker"`
	Playback PlaybackConfig `yaml:"playback"`
	Cache    CacheConfig    `yaml:"cache"`
}

// SynthConfig selects and tunes the synthesis backend.
type SynthConfig struct {
	Engine            string        `yaml:"engine" env:"LISTEN_ENGINE" envDefault:"edge"`
	Timeout           time.Duration `yaml:"timeout" env:"LISTEN_SYNTH_TIMEOUT" envDefault:"30s"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"LISTEN_REQUESTS_PER_MINUTE" envDefault:"120"`
	FFmpeg            string        `yaml:"ffmpeg" env:"LISTEN_FFMPEG" envDefault:"ffmpeg"`

	HTTP  HTTPConfig  `yaml:"http"`
	Edge  EdgeConfig  `yaml:"edge"`
	Piper PiperConfig `yaml:"piper"`
	Mock  MockConfig  `yaml:"mock"`
}

// HTTPConfig points at a server speaking GET /stream_audio?text=&rate=.
type HTTPConfig struct {
	Endpoint string `yaml:"endpoint" env:"LISTEN_HTTP_ENDPOINT" envDefault:"http://localhost:5050/stream_audio"`
	Rate     string `yaml:"rate" env:"LISTEN_HTTP_RATE" envDefault:"+15%"`
}

// EdgeConfig drives the edge-tts command line tool.
type EdgeConfig struct {
	Binary string `yaml:"binary" env:"LISTEN_EDGE_BINARY" envDefault:"edge-tts"`
	Voice  string `yaml:"voice" env:"LISTEN_EDGE_VOICE" envDefault:"en-US-AvaNeural"`
	Rate   string `yaml:"rate" env:"LISTEN_EDGE_RATE" envDefault:"+12%"`
}

// PiperConfig drives a local piper install.
type PiperConfig struct {
	Binary      string  `yaml:"binary" env:"LISTEN_PIPER_BINARY" envDefault:"piper"`
	Model       string  `yaml:"model" env:"LISTEN_PIPER_MODEL" envDefault:"en_US-lessac-medium"`
	SampleRate  int     `yaml:"sample_rate" env:"LISTEN_PIPER_SAMPLE_RATE" envDefault:"22050"`
	SpeakerID   int     `yaml:"speaker_id" env:"LISTEN_PIPER_SPEAKER_ID" envDefault:"0"`
	LengthScale float64 `yaml:"length_scale" env:"LISTEN_PIPER_LENGTH_SCALE" envDefault:"1.0"`
}

// MockConfig shapes the offline test synthesizer.
type MockConfig struct {
	Delay          time.Duration `yaml:"delay" env:"LISTEN_MOCK_DELAY" envDefault:"150ms"`
	WordsPerMinute int           `yaml:"words_per_minute" env:"LISTEN_MOCK_WORDS_PER_MINUTE" envDefault:"180"`
	FailureRate    float64       `yaml:"failure_rate" env:"LISTEN_MOCK_FAILURE_RATE" envDefault:"0"`
}

// AudioConfig describes the output device.
type AudioConfig struct {
	// Device is "oto" for the sound card or "simulated" for silent playback.
	Device     string  `yaml:"device" env:"LISTEN_AUDIO_DEVICE" envDefault:"oto"`
	SampleRate int     `yaml:"sample_rate" env:"LISTEN_SAMPLE_RATE" envDefault:"44100"`
	Channels   int     `yaml:"channels" env:"LISTEN_CHANNELS" envDefault:"1"`
	Volume     float64 `yaml:"volume" env:"LISTEN_VOLUME" envDefault:"1.0"`
}

// ChunkerConfig bounds chunk sizes.
type ChunkerConfig struct {
	MaxChars      int `yaml:"max_chars" env:"LISTEN_MAX_CHARS" envDefault:"5000"`
	MaxWords      int `yaml:"max_words" env:"LISTEN_MAX_WORDS" envDefault:"42"`
	MinWords      int `yaml:"min_words" env:"LISTEN_MIN_WORDS" envDefault:"20"`
	FirstMaxWords int `yaml:"first_max_words" env:"LISTEN_FIRST_MAX_WORDS" envDefault:"14"`
}

// PlaybackConfig tunes sessions.
type PlaybackConfig struct {
	PrefetchWindow      int           `yaml:"prefetch_window" env:"LISTEN_PREFETCH_WINDOW" envDefault:"6"`
	PrefetchConcurrency int           `yaml:"prefetch_concurrency" env:"LISTEN_PREFETCH_CONCURRENCY" envDefault:"2"`
	ErrorResetDelay     time.Duration `yaml:"error_reset_delay" env:"LISTEN_ERROR_RESET_DELAY" envDefault:"3s"`
}

// CacheConfig sizes the memory tier and picks the persistent one.
type CacheConfig struct {
	MemorySize ByteSize `yaml:"memory_size" env:"LISTEN_CACHE_MEMORY" envDefault:"64MiB"`

	// Backing is "disk", "nats" or "none".
	Backing          string        `yaml:"backing" env:"LISTEN_CACHE_BACKING" envDefault:"disk"`
	Dir              string        `yaml:"dir" env:"LISTEN_CACHE_DIR"`
	DiskSize         ByteSize      `yaml:"disk_size" env:"LISTEN_CACHE_DISK" envDefault:"512MiB"`
	CompressionLevel int           `yaml:"compression_level" env:"LISTEN_CACHE_COMPRESSION" envDefault:"3"`
	MaxAge           time.Duration `yaml:"max_age" env:"LISTEN_CACHE_MAX_AGE" envDefault:"168h"`
	NatsURL          string        `yaml:"nats_url" env:"LISTEN_NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	NatsBucket       string        `yaml:"nats_bucket" env:"LISTEN_NATS_BUCKET" envDefault:"listen-audio"`
}

// ByteSize is a size in bytes written as "64MiB" or "1 GB".
type ByteSize int64

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := humanize.ParseBytes(string(text))
	if err != nil {
		return fmt.Errorf("parse size %q: %w", text, err)
	}
	*b = ByteSize(n)
	return nil
}

// String implements fmt.Stringer.
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Default returns the configuration described by the struct tags, with any
// LISTEN_* environment variables applied.
func Default() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

var (
	validEngines  = []string{"http", "edge", "piper", "mock"}
	validBackings = []string{"disk", "nats", "none"}
	validDevices  = []string{"oto", "simulated"}
)

// Validate checks the configuration and normalizes enum fields to lower
// case.
func (c *Config) Validate() error {
	var err error
	if c.Synth.Engine, err = oneOf("synth.engine", c.Synth.Engine, validEngines); err != nil {
		return err
	}
	if c.Cache.Backing, err = oneOf("cache.backing", c.Cache.Backing, validBackings); err != nil {
		return err
	}
	if c.Audio.Device, err = oneOf("audio.device", c.Audio.Device, validDevices); err != nil {
		return err
	}

	switch {
	case c.Synth.Timeout <= 0:
		return invalid("synth.timeout must be positive, got %s", c.Synth.Timeout)
	case c.Synth.RequestsPerMinute < 1:
		return invalid("synth.requests_per_minute must be at least 1, got %d", c.Synth.RequestsPerMinute)
	case c.Synth.Engine == "http" && c.Synth.HTTP.Endpoint == "":
		return invalid("synth.http.endpoint is required for the http engine")
	case c.Synth.Engine == "piper" && (c.Synth.Piper.SampleRate < 8000 || c.Synth.Piper.SampleRate > 48000):
		return invalid("synth.piper.sample_rate %d is out of range", c.Synth.Piper.SampleRate)
	case c.Synth.Mock.FailureRate < 0 || c.Synth.Mock.FailureRate > 1:
		return invalid("synth.mock.failure_rate must be between 0 and 1, got %g", c.Synth.Mock.FailureRate)
	case c.Synth.Mock.WordsPerMinute < 1:
		return invalid("synth.mock.words_per_minute must be positive")

	case c.Audio.SampleRate != 44100 && c.Audio.SampleRate != 48000:
		return invalid("audio.sample_rate must be 44100 or 48000 Hz, got %d", c.Audio.SampleRate)
	case c.Audio.Channels != 1 && c.Audio.Channels != 2:
		return invalid("audio.channels must be 1 or 2, got %d", c.Audio.Channels)
	case c.Audio.Volume <= 0 || c.Audio.Volume > 1:
		return invalid("audio.volume must be in (0, 1], got %g", c.Audio.Volume)

	case c.Chunker.MaxWords < 1:
		return invalid("chunker.max_words must be positive")
	case c.Chunker.MinWords < 1 || c.Chunker.MinWords > c.Chunker.MaxWords:
		return invalid("chunker.min_words must be between 1 and max_words (%d), got %d", c.Chunker.MaxWords, c.Chunker.MinWords)
	case c.Chunker.FirstMaxWords < 1 || c.Chunker.FirstMaxWords > c.Chunker.MaxWords:
		return invalid("chunker.first_max_words must be between 1 and max_words (%d), got %d", c.Chunker.MaxWords, c.Chunker.FirstMaxWords)
	case c.Chunker.MaxChars < 1:
		return invalid("chunker.max_chars must be positive")

	case c.Playback.PrefetchWindow < 0 || c.Playback.PrefetchWindow > 32:
		return invalid("playback.prefetch_window must be between 0 and 32, got %d", c.Playback.PrefetchWindow)
	case c.Playback.PrefetchConcurrency < 1:
		return invalid("playback.prefetch_concurrency must be at least 1")
	case c.Playback.ErrorResetDelay < 0:
		return invalid("playback.error_reset_delay cannot be negative")

	case c.Cache.MemorySize < 0 || c.Cache.DiskSize < 0:
		return invalid("cache sizes cannot be negative")
	case c.Cache.CompressionLevel < 0 || c.Cache.CompressionLevel > 22:
		return invalid("cache.compression_level must be between 0 and 22, got %d", c.Cache.CompressionLevel)
	case c.Cache.Backing == "nats" && (c.Cache.NatsURL == "" || c.Cache.NatsBucket == ""):
		return invalid("cache.nats_url and cache.nats_bucket are required for the nats backing")
	}
	return nil
}

func oneOf(key, value string, valid []string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, ok := range valid {
		if v == ok {
			return v, nil
		}
	}
	return value, invalid("%s %q must be one of %v", key, value, valid)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	if cfg.Synth.Engine != "edge" {
		t.Errorf("Engine = %q, want edge", cfg.Synth.Engine)
	}
	if cfg.Synth.Edge.Voice != "en-US-AvaNeural" || cfg.Synth.Edge.Rate != "+12%" {
		t.Errorf("edge voice/rate = %q/%q", cfg.Synth.Edge.Voice, cfg.Synth.Edge.Rate)
	}
	if cfg.Playback.PrefetchWindow != 6 {
		t.Errorf("PrefetchWindow = %d, want 6", cfg.Playback.PrefetchWindow)
	}
	if cfg.Playback.ErrorResetDelay != 3*time.Second {
		t.Errorf("ErrorResetDelay = %s, want 3s", cfg.Playback.ErrorResetDelay)
	}
	if cfg.Chunker.MaxChars != 5000 {
		t.Errorf("MaxChars = %d, want 5000", cfg.Chunker.MaxChars)
	}
	if cfg.Cache.MemorySize != 64<<20 {
		t.Errorf("MemorySize = %d, want 64MiB", cfg.Cache.MemorySize)
	}
}

func TestDefaultReadsEnvironment(t *testing.T) {
	t.Setenv("LISTEN_ENGINE", "mock")
	t.Setenv("LISTEN_CACHE_MEMORY", "8 MB")
	t.Setenv("LISTEN_PREFETCH_WINDOW", "2")

	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Synth.Engine != "mock" {
		t.Errorf("Engine = %q", cfg.Synth.Engine)
	}
	if cfg.Cache.MemorySize != 8_000_000 {
		t.Errorf("MemorySize = %d", cfg.Cache.MemorySize)
	}
	if cfg.Playback.PrefetchWindow != 2 {
		t.Errorf("PrefetchWindow = %d", cfg.Playback.PrefetchWindow)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"engine case", func(c *Config) { c.Synth.Engine = "MOCK" }, ""},
		{"unknown engine", func(c *Config) { c.Synth.Engine = "espeak" }, "synth.engine"},
		{"unknown backing", func(c *Config) { c.Cache.Backing = "redis" }, "cache.backing"},
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 22050 }, "audio.sample_rate"},
		{"volume", func(c *Config) { c.Audio.Volume = 1.5 }, "audio.volume"},
		{"min above max", func(c *Config) { c.Chunker.MinWords = 100 }, "chunker.min_words"},
		{"first above max", func(c *Config) { c.Chunker.FirstMaxWords = 50 }, "chunker.first_max_words"},
		{"window", func(c *Config) { c.Playback.PrefetchWindow = -1 }, "prefetch_window"},
		{"concurrency", func(c *Config) { c.Playback.PrefetchConcurrency = 0 }, "prefetch_concurrency"},
		{"http needs endpoint", func(c *Config) {
			c.Synth.Engine = "http"
			c.Synth.HTTP.Endpoint = ""
		}, "synth.http.endpoint"},
		{"nats needs bucket", func(c *Config) {
			c.Cache.Backing = "nats"
			c.Cache.NatsBucket = ""
		}, "nats_bucket"},
		{"failure rate", func(c *Config) { c.Synth.Mock.FailureRate = 2 }, "failure_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			if err != nil {
				t.Fatal(err)
			}
			tt.modify(&cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() accepted invalid config")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	err := v.ReadConfig(strings.NewReader(`
synth:
  engine: http
  http:
    endpoint: http://tts.local/stream_audio
    rate: "+20%"
playback:
  prefetch_window: 3
  error_reset_delay: 500ms
cache:
  backing: none
  memory_size: 16MiB
chunker:
  max_words: 30
  min_words: 10
  first_max_words: 8
`))
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Synth.Engine != "http" || cfg.Synth.HTTP.Endpoint != "http://tts.local/stream_audio" {
		t.Errorf("synth = %+v", cfg.Synth)
	}
	if cfg.Synth.HTTP.Rate != "+20%" {
		t.Errorf("rate = %q", cfg.Synth.HTTP.Rate)
	}
	if cfg.Playback.PrefetchWindow != 3 || cfg.Playback.ErrorResetDelay != 500*time.Millisecond {
		t.Errorf("playback = %+v", cfg.Playback)
	}
	if cfg.Cache.Backing != "none" || cfg.Cache.MemorySize != 16<<20 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Chunker.MaxWords != 30 || cfg.Chunker.FirstMaxWords != 8 {
		t.Errorf("chunker = %+v", cfg.Chunker)
	}
	// Untouched keys keep their defaults.
	if cfg.Synth.Edge.Voice != "en-US-AvaNeural" {
		t.Errorf("edge voice = %q", cfg.Synth.Edge.Voice)
	}
}

func TestLoadRejectsBadSize(t *testing.T) {
	v := viper.New()
	v.Set("cache.memory_size", "lots")
	if _, err := Load(v); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	if err := SetDefaults(v); err != nil {
		t.Fatal(err)
	}
	if got := v.GetString("synth.edge.voice"); got != "en-US-AvaNeural" {
		t.Errorf("default voice = %q", got)
	}
	if got := v.GetDuration("playback.error_reset_delay"); got != 3*time.Second {
		t.Errorf("default error reset delay = %s", got)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load over defaults: %v", err)
	}
	if cfg.Cache.MemorySize != 64<<20 {
		t.Errorf("MemorySize round trip = %d", cfg.Cache.MemorySize)
	}
}

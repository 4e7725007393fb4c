package config

import (
	"github.com/spf13/viper"
)

// LoadFromViper builds the configuration from the global viper instance.
func LoadFromViper() (Config, error) {
	return Load(viper.GetViper())
}

// Load starts from Default and applies every key set in v, then validates.
func Load(v *viper.Viper) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}

	loadSynth(v, &cfg.Synth)
	loadAudio(v, &cfg.Audio)
	loadChunker(v, &cfg.Chunker)
	loadPlayback(v, &cfg.Playback)
	if err := loadCache(v, &cfg.Cache); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadSynth(v *viper.Viper, cfg *SynthConfig) {
	if v.IsSet("synth.engine") {
		cfg.Engine = v.GetString("synth.engine")
	}
	if v.IsSet("synth.timeout") {
		cfg.Timeout = v.GetDuration("synth.timeout")
	}
	if v.IsSet("synth.requests_per_minute") {
		cfg.RequestsPerMinute = v.GetInt("synth.requests_per_minute")
	}
	if v.IsSet("synth.ffmpeg") {
		cfg.FFmpeg = v.GetString("synth.ffmpeg")
	}

	if v.IsSet("synth.http.endpoint") {
		cfg.HTTP.Endpoint = v.GetString("synth.http.endpoint")
	}
	if v.IsSet("synth.http.rate") {
		cfg.HTTP.Rate = v.GetString("synth.http.rate")
	}

	if v.IsSet("synth.edge.binary") {
		cfg.Edge.Binary = v.GetString("synth.edge.binary")
	}
	if v.IsSet("synth.edge.voice") {
		cfg.Edge.Voice = v.GetString("synth.edge.voice")
	}
	if v.IsSet("synth.edge.rate") {
		cfg.Edge.Rate = v.GetString("synth.edge.rate")
	}

	if v.IsSet("synth.piper.binary") {
		cfg.Piper.Binary = v.GetString("synth.piper.binary")
	}
	if v.IsSet("synth.piper.model") {
		cfg.Piper.Model = v.GetString("synth.piper.model")
	}
	if v.IsSet("synth.piper.sample_rate") {
		cfg.Piper.SampleRate = v.GetInt("synth.piper.sample_rate")
	}
	if v.IsSet("synth.piper.speaker_id") {
		cfg.Piper.SpeakerID = v.GetInt("synth.piper.speaker_id")
	}
	if v.IsSet("synth.piper.length_scale") {
		cfg.Piper.LengthScale = v.GetFloat64("synth.piper.length_scale")
	}

	if v.IsSet("synth.mock.delay") {
		cfg.Mock.Delay = v.GetDuration("synth.mock.delay")
	}
	if v.IsSet("synth.mock.words_per_minute") {
		cfg.Mock.WordsPerMinute = v.GetInt("synth.mock.words_per_minute")
	}
	if v.IsSet("synth.mock.failure_rate") {
		cfg.Mock.FailureRate = v.GetFloat64("synth.mock.failure_rate")
	}
}

func loadAudio(v *viper.Viper, cfg *AudioConfig) {
	if v.IsSet("audio.device") {
		cfg.Device = v.GetString("audio.device")
	}
	if v.IsSet("audio.sample_rate") {
		cfg.SampleRate = v.GetInt("audio.sample_rate")
	}
	if v.IsSet("audio.channels") {
		cfg.Channels = v.GetInt("audio.channels")
	}
	if v.IsSet("audio.volume") {
		cfg.Volume = v.GetFloat64("audio.volume")
	}
}

func loadChunker(v *viper.Viper, cfg *ChunkerConfig) {
	if v.IsSet("chunker.max_chars") {
		cfg.MaxChars = v.GetInt("chunker.max_chars")
	}
	if v.IsSet("chunker.max_words") {
		cfg.MaxWords = v.GetInt("chunker.max_words")
	}
	if v.IsSet("chunker.min_words") {
		cfg.MinWords = v.GetInt("chunker.min_words")
	}
	if v.IsSet("chunker.first_max_words") {
		cfg.FirstMaxWords = v.GetInt("chunker.first_max_words")
	}
}

func loadPlayback(v *viper.Viper, cfg *PlaybackConfig) {
	if v.IsSet("playback.prefetch_window") {
		cfg.PrefetchWindow = v.GetInt("playback.prefetch_window")
	}
	if v.IsSet("playback.prefetch_concurrency") {
		cfg.PrefetchConcurrency = v.GetInt("playback.prefetch_concurrency")
	}
	if v.IsSet("playback.error_reset_delay") {
		cfg.ErrorResetDelay = v.GetDuration("playback.error_reset_delay")
	}
}

func loadCache(v *viper.Viper, cfg *CacheConfig) error {
	if v.IsSet("cache.memory_size") {
		if err := cfg.MemorySize.UnmarshalText([]byte(v.GetString("cache.memory_size"))); err != nil {
			return invalid("cache.memory_size: %v", err)
		}
	}
	if v.IsSet("cache.backing") {
		cfg.Backing = v.GetString("cache.backing")
	}
	if v.IsSet("cache.dir") {
		cfg.Dir = v.GetString("cache.dir")
	}
	if v.IsSet("cache.disk_size") {
		if err := cfg.DiskSize.UnmarshalText([]byte(v.GetString("cache.disk_size"))); err != nil {
			return invalid("cache.disk_size: %v", err)
		}
	}
	if v.IsSet("cache.compression_level") {
		cfg.CompressionLevel = v.GetInt("cache.compression_level")
	}
	if v.IsSet("cache.max_age") {
		cfg.MaxAge = v.GetDuration("cache.max_age")
	}
	if v.IsSet("cache.nats_url") {
		cfg.NatsURL = v.GetString("cache.nats_url")
	}
	if v.IsSet("cache.nats_bucket") {
		cfg.NatsBucket = v.GetString("cache.nats_bucket")
	}
	return nil
}

// SetDefaults registers every default in v so that `viper.AllSettings` and
// flag bindings see them.
func SetDefaults(v *viper.Viper) error {
	d, err := Default()
	if err != nil {
		return err
	}

	v.SetDefault("synth.engine", d.Synth.Engine)
	v.SetDefault("synth.timeout", d.Synth.Timeout.String())
	v.SetDefault("synth.requests_per_minute", d.Synth.RequestsPerMinute)
	v.SetDefault("synth.ffmpeg", d.Synth.FFmpeg)
	v.SetDefault("synth.http.endpoint", d.Synth.HTTP.Endpoint)
	v.SetDefault("synth.http.rate", d.Synth.HTTP.Rate)
	v.SetDefault("synth.edge.binary", d.Synth.Edge.Binary)
	v.SetDefault("synth.edge.voice", d.Synth.Edge.Voice)
	v.SetDefault("synth.edge.rate", d.Synth.Edge.Rate)
	v.SetDefault("synth.piper.binary", d.Synth.Piper.Binary)
	v.SetDefault("synth.piper.model", d.Synth.Piper.Model)
	v.SetDefault("synth.piper.sample_rate", d.Synth.Piper.SampleRate)
	v.SetDefault("synth.mock.delay", d.Synth.Mock.Delay.String())
	v.SetDefault("synth.mock.words_per_minute", d.Synth.Mock.WordsPerMinute)

	v.SetDefault("audio.device", d.Audio.Device)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.volume", d.Audio.Volume)

	v.SetDefault("chunker.max_chars", d.Chunker.MaxChars)
	v.SetDefault("chunker.max_words", d.Chunker.MaxWords)
	v.SetDefault("chunker.min_words", d.Chunker.MinWords)
	v.SetDefault("chunker.first_max_words", d.Chunker.FirstMaxWords)

	v.SetDefault("playback.prefetch_window", d.Playback.PrefetchWindow)
	v.SetDefault("playback.prefetch_concurrency", d.Playback.PrefetchConcurrency)
	v.SetDefault("playback.error_reset_delay", d.Playback.ErrorResetDelay.String())

	v.SetDefault("cache.memory_size", d.Cache.MemorySize.String())
	v.SetDefault("cache.backing", d.Cache.Backing)
	v.SetDefault("cache.disk_size", d.Cache.DiskSize.String())
	v.SetDefault("cache.compression_level", d.Cache.CompressionLevel)
	v.SetDefault("cache.max_age", d.Cache.MaxAge.String())
	v.SetDefault("cache.nats_url", d.Cache.NatsURL)
	v.SetDefault("cache.nats_bucket", d.Cache.NatsBucket)
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/listen/internal/arbiter"
	"github.com/dgnsrekt/listen/internal/audio"
	"github.com/dgnsrekt/listen/internal/cache"
	"github.com/dgnsrekt/listen/internal/config"
	"github.com/dgnsrekt/listen/internal/playback"
	"github.com/dgnsrekt/listen/internal/synth"
	"github.com/dgnsrekt/listen/utils"
	gap "github.com/muesli/go-app-paths"
)

// runtime is everything a command needs to speak: one device, one backend,
// one cache and the engine that ties them together.
type runtime struct {
	cfg    config.Config
	synth  synth.Synthesizer
	device audio.Device
	store  *cache.Store
	engine *playback.Engine
}

func newRuntime(cfg config.Config) (*runtime, error) {
	logger := log.Default()

	format := audio.Format{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		BitDepth:   16,
	}
	backend, err := synth.New(cfg.Synth, format, logger.WithPrefix("synth"))
	if err != nil {
		return nil, fmt.Errorf("unable to set up %s synthesis: %w", cfg.Synth.Engine, err)
	}
	// piper dictates its own sample rate
	format = backend.Format()
	checkHealth(backend)

	device, err := openDevice(cfg.Audio, format)
	if err != nil {
		return nil, err
	}

	backing, err := openBacking(cfg.Cache)
	if err != nil {
		_ = device.Close()
		return nil, err
	}

	store := cache.New(backend, cache.Options{
		MemoryCapacity: int64(cfg.Cache.MemorySize),
		Format:         format,
		Namespace:      namespace(cfg.Synth, format),
		Backing:        backing,
		MaxAge:         cfg.Cache.MaxAge,
		Logger:         logger.WithPrefix("cache"),
	})

	engine := playback.NewEngine(playback.Options{
		Chunker:             newChunker(cfg.Chunker),
		Resolver:            store,
		Arbiter:             arbiter.New(logger.WithPrefix("arbiter")),
		Device:              device,
		PrefetchWindow:      cfg.Playback.PrefetchWindow,
		PrefetchConcurrency: cfg.Playback.PrefetchConcurrency,
		ErrorResetDelay:     cfg.Playback.ErrorResetDelay,
		Logger:              logger.WithPrefix("playback"),
	})

	log.Debug("runtime ready",
		"engine", backend.Name(),
		"format", format,
		"device", cfg.Audio.Device,
		"backing", cfg.Cache.Backing,
	)
	return &runtime{
		cfg:    cfg,
		synth:  backend,
		device: device,
		store:  store,
		engine: engine,
	}, nil
}

// Close stops playback and releases the device and cache.
func (r *runtime) Close() error {
	r.engine.Close()
	return errors.Join(r.store.Close(), r.device.Close())
}

type healthChecker interface {
	Health(ctx context.Context) error
}

// checkHealth warns early when a remote backend is unreachable. Playback
// still proceeds; failures surface per chunk.
func checkHealth(backend synth.Synthesizer) {
	hc, ok := backend.(healthChecker)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := hc.Health(ctx); err != nil {
		log.Warn("synthesis backend is not healthy", "engine", backend.Name(), "err", err)
	}
}

func openDevice(cfg config.AudioConfig, format audio.Format) (audio.Device, error) {
	if cfg.Device == "simulated" {
		return audio.NewSimulatedDevice(format), nil
	}
	device, err := audio.NewOtoDevice(format, cfg.Volume)
	if err != nil {
		return nil, fmt.Errorf("unable to open audio device (try --device simulated): %w", err)
	}
	return device, nil
}

// openBacking returns the persistent cache tier, or nil when disabled.
func openBacking(cfg config.CacheConfig) (cache.Backing, error) {
	switch cfg.Backing {
	case "disk":
		dir, err := cacheDir(cfg)
		if err != nil {
			return nil, err
		}
		b, err := cache.NewDiskBacking(cache.DiskOptions{
			Path:             dir,
			Capacity:         int64(cfg.DiskSize),
			CompressionLevel: cfg.CompressionLevel,
			MaxAge:           cfg.MaxAge,
		})
		if err != nil {
			return nil, fmt.Errorf("unable to open disk cache: %w", err)
		}
		return b, nil
	case "nats":
		b, err := cache.DialNats(cfg.NatsURL, cfg.NatsBucket)
		if err != nil {
			return nil, fmt.Errorf("unable to open nats cache: %w", err)
		}
		return b, nil
	default:
		return nil, nil
	}
}

func cacheDir(cfg config.CacheConfig) (string, error) {
	if cfg.Dir != "" {
		return utils.ExpandPath(cfg.Dir), nil
	}
	dir, err := gap.NewScope(gap.User, "listen").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}

// namespace keeps audio from different voices and formats apart in the
// persistent tier.
func namespace(cfg config.SynthConfig, format audio.Format) string {
	voice := ""
	switch cfg.Engine {
	case "http":
		voice = cfg.HTTP.Endpoint + "|" + cfg.HTTP.Rate
	case "edge":
		voice = cfg.Edge.Voice + "|" + cfg.Edge.Rate
	case "piper":
		voice = cfg.Piper.Model + "|" + strconv.Itoa(cfg.Piper.SpeakerID) + "|" + strconv.FormatFloat(cfg.Piper.LengthScale, 'g', -1, 64)
	case "mock":
		voice = strconv.Itoa(cfg.Mock.WordsPerMinute)
	}
	return cfg.Engine + "|" + voice + "|" + format.String()
}

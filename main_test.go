package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/listen/internal/audio"
	"github.com/dgnsrekt/listen/internal/cache"
	"github.com/dgnsrekt/listen/internal/config"
	"github.com/dgnsrekt/listen/internal/playback"
	"github.com/dgnsrekt/listen/internal/synth"
)

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "post.md")
	if err := os.WriteFile(file, []byte("---\ntitle: x\n---\n# Heading\n\nSome **bold** text."), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		args  []string
		stdin string
		want  string
		err   error
	}{
		{"stdin", nil, "Piped *text*.", "Piped text.", nil},
		{"dash", []string{"-"}, "From dash.", "From dash.", nil},
		{"file", []string{file}, "", "Heading\nSome bold text.", nil},
		{"words", []string{"Hello", "there."}, "", "Hello there.", nil},
		{"empty", nil, "  \n", "", errNoInput},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := readInput(tc.args, strings.NewReader(tc.stdin))
			if !errors.Is(err, tc.err) {
				t.Fatalf("readInput() error = %v, want %v", err, tc.err)
			}
			if got != tc.want {
				t.Errorf("readInput() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPrintChunks(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	text := "AI breakthrough today. Researchers announced a new model that reads articles aloud."
	if err := printChunks(&buf, newChunker(cfg.Chunker), text); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"1/2", "AI breakthrough today.", "2/2", "(3 words)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSnapshotLine(t *testing.T) {
	tests := []struct {
		snap  playback.Snapshot
		width int
		want  string
	}{
		{playback.Snapshot{State: playback.StateIdle}, 0, "idle"},
		{playback.Snapshot{State: playback.StateError, Index: 0, Total: 3}, 0, "error   1/3"},
		{playback.Snapshot{State: playback.StatePlaying, Index: 1, Total: 3, Chunk: "Second\nchunk."}, 0, "playing 2/3    Second chunk."},
		{playback.Snapshot{State: playback.StatePlaying, Index: 1, Total: 3, Chunk: "Second chunk."}, 12, "playing 2/3…"},
	}

	for _, tc := range tests {
		if got := snapshotLine(tc.snap, tc.width); got != tc.want {
			t.Errorf("snapshotLine(%v, %d) = %q, want %q", tc.snap.State, tc.width, got, tc.want)
		}
	}
}

func TestNamespaceSeparatesVoices(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}
	format := audio.DefaultFormat()

	a := namespace(cfg.Synth, format)
	cfg.Synth.Edge.Voice = "en-GB-SoniaNeural"
	b := namespace(cfg.Synth, format)
	c := namespace(cfg.Synth, audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16})

	if a == b || b == c {
		t.Fatalf("namespaces collide: %q %q %q", a, b, c)
	}
}

func TestOpenBackingNone(t *testing.T) {
	b, err := openBacking(config.CacheConfig{Backing: "none"})
	if err != nil || b != nil {
		t.Fatalf("openBacking(none) = %v, %v", b, err)
	}

	b, err = openBacking(config.CacheConfig{Backing: "disk", Dir: t.TempDir(), DiskSize: 1 << 20, CompressionLevel: 1})
	if err != nil {
		t.Fatalf("openBacking(disk) error = %v", err)
	}
	_ = b.Close()
}

func newTestEngine(t *testing.T, failure error) *playback.Engine {
	t.Helper()

	quiet := log.New(io.Discard)
	format := audio.Format{SampleRate: 8000, Channels: 1, BitDepth: 16}
	backend := synth.NewMockSynthesizer(synth.MockOptions{WordsPerMinute: 6000, Format: format})
	if failure != nil {
		backend.SetFailure(failure)
	}
	store := cache.New(backend, cache.Options{Format: format, Logger: quiet})
	engine := playback.NewEngine(playback.Options{
		Resolver: store,
		Device:   audio.NewSimulatedDevice(format),
		Logger:   quiet,
	})
	t.Cleanup(func() {
		engine.Close()
		_ = store.Close()
	})
	return engine
}

func TestSayPlaysToTheEnd(t *testing.T) {
	engine := newTestEngine(t, nil)

	var buf bytes.Buffer
	if err := say(context.Background(), engine, "Hello there. This is a short test.", &buf, false); err != nil {
		t.Fatalf("say() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"loading", "playing", "idle"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSayReportsFailure(t *testing.T) {
	engine := newTestEngine(t, errors.New("backend down"))

	var buf bytes.Buffer
	err := say(context.Background(), engine, "This will not be spoken.", &buf, false)
	if !errors.Is(err, errSpeechFailed) {
		t.Fatalf("say() error = %v, want %v", err, errSpeechFailed)
	}
	if !strings.Contains(buf.String(), "error") {
		t.Errorf("output missing error state:\n%s", buf.String())
	}
}

func TestSayStopsOnCancel(t *testing.T) {
	engine := newTestEngine(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := say(ctx, engine, "Stopped before it finishes.", io.Discard, false); err != nil {
		t.Fatalf("say() error = %v", err)
	}
}

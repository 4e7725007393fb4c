package cache

import (
	"context"
	"errors"
	"time"

	"github.com/dgnsrekt/listen/internal/audio"
)

var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrNotFound is returned by a Backing that does not hold the key.
	ErrNotFound = errors.New("not found in cache")

	// ErrEmptyAudio is returned when synthesis produced no samples.
	ErrEmptyAudio = errors.New("synthesis returned no audio")

	// ErrCacheCorrupted is returned when stored data cannot be decoded.
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Resource is a playable handle for synthesized audio. It is immutable and
// stays usable after the cache drops it.
type Resource struct {
	ID      string
	Key     string
	Clip    audio.Clip
	Created time.Time
}

// Duration is the playing time of the resource.
func (r *Resource) Duration() time.Duration {
	return r.Clip.Duration()
}

// Size is the number of PCM bytes held by the resource.
func (r *Resource) Size() int64 {
	return int64(len(r.Clip.Data))
}

// Synthesizer produces PCM for a piece of text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Backing is a persistent second level behind the in-memory cache.
type Backing interface {
	// Load returns ErrNotFound when the key is absent.
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, data []byte) error
	Usage(ctx context.Context) (Usage, error)
	Clear(ctx context.Context) error
	Close() error
}

// Usage describes how much a Backing holds.
type Usage struct {
	Items int64
	Bytes int64
}

// Stats holds cache performance counters.
type Stats struct {
	Capacity int64
	Size     int64
	Items    int64

	Hits        int64
	Misses      int64
	Evictions   int64
	BackingHits int64
	Syntheses   int64
	Joined      int64
	InFlight    int64
}

// HitRate returns hits / (hits + misses).
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

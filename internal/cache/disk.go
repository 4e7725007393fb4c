package cache

import (
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const indexFile = "cache.index"

// DiskBacking stores audio as files under a directory, zstd-compressed when
// that saves space.
type DiskBacking struct {
	basePath string
	capacity int64
	size     int64
	maxAge   time.Duration

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu sync.Mutex
}

type diskEntry struct {
	FilePath     string
	Size         int64
	OriginalSize int64
	Timestamp    time.Time
	LastAccess   time.Time
	Compressed   bool
}

// DiskOptions configures a DiskBacking.
type DiskOptions struct {
	Path             string
	Capacity         int64
	CompressionLevel int
	MaxAge           time.Duration
}

// NewDiskBacking opens or creates a disk cache. Entries older than MaxAge
// are dropped on open.
func NewDiskBacking(opts DiskOptions) (*DiskBacking, error) {
	if err := os.MkdirAll(opts.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dc := &DiskBacking{
		basePath: opts.Path,
		capacity: opts.Capacity,
		maxAge:   opts.MaxAge,
		index:    make(map[string]*diskEntry),
	}

	if opts.CompressionLevel > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.CompressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	var err error
	dc.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := dc.loadIndex(); err != nil {
		dc.index = make(map[string]*diskEntry)
	}
	dc.calculateSize()
	if dc.maxAge > 0 {
		dc.RemoveOlderThan(time.Now().Add(-dc.maxAge))
	}

	return dc, nil
}

// Load implements Backing.
func (dc *DiskBacking) Load(_ context.Context, key string) ([]byte, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(entry.FilePath)
	if err != nil {
		dc.dropLocked(key, entry)
		return nil, ErrNotFound
	}

	if entry.Compressed {
		data, err = dc.decoder.DecodeAll(data, nil)
		if err != nil {
			dc.dropLocked(key, entry)
			return nil, fmt.Errorf("%w: %w", ErrCacheCorrupted, err)
		}
	}

	entry.LastAccess = time.Now()
	return data, nil
}

// Store implements Backing.
func (dc *DiskBacking) Store(_ context.Context, key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	data := value
	compressed := false
	if dc.encoder != nil && len(value) > 1024 {
		if c := dc.encoder.EncodeAll(value, nil); len(c) < len(value) {
			data = c
			compressed = true
		}
	}
	diskSize := int64(len(data))

	if existing, ok := dc.index[key]; ok {
		dc.dropLocked(key, existing)
	}
	if dc.capacity > 0 && diskSize > dc.capacity {
		return ErrItemTooLarge
	}
	for dc.capacity > 0 && dc.size+diskSize > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	path := dc.filePath(key)
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	dc.index[key] = &diskEntry{
		FilePath:     path,
		Size:         diskSize,
		OriginalSize: int64(len(value)),
		Timestamp:    now,
		LastAccess:   now,
		Compressed:   compressed,
	}
	dc.size += diskSize

	return dc.saveIndex()
}

// Usage implements Backing.
func (dc *DiskBacking) Usage(context.Context) (Usage, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return Usage{Items: int64(len(dc.index)), Bytes: dc.size}, nil
}

// Clear implements Backing.
func (dc *DiskBacking) Clear(context.Context) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for _, entry := range dc.index {
		_ = os.Remove(entry.FilePath)
	}
	dc.index = make(map[string]*diskEntry)
	dc.size = 0
	return dc.saveIndex()
}

// RemoveOlderThan drops entries written before cutoff.
func (dc *DiskBacking) RemoveOlderThan(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed := 0
	for key, entry := range dc.index {
		if entry.Timestamp.Before(cutoff) {
			dc.dropLocked(key, entry)
			removed++
		}
	}
	if removed > 0 {
		_ = dc.saveIndex()
	}
	return removed
}

// Close implements Backing.
func (dc *DiskBacking) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.encoder != nil {
		_ = dc.encoder.Close()
	}
	dc.decoder.Close()
	return dc.saveIndex()
}

func (dc *DiskBacking) filePath(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(dc.basePath, hex.EncodeToString(hash[:16])+".pcm")
}

func (dc *DiskBacking) dropLocked(key string, entry *diskEntry) {
	_ = os.Remove(entry.FilePath)
	delete(dc.index, key)
	dc.size -= entry.Size
}

func (dc *DiskBacking) evictOldest() {
	var (
		oldestKey  string
		oldestTime time.Time
	)
	for key, entry := range dc.index {
		if oldestKey == "" || entry.LastAccess.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.LastAccess
		}
	}
	if oldestKey != "" {
		dc.dropLocked(oldestKey, dc.index[oldestKey])
	}
}

func (dc *DiskBacking) loadIndex() error {
	file, err := os.Open(filepath.Join(dc.basePath, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close() //nolint:errcheck

	return gob.NewDecoder(file).Decode(&dc.index)
}

func (dc *DiskBacking) saveIndex() error {
	indexPath := filepath.Join(dc.basePath, indexFile)
	tempPath := indexPath + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(file).Encode(dc.index)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, indexPath)
}

func (dc *DiskBacking) calculateSize() {
	dc.size = 0
	for _, entry := range dc.index {
		dc.size += entry.Size
	}
}

// writeFileAtomic writes to a temp file and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, path)
}

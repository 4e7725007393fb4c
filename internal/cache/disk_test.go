package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestDiskBacking_RoundTripCompressed(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskBacking(DiskOptions{Path: dir, CompressionLevel: 3})
	if err != nil {
		t.Fatalf("NewDiskBacking: %v", err)
	}
	ctx := context.Background()

	silence := make([]byte, 64*1024)
	if err := dc.Store(ctx, "quiet", silence); err != nil {
		t.Fatalf("Store: %v", err)
	}

	u, _ := dc.Usage(ctx)
	if u.Items != 1 {
		t.Errorf("Usage.Items = %d", u.Items)
	}
	if u.Bytes >= int64(len(silence)) {
		t.Errorf("silence was not compressed: %d bytes on disk", u.Bytes)
	}

	got, err := dc.Load(ctx, "quiet")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, silence) {
		t.Error("Load returned different bytes")
	}

	if _, err := dc.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) error = %v", err)
	}
}

func TestDiskBacking_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	dc, err := NewDiskBacking(DiskOptions{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := dc.Store(ctx, "k", []byte("pcm")); err != nil {
		t.Fatal(err)
	}
	if err := dc.Close(); err != nil {
		t.Fatal(err)
	}

	dc2, err := NewDiskBacking(DiskOptions{Path: dir})
	if err != nil {
		t.Fatal(err)
	}
	got, err := dc2.Load(ctx, "k")
	if err != nil || string(got) != "pcm" {
		t.Fatalf("Load after reopen = %q, %v", got, err)
	}
}

func TestDiskBacking_MissingFile(t *testing.T) {
	dc, err := NewDiskBacking(DiskOptions{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := dc.Store(ctx, "gone", []byte("data")); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(dc.filePath("gone")); err != nil {
		t.Fatal(err)
	}
	if _, err := dc.Load(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load error = %v, want ErrNotFound", err)
	}
	if u, _ := dc.Usage(ctx); u.Items != 0 {
		t.Errorf("stale entry kept in index")
	}
}

func TestDiskBacking_CapacityEviction(t *testing.T) {
	dc, err := NewDiskBacking(DiskOptions{Path: t.TempDir(), Capacity: 10})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := dc.Store(ctx, "a", []byte("123456")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := dc.Store(ctx, "b", []byte("789012")); err != nil {
		t.Fatal(err)
	}
	if _, err := dc.Load(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Error("oldest entry survived over capacity")
	}
	if err := dc.Store(ctx, "huge", make([]byte, 11)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Store(huge) error = %v", err)
	}
}

func TestDiskBacking_ClearAndExpire(t *testing.T) {
	dc, err := NewDiskBacking(DiskOptions{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	dc.Store(ctx, "x", []byte("1")) //nolint:errcheck
	dc.Store(ctx, "y", []byte("2")) //nolint:errcheck

	if n := dc.RemoveOlderThan(time.Now().Add(-time.Hour)); n != 0 {
		t.Errorf("RemoveOlderThan removed %d fresh entries", n)
	}
	if n := dc.RemoveOlderThan(time.Now().Add(time.Second)); n != 2 {
		t.Errorf("RemoveOlderThan removed %d entries, want 2", n)
	}

	dc.Store(ctx, "z", []byte("3")) //nolint:errcheck
	if err := dc.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if u, _ := dc.Usage(ctx); u.Items != 0 || u.Bytes != 0 {
		t.Errorf("Usage after Clear = %+v", u)
	}
}

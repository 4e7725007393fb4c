package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NatsBacking keeps audio in a JetStream object store bucket, so several
// players can share one cache.
type NatsBacking struct {
	conn   *nats.Conn
	bucket string
	store  nats.ObjectStore
}

// DialNats connects to url and opens the bucket. The connection is closed
// with the backing.
func DialNats(url, bucket string) (*NatsBacking, error) {
	nc, err := nats.Connect(url, nats.Name("listen"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to open jetstream: %w", err)
	}
	b, err := NewNatsBacking(js, bucket)
	if err != nil {
		nc.Close()
		return nil, err
	}
	b.conn = nc
	return b, nil
}

// NewNatsBacking creates the bucket, or binds to it when it already exists.
func NewNatsBacking(js nats.JetStreamContext, bucket string) (*NatsBacking, error) {
	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "Synthesized speech cached by listen.",
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to object store bucket '%s': %w", bucket, err)
		}
	}

	return &NatsBacking{bucket: bucket, store: store}, nil
}

// Load implements Backing.
func (n *NatsBacking) Load(ctx context.Context, key string) ([]byte, error) {
	obj, err := n.store.Get(objectName(key), nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object from bucket '%s': %w", n.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read object: %w", readErr)
	}
	if closeErr != nil {
		return data, fmt.Errorf("failed to close object: %w", closeErr)
	}
	return data, nil
}

// Store implements Backing.
func (n *NatsBacking) Store(ctx context.Context, key string, data []byte) error {
	_, err := n.store.Put(&nats.ObjectMeta{Name: objectName(key)}, bytes.NewReader(data), nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to put object to bucket '%s': %w", n.bucket, err)
	}
	return nil
}

// Usage implements Backing.
func (n *NatsBacking) Usage(ctx context.Context) (Usage, error) {
	infos, err := n.store.List(nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrNoObjectsFound) {
			return Usage{}, nil
		}
		return Usage{}, fmt.Errorf("failed to list bucket '%s': %w", n.bucket, err)
	}

	var u Usage
	for _, info := range infos {
		u.Items++
		u.Bytes += int64(info.Size)
	}
	return u, nil
}

// Clear implements Backing.
func (n *NatsBacking) Clear(ctx context.Context) error {
	infos, err := n.store.List(nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrNoObjectsFound) {
			return nil
		}
		return fmt.Errorf("failed to list bucket '%s': %w", n.bucket, err)
	}
	for _, info := range infos {
		if err := n.store.Delete(info.Name); err != nil {
			return fmt.Errorf("failed to delete object '%s': %w", info.Name, err)
		}
	}
	return nil
}

// Close implements Backing.
func (n *NatsBacking) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}

// objectName maps arbitrary chunk text to a short object name.
func objectName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

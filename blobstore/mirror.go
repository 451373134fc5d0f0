package blobstore

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// MirrorStore reads from a primary store and replicates writes and deletes
// to any number of replicas. A write succeeds only when every store
// accepted it.
type MirrorStore struct {
	primary  BlobStore
	replicas []BlobStore
}

// NewMirrorStore returns a store that mirrors primary onto replicas.
func NewMirrorStore(primary BlobStore, replicas ...BlobStore) *MirrorStore {
	return &MirrorStore{primary: primary, replicas: replicas}
}

// Open opens a blob from the primary store.
func (s *MirrorStore) Open(ctx context.Context, name string) (Blob, error) {
	return s.primary.Open(ctx, name)
}

// Put writes the blob to all stores concurrently.
func (s *MirrorStore) Put(ctx context.Context, name string, data []byte) error {
	return s.each(ctx, func(ctx context.Context, store BlobStore) error {
		return store.Put(ctx, name, data)
	})
}

// Delete removes the blob from all stores concurrently.
func (s *MirrorStore) Delete(ctx context.Context, name string) error {
	return s.each(ctx, func(ctx context.Context, store BlobStore) error {
		return store.Delete(ctx, name)
	})
}

// List lists the primary store.
func (s *MirrorStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.primary.List(ctx, prefix)
}

func (s *MirrorStore) each(ctx context.Context, fn func(context.Context, BlobStore) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fn(ctx, s.primary) })
	for _, r := range s.replicas {
		g.Go(func() error { return fn(ctx, r) })
	}
	return g.Wait()
}

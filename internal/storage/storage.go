// Package storage defines the blob store contract used for dataset
// persistence and backups.
package storage

import (
	"context"
	"errors"
)

// ErrNotExist is returned by GetObject when the key has never been written.
var ErrNotExist = errors.New("storage: object does not exist")

// BlobStore provides get/put/copy object semantics against a keyed store.
//
// PutObject must be atomic with respect to readers: a concurrent or
// subsequent GetObject sees either the previous content or the full new
// content, never a partial write.
type BlobStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, contentType string, data []byte) error
	CopyObject(ctx context.Context, src, dst string) error
	DeleteObject(ctx context.Context, key string) error
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

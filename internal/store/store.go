package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

// Store commits fully buffered assets to a blob bucket. The bucket may
// be local (a plain output directory) or cloud-backed (any registered
// blob URL scheme).
type Store struct {
	bucket *blob.Bucket
	owned  bool
}

// Open opens the destination named by outputDir. A value containing a
// URL scheme ("s3://...", "gs://...", "mem://") is opened through the
// blob URL mux; anything else is treated as a local directory.
func Open(ctx context.Context, outputDir string) (*Store, error) {
	if strings.Contains(outputDir, "://") {
		bucket, err := blob.OpenBucket(ctx, outputDir)
		if err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", outputDir, err)
		}
		return &Store{bucket: bucket, owned: true}, nil
	}

	// CreateDir makes intermediate directory creation idempotent under
	// concurrent commits.
	bucket, err := fileblob.OpenBucket(outputDir, &fileblob.Options{
		CreateDir: true,
		Metadata:  fileblob.MetadataDontWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("open output dir %s: %w", outputDir, err)
	}
	return &Store{bucket: bucket, owned: true}, nil
}

// NewFromBucket wraps an already opened bucket. The caller keeps
// ownership and closes it.
func NewFromBucket(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

// Put writes the asset under key as one object write. The reader is
// expected to hold fully buffered content; Put never issues partial
// incremental writes against the backing store.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return 0, fmt.Errorf("open writer for %s: %w", key, err)
	}

	n, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		return n, fmt.Errorf("write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("commit %s: %w", key, err)
	}
	return n, nil
}

// Exists reports whether an object is already present under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return ok, nil
}

// Close releases the bucket when this store opened it.
func (s *Store) Close() error {
	if s.owned {
		return s.bucket.Close()
	}
	return nil
}

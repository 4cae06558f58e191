package scheduler

import (
	"context"
	"strings"
	"sync"
	"testing"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"

	"github.com/eosdis-nasa/earthdata-mirror/internal/store"
	"github.com/eosdis-nasa/earthdata-mirror/internal/task"
)

func memStore(t *testing.T) (*store.Store, *blob.Bucket) {
	t.Helper()
	bucket, err := blob.OpenBucket(context.Background(), "mem://")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	t.Cleanup(func() { bucket.Close() })
	return store.NewFromBucket(bucket), bucket
}

func TestCommitPoolWrites(t *testing.T) {
	st, bucket := memStore(t)
	pool := NewCommitPool(st, 2)

	n, err := pool.Commit(context.Background(), task.Task{Destination: "a/b.hdf"}, strings.NewReader("bytes"))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if n != 5 {
		t.Errorf("bytes written: got %d, want 5", n)
	}
	if pool.TotalBytes() != 5 {
		t.Errorf("TotalBytes: got %d, want 5", pool.TotalBytes())
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := bucket.ReadAll(context.Background(), "a/b.hdf")
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "bytes" {
		t.Errorf("content: got %q", data)
	}
}

func TestCommitPoolConcurrent(t *testing.T) {
	st, _ := memStore(t)
	pool := NewCommitPool(st, 3)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "obj/" + string(rune('a'+i%26))
			if _, err := pool.Commit(context.Background(), task.Task{Destination: key}, strings.NewReader("x")); err != nil {
				t.Errorf("Commit: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if pool.TotalBytes() != 20 {
		t.Errorf("TotalBytes: got %d, want 20", pool.TotalBytes())
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCommitPoolClosed(t *testing.T) {
	st, _ := memStore(t)
	pool := NewCommitPool(st, 1)
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := pool.Commit(context.Background(), task.Task{Destination: "k"}, strings.NewReader("x")); err != ErrPoolClosed {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}
}

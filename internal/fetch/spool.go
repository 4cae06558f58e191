package fetch

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Spool buffers a download in memory up to a limit, transparently
// spilling to a temp file beyond it. The whole body is buffered before
// commit so the backing store sees exactly one write per asset.
type Spool struct {
	limit int64
	buf   bytes.Buffer
	file  *os.File
	size  int64
}

// NewSpool creates a spool that keeps at most limit bytes in memory.
func NewSpool(limit int64) *Spool {
	return &Spool{limit: limit}
}

// Write appends p, spilling to disk once the memory limit is crossed.
func (s *Spool) Write(p []byte) (int, error) {
	if s.file == nil && s.size+int64(len(p)) > s.limit {
		if err := s.spill(); err != nil {
			return 0, err
		}
	}

	var n int
	var err error
	if s.file != nil {
		n, err = s.file.Write(p)
	} else {
		n, err = s.buf.Write(p)
	}
	s.size += int64(n)
	return n, err
}

func (s *Spool) spill() error {
	f, err := os.CreateTemp("", "mirror-spool-*")
	if err != nil {
		return fmt.Errorf("create spool file: %w", err)
	}
	if _, err := f.Write(s.buf.Bytes()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("spill to spool file: %w", err)
	}
	s.buf.Reset()
	s.file = f
	return nil
}

// Size returns the number of bytes buffered so far.
func (s *Spool) Size() int64 { return s.size }

// Reader rewinds the spool and returns a reader over the full
// buffered content.
func (s *Spool) Reader() (io.Reader, error) {
	if s.file != nil {
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind spool file: %w", err)
		}
		return s.file, nil
	}
	return bytes.NewReader(s.buf.Bytes()), nil
}

// Close discards the buffered content and removes any spill file.
func (s *Spool) Close() error {
	s.buf.Reset()
	if s.file == nil {
		return nil
	}
	name := s.file.Name()
	err := s.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	s.file = nil
	return err
}

package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// lineLog appends plain newline-delimited values.
type lineLog struct {
	path string
	mu   sync.Mutex
	file *os.File
}

func openLineLog(path string) (*lineLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	return &lineLog{path: path, file: f}, nil
}

func (l *lineLog) append(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := fmt.Fprintln(l.file, line); err != nil {
		return fmt.Errorf("append to %s: %w", filepath.Base(l.path), err)
	}
	return nil
}

func (l *lineLog) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// recordLog appends JSON-encoded records, one per line.
type recordLog struct {
	path string
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

func openRecordLog(path string) (*recordLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	return &recordLog{path: path, file: f, enc: json.NewEncoder(f)}, nil
}

func (l *recordLog) append(rec any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(rec); err != nil {
		return fmt.Errorf("append to %s: %w", filepath.Base(l.path), err)
	}
	return nil
}

func (l *recordLog) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

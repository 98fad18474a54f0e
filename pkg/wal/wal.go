package wal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SegmentFileName is the name of the single segment file inside a log directory
const SegmentFileName = "active.segment"

// SyncMode determines when appends are forced to stable storage.
type SyncMode int

const (
	// SyncNone hands every append to the OS and never calls fsync.
	// A power loss may drop appends the OS hasn't written yet.
	SyncNone SyncMode = iota
	// SyncBatch is SyncNone plus a background fsync every Config.SyncInterval
	SyncBatch
	// SyncAlways calls fsync after every append
	SyncAlways
)

func (m SyncMode) String() string {
	switch m {
	case SyncNone:
		return "none"
	case SyncBatch:
		return "batch"
	case SyncAlways:
		return "always"
	}
	return fmt.Sprintf("SyncMode(%d)", int(m))
}

// ParseSyncMode parses the names returned by SyncMode.String
func ParseSyncMode(s string) (SyncMode, error) {
	switch s {
	case "none", "":
		return SyncNone, nil
	case "batch":
		return SyncBatch, nil
	case "always":
		return SyncAlways, nil
	}
	return SyncNone, fmt.Errorf("unknown sync mode %q", s)
}

// Config configures a Log
type Config struct {
	SyncMode SyncMode
	// only used with SyncBatch
	SyncInterval time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		SyncMode:     SyncNone,
		SyncInterval: time.Second,
	}
}

// WAL is the append-only record log
type WAL interface {
	AppendPut(key []byte, value []byte) error
	AppendDelete(key []byte) error
	ScanAll() (*Scanner, error)
	Close() error
}

// segmentFile is the part of *os.File the log writes through
type segmentFile interface {
	io.Writer
	io.Seeker
	Truncate(size int64) error
	Sync() error
	Close() error
}

// Log is a WAL backed by one segment file
type Log struct {
	dir    string
	path   string
	file   segmentFile
	config Config

	mu     sync.Mutex
	size   int64
	dirty  bool
	closed bool

	stopOnce sync.Once
	stopSync chan struct{}
	syncDone chan struct{}
}

var _ WAL = (*Log)(nil)

// Open opens the log in dir, creating the directory and an empty
// segment file if needed
func Open(dir string, config Config) (*Log, error) {
	// Ensure directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, SegmentFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat segment file: %w", err)
	}

	if config.SyncMode == SyncBatch && config.SyncInterval <= 0 {
		config.SyncInterval = DefaultConfig().SyncInterval
	}

	l := &Log{
		dir:    dir,
		path:   path,
		file:   file,
		config: config,
		size:   info.Size(),
	}
	if config.SyncMode == SyncBatch {
		l.stopSync = make(chan struct{})
		l.syncDone = make(chan struct{})
		go l.syncLoop()
	}
	return l, nil
}

// AppendPut appends a record setting key to value.
// An empty value is written as a delete marker (see EncodeRecord).
func (l *Log) AppendPut(key []byte, value []byte) error {
	return l.append(key, value)
}

// AppendDelete appends a delete marker for key
func (l *Log) AppendDelete(key []byte) error {
	return l.append(key, nil)
}

func (l *Log) append(key []byte, value []byte) error {
	if err := validateRecord(key, value); err != nil {
		return err
	}
	data := EncodeRecord(make([]byte, 0, encodedSize(key, value)), key, value)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}

	end, err := l.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	// One write per record so a failure leaves either nothing or a
	// prefix we can cut off
	n, err := l.file.Write(data)
	if err != nil {
		err = fmt.Errorf("failed to write record: %w", err)
		if n > 0 {
			return l.rollback(end, err)
		}
		return err
	}

	// a record that failed to sync must not come back on replay
	if l.config.SyncMode == SyncAlways {
		if err := l.file.Sync(); err != nil {
			return l.rollback(end, fmt.Errorf("failed to sync segment: %w", err))
		}
		l.size = end + int64(n)
		return nil
	}

	l.size = end + int64(n)
	l.dirty = true
	return nil
}

// rollback cuts the segment back to end after a failed append.
// Must be called with mu held.
func (l *Log) rollback(end int64, cause error) error {
	if err := l.file.Truncate(end); err != nil {
		return errors.Join(cause, fmt.Errorf("failed to truncate segment to %d: %w", end, err))
	}
	return cause
}

// ScanAll opens an independent read handle and returns a scanner
// positioned at the first record
func (l *Log) ScanAll() (*Scanner, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open segment for scan: %w", err)
	}
	return NewScanner(f), nil
}

// Sync forces appended records to stable storage
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	return l.sync()
}

func (l *Log) sync() error {
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync segment: %w", err)
	}
	l.dirty = false
	return nil
}

func (l *Log) syncLoop() {
	defer close(l.syncDone)
	ticker := time.NewTicker(l.config.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopSync:
			return
		case <-ticker.C:
			l.mu.Lock()
			if !l.closed && l.dirty {
				// nothing to report to; the next tick or Close retries
				_ = l.sync()
			}
			l.mu.Unlock()
		}
	}
}

// Path returns the path of the segment file
func (l *Log) Path() string {
	return l.path
}

// Size returns the current size of the segment file
func (l *Log) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// SyncMode returns the configured sync mode
func (l *Log) SyncMode() SyncMode {
	return l.config.SyncMode
}

// Close syncs and closes the segment file
func (l *Log) Close() error {
	if l.stopSync != nil {
		l.stopOnce.Do(func() {
			close(l.stopSync)
			<-l.syncDone
		})
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.dirty && l.config.SyncMode != SyncNone {
		if err := l.file.Sync(); err != nil {
			l.file.Close()
			return fmt.Errorf("failed to sync on close: %w", err)
		}
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close segment file: %w", err)
	}
	return nil
}

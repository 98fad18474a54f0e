package wal

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"mythkv/pkg/iterator"
	"mythkv/pkg/types"
)

// Scanner decodes records one at a time from the start of a log.
// It stops at a clean end of file, or at the first error, after which
// Next always returns false.
type Scanner struct {
	r      *bufio.Reader
	closer io.Closer

	rec *types.Record
	err error
	eof bool

	// position of the current record, and of the next one
	recordPos int64
	pos       int64
}

var _ iterator.Iterator[*types.Record] = (*Scanner)(nil)

// NewScanner returns a scanner reading records from r.
// If r is an io.Closer it's closed by Close.
func NewScanner(r io.Reader) *Scanner {
	s := &Scanner{
		r: bufio.NewReaderSize(r, 64*1024),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next decodes the next record
func (s *Scanner) Next() bool {
	if s.eof || s.err != nil {
		return false
	}

	s.recordPos = s.pos
	rec, err := s.readRecord()
	if err != nil {
		s.rec = nil
		if err == io.EOF {
			s.eof = true
			return false
		}
		s.err = err
		return false
	}
	s.rec = rec
	return true
}

func (s *Scanner) readRecord() (*types.Record, error) {
	// Read header
	var hdr [HeaderSize]byte
	n, err := io.ReadFull(s.r, hdr[:])
	s.pos += int64(n)
	if err != nil {
		if err == io.EOF {
			// no bytes at a record boundary
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, s.truncated("header", n, HeaderSize)
		}
		return nil, fmt.Errorf("failed to read header at offset %d: %w", s.recordPos, err)
	}

	keyLen, valueLen := decodeHeader(hdr[:])
	if keyLen == 0 {
		return nil, fmt.Errorf("%w: empty key at offset %d", ErrCorruptRecord, s.recordPos)
	}

	// Read key
	key, err := s.readN(int64(keyLen))
	if err != nil {
		return nil, s.bodyErr("key", len(key), int(keyLen), err)
	}

	if valueLen == 0 {
		return types.NewDeleteRecord(key), nil
	}

	// Read value
	value, err := s.readN(int64(valueLen))
	if err != nil {
		return nil, s.bodyErr("value", len(value), int(valueLen), err)
	}
	return types.NewPutRecord(key, value), nil
}

// readN reads exactly n bytes. The buffer grows with the data actually
// read so a corrupt length can't force a huge allocation up front.
func (s *Scanner) readN(n int64) ([]byte, error) {
	var buf bytes.Buffer
	if n <= 64*1024 {
		buf.Grow(int(n))
	}
	got, err := io.CopyN(&buf, s.r, n)
	s.pos += got
	if err != nil {
		return buf.Bytes(), err
	}
	return buf.Bytes(), nil
}

func (s *Scanner) bodyErr(what string, got int, want int, err error) error {
	if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
		return s.truncated(what, got, want)
	}
	return fmt.Errorf("failed to read %s at offset %d: %w", what, s.recordPos, err)
}

func (s *Scanner) truncated(what string, got int, want int) error {
	return fmt.Errorf("%w: %s at offset %d has %d of %d bytes: %w",
		ErrTruncatedRecord, what, s.recordPos, got, want, io.ErrUnexpectedEOF)
}

// Entry returns the record decoded by the last successful Next
func (s *Scanner) Entry() *types.Record {
	return s.rec
}

// Err returns the error that stopped the scan, nil after a clean end of file
func (s *Scanner) Err() error {
	return s.err
}

// Offset returns the byte offset of the current record
func (s *Scanner) Offset() int64 {
	return s.recordPos
}

// Close releases the underlying reader
func (s *Scanner) Close() error {
	s.rec = nil
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

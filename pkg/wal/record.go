package wal

import (
	"encoding/binary"
	"errors"
	"math"
)

// HeaderSize is the size of the fixed record header:
// [key_length:4][value_length:4], both little-endian
const HeaderSize = 8

var (
	// ErrEmptyKey is returned when appending a record without a key
	ErrEmptyKey = errors.New("wal: key must not be empty")

	// ErrRecordTooLarge is returned when a key or value does not fit a 32-bit length
	ErrRecordTooLarge = errors.New("wal: key or value exceeds 4GiB")

	// ErrClosed is returned by any operation on a closed log
	ErrClosed = errors.New("wal: log is closed")

	// ErrTruncatedRecord is returned by a scan that hits end of file inside a record
	ErrTruncatedRecord = errors.New("wal: truncated record")

	// ErrCorruptRecord is returned by a scan that decodes an impossible header
	ErrCorruptRecord = errors.New("wal: corrupt record")
)

// EncodeRecord appends the encoded record to dst and returns the extended slice.
//
// Layout:
// [key_length:4][value_length:4][key:key_length][value:value_length]
//
// A value_length of 0 marks a delete, so an empty value cannot be told
// apart from a tombstone once written.
func EncodeRecord(dst []byte, key []byte, value []byte) []byte {
	var hdr [HeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(key)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(value)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, key...)
	dst = append(dst, value...)
	return dst
}

// decodeHeader returns key and value lengths from a record header
func decodeHeader(hdr []byte) (keyLen uint32, valueLen uint32) {
	keyLen = binary.LittleEndian.Uint32(hdr[0:4])
	valueLen = binary.LittleEndian.Uint32(hdr[4:8])
	return keyLen, valueLen
}

func validateRecord(key []byte, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if uint64(len(key)) > math.MaxUint32 || uint64(len(value)) > math.MaxUint32 {
		return ErrRecordTooLarge
	}
	return nil
}

// encodedSize returns the number of bytes EncodeRecord writes
func encodedSize(key []byte, value []byte) int {
	return HeaderSize + len(key) + len(value)
}

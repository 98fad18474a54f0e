package types

// Record is a single journaled mutation as stored in the log.
// A record without a value is a delete marker.
type Record struct {
	Key       []byte
	Value     []byte
	Tombstone bool
}

// VersionedEntry is the latest known state of one key in the index
type VersionedEntry struct {
	Version   uint64
	Tombstone bool
	Value     []byte
}

// NewPutRecord creates a record that sets key to value
func NewPutRecord(key []byte, value []byte) *Record {
	return &Record{
		Key:       key,
		Value:     value,
		Tombstone: false,
	}
}

// NewDeleteRecord creates a delete marker record
func NewDeleteRecord(key []byte) *Record {
	return &Record{
		Key:       key,
		Value:     nil,
		Tombstone: true,
	}
}

// NewEntry creates a live entry at the given version
func NewEntry(version uint64, value []byte) *VersionedEntry {
	return &VersionedEntry{
		Version:   version,
		Tombstone: false,
		Value:     value,
	}
}

// NewTombstone creates a delete marker entry at the given version
func NewTombstone(version uint64) *VersionedEntry {
	return &VersionedEntry{
		Version:   version,
		Tombstone: true,
	}
}

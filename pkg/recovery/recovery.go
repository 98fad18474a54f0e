// Package recovery rebuilds the in-memory index from the log at startup.
//
// Records are applied strictly in file order, so for a key written more
// than once the last record in the file wins. Replay stops at the first
// scan error; the index is then partially built and must not be served.
package recovery

import (
	"fmt"

	"mythkv/pkg/index"
	"mythkv/pkg/wal"
)

// Source is a log that can be scanned from the beginning
type Source interface {
	ScanAll() (*wal.Scanner, error)
}

// Stats describes a replay
type Stats struct {
	Records int `json:"records"`
	Puts    int `json:"puts"`
	Deletes int `json:"deletes"`
}

// Rebuild applies every record of log to idx
func Rebuild(idx index.Index, log Source) (Stats, error) {
	var stats Stats

	scanner, err := log.ScanAll()
	if err != nil {
		return stats, fmt.Errorf("failed to scan log: %w", err)
	}
	defer scanner.Close()

	for scanner.Next() {
		rec := scanner.Entry()
		if rec.Tombstone {
			idx.Delete(rec.Key)
			stats.Deletes++
		} else {
			idx.Put(rec.Key, rec.Value)
			stats.Puts++
		}
		stats.Records++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to replay log after %d records: %w", stats.Records, err)
	}
	return stats, nil
}

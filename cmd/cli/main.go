package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kjk/common/u"
	"github.com/klauspost/compress/zstd"
	"github.com/tidwall/pretty"

	"mythkv/pkg/index"
	"mythkv/pkg/recovery"
	"mythkv/pkg/wal"
)

const usage = `usage:
  mythkv-cli dump <dir|segment|backup>       print every record
  mythkv-cli get <dir> <key>                  print the value of key
  mythkv-cli verify <dir>                     scan the log and print stats
  mythkv-cli backup <dir> <out.zst|out.br>    write a compressed copy of the log
`

func main() {
	if len(os.Args) < 3 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "dump":
		err = dump(args[0])
	case "get":
		if len(args) < 2 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		err = get(args[0], args[1])
	case "verify":
		err = verify(args[0])
	case "backup":
		if len(args) < 2 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		err = backup(args[0], args[1])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// segmentPath accepts a data directory or a segment file
func segmentPath(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, wal.SegmentFileName)
	}
	return path
}

type zstdReadCloser struct {
	f *os.File
	*zstd.Decoder
}

func (rc *zstdReadCloser) Close() error {
	rc.Decoder.Close()
	return rc.f.Close()
}

// openScanner reads a segment file or a compressed backup of one.
// .zst is decoded here, the extensions known to u (.zstd, .br, .gz, .bz2) by u.
func openScanner(path string) (*wal.Scanner, error) {
	path = segmentPath(path)
	if strings.ToLower(filepath.Ext(path)) != ".zst" {
		rc, err := u.OpenFileMaybeCompressed(path)
		if err != nil {
			return nil, err
		}
		return wal.NewScanner(rc), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return wal.NewScanner(&zstdReadCloser{f: f, Decoder: dec}), nil
}

func dump(path string) error {
	s, err := openScanner(path)
	if err != nil {
		return err
	}
	defer s.Close()
	for s.Next() {
		rec := s.Entry()
		if rec.Tombstone {
			fmt.Printf("%d del %q\n", s.Offset(), rec.Key)
			continue
		}
		fmt.Printf("%d put %q %d bytes\n", s.Offset(), rec.Key, len(rec.Value))
	}
	return s.Err()
}

// openLog opens an existing log without creating anything
func openLog(dir string) (*wal.Log, error) {
	if _, err := os.Stat(filepath.Join(dir, wal.SegmentFileName)); err != nil {
		return nil, err
	}
	return wal.Open(dir, wal.DefaultConfig())
}

func get(dir string, key string) error {
	l, err := openLog(dir)
	if err != nil {
		return err
	}
	defer l.Close()

	idx := index.New(index.Config{Shards: 1})
	if _, err := recovery.Rebuild(idx, l); err != nil {
		return err
	}
	v, ok := idx.Get([]byte(key))
	if !ok {
		return fmt.Errorf("key %q not found", key)
	}
	_, err = os.Stdout.Write(v)
	return err
}

type verifyResult struct {
	Path     string         `json:"path"`
	Size     int64          `json:"size"`
	Keys     int            `json:"keys"`
	Live     int            `json:"live"`
	Replay   recovery.Stats `json:"replay"`
	Error    string         `json:"error,omitempty"`
	ErrorPos int64          `json:"error_offset,omitempty"`
}

func verify(dir string) error {
	l, err := openLog(dir)
	if err != nil {
		return err
	}
	defer l.Close()

	idx := index.New(index.Config{Shards: 1})
	stats, rebuildErr := recovery.Rebuild(idx, l)
	res := verifyResult{
		Path:   l.Path(),
		Size:   l.Size(),
		Keys:   idx.Len(),
		Replay: stats,
	}
	if rebuildErr != nil {
		res.Error = rebuildErr.Error()
		res.ErrorPos = validPrefix(l.Path())
	}
	res.Live = countLive(l)

	d, err := json.Marshal(res)
	if err != nil {
		return err
	}
	if _, err := os.Stdout.Write(pretty.Pretty(d)); err != nil && rebuildErr == nil {
		return err
	}
	return rebuildErr
}

// validPrefix returns the offset just past the last complete record
func validPrefix(path string) int64 {
	s, err := openScanner(path)
	if err != nil {
		return 0
	}
	defer s.Close()
	var end int64
	for s.Next() {
		rec := s.Entry()
		end = s.Offset() + int64(wal.HeaderSize+len(rec.Key)+len(rec.Value))
	}
	return end
}

// countLive counts keys whose last record is a put
func countLive(l *wal.Log) int {
	s, err := l.ScanAll()
	if err != nil {
		return 0
	}
	defer s.Close()
	live := map[string]bool{}
	for s.Next() {
		rec := s.Entry()
		live[string(rec.Key)] = !rec.Tombstone
	}
	n := 0
	for _, ok := range live {
		if ok {
			n++
		}
	}
	return n
}

// backup compresses the segment into dst: brotli for .br, zstd otherwise
func backup(dir string, dst string) error {
	src := filepath.Join(dir, wal.SegmentFileName)
	var err error
	if strings.ToLower(filepath.Ext(dst)) == ".br" {
		err = u.BrCompressFileBest(dst, src)
	} else {
		err = u.ZstdCompressFile(dst, src)
	}
	if err != nil {
		return err
	}
	info, err := os.Stat(dst)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", dst, info.Size())
	return nil
}

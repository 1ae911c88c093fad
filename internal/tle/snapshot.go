package tle

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	snapshotPrefix = "catalog_"
	snapshotSuffix = ".msgpack.zst"
)

// Snapshots keeps the raw source texts of recent refreshes on disk so the catalog
// can be rebuilt without network access.
type Snapshots struct {
	dir      string
	maxFiles int
}

type snapshotDoc struct {
	FetchedAt time.Time    `msgpack:"fetched_at"`
	Sources   []SourceText `msgpack:"sources"`
}

// NewSnapshots stores files in dir and keeps at most maxFiles of them.
func NewSnapshots(dir string, maxFiles int) *Snapshots {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Snapshots{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Write saves texts as a zstd-compressed msgpack file named after ts, then prunes
// the oldest files beyond maxFiles.
func (s *Snapshots) Write(texts []SourceText, ts time.Time) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if err := msgpack.NewEncoder(zw).Encode(snapshotDoc{FetchedAt: ts.UTC(), Sources: texts}); err != nil {
		zw.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flushing snapshot: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s%d%s", snapshotPrefix, ts.Unix(), snapshotSuffix))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming snapshot: %w", err)
	}

	return s.prune()
}

// LoadLatest reads the newest snapshot. It returns the source texts and the time
// they were fetched.
func (s *Snapshots) LoadLatest() ([]SourceText, time.Time, error) {
	files, err := s.listFiles()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, fmt.Errorf("no snapshot files found in %s", s.dir)
	}

	// Sorted oldest first.
	latest := files[len(files)-1]
	return s.read(filepath.Join(s.dir, latest.name))
}

func (s *Snapshots) read(path string) ([]SourceText, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer zr.Close()

	var doc snapshotDoc
	if err := msgpack.NewDecoder(zr).Decode(&doc); err != nil {
		return nil, time.Time{}, fmt.Errorf("decoding snapshot %s: %w", filepath.Base(path), err)
	}
	return doc.Sources, doc.FetchedAt, nil
}

type snapshotFile struct {
	name string
	ts   time.Time
}

func (s *Snapshots) listFiles() ([]snapshotFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing snapshot dir: %w", err)
	}

	var files []snapshotFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		tsStr := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix)
		unix, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, snapshotFile{name: name, ts: time.Unix(unix, 0)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})
	return files, nil
}

func (s *Snapshots) prune() error {
	files, err := s.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= s.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-s.maxFiles] {
		if err := os.Remove(filepath.Join(s.dir, f.name)); err != nil {
			return fmt.Errorf("pruning snapshot %s: %w", f.name, err)
		}
	}
	return nil
}

// Package archive writes gzip-compressed CSV exports to a directory and keeps
// that directory bounded.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Ext is the suffix of every file the store writes.
const Ext = ".csv.gz"

// FillFunc streams content into w and reports how many rows it wrote.
type FillFunc func(w io.Writer) (uint64, error)

// Summary describes the contents of a directory.
type Summary struct {
	Dir    string `json:"dir"`
	Count  int    `json:"count"`
	Bytes  int64  `json:"bytes"`
	// Latest is the most recently modified entry.
	Latest string `json:"latest,omitempty"`
}

// Store manages compressed exports under one directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

// Write creates <dir>/<name>.csv.gz and fills it. An existing file is never
// overwritten; a numeric suffix is added instead. A file that received no rows
// is removed and an empty path returned.
func (s *Store) Write(name string, fill FillFunc) (string, uint64, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create %s: %w", s.dir, err)
	}
	f, path, err := s.create(name)
	if err != nil {
		return "", 0, err
	}

	zw := gzip.NewWriter(f)
	n, fillErr := fill(zw)
	closeErr := errors.Join(zw.Close(), f.Close())
	if err := errors.Join(fillErr, closeErr); err != nil {
		_ = os.Remove(path)
		return "", n, fmt.Errorf("write %s: %w", path, err)
	}
	if n == 0 {
		return "", 0, os.Remove(path)
	}
	return path, n, nil
}

func (s *Store) create(name string) (*os.File, string, error) {
	for i := 1; i < 1000; i++ {
		path := filepath.Join(s.dir, name+Ext)
		if i > 1 {
			path = filepath.Join(s.dir, fmt.Sprintf("%s-%d%s", name, i, Ext))
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("create %s: too many files named %s", s.dir, name)
}

// Summary counts the exports in the directory. A missing directory is empty.
func (s *Store) Summary() (Summary, error) {
	return summarize(s.dir, func(e fs.DirEntry) bool {
		return !e.IsDir() && strings.HasSuffix(e.Name(), Ext)
	})
}

// RemoveOlderThan deletes exports last modified before cutoff.
func (s *Store) RemoveOlderThan(cutoff time.Time) ([]string, error) {
	entries, err := readDir(s.dir)
	if err != nil {
		return nil, err
	}
	var removed []string
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}

// SummarizeSets reports the subdirectories of dir whose names start with
// prefix, with the byte total of every file inside them.
func SummarizeSets(dir, prefix string) (Summary, error) {
	return summarize(dir, func(e fs.DirEntry) bool {
		return e.IsDir() && strings.HasPrefix(e.Name(), prefix)
	})
}

// KeepNewestSets removes all but the newest keep subdirectories of dir whose
// names start with prefix. Names must sort chronologically.
func KeepNewestSets(dir, prefix string, keep int) ([]string, error) {
	names, err := matching(dir, func(e fs.DirEntry) bool {
		return e.IsDir() && strings.HasPrefix(e.Name(), prefix)
	})
	if err != nil || len(names) <= keep {
		return nil, err
	}
	var removed []string
	var errs []error
	for _, name := range names[:len(names)-keep] {
		path := filepath.Join(dir, name)
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}

func summarize(dir string, match func(fs.DirEntry) bool) (Summary, error) {
	sum := Summary{Dir: dir}
	names, err := matching(dir, match)
	if err != nil {
		return sum, err
	}
	var latest time.Time
	for _, name := range names {
		path := filepath.Join(dir, name)
		size, err := treeSize(path)
		if err != nil {
			return sum, err
		}
		sum.Bytes += size
		if info, err := os.Stat(path); err == nil && !info.ModTime().Before(latest) {
			latest = info.ModTime()
			sum.Latest = name
		}
	}
	sum.Count = len(names)
	return sum, nil
}

// matching returns entry names accepted by match, sorted ascending.
func matching(dir string, match func(fs.DirEntry) bool) ([]string, error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if match(e) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func readDir(dir string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	return entries, nil
}

func treeSize(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// Package store reads the evaluation results file store.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	apperrors "github.com/repeateval/repeat/internal/pkg/errors"
	"github.com/repeateval/repeat/internal/table"
)

// Storage is the interface for reading the results store.
type Storage interface {
	// Layout returns the path convention of the store.
	Layout() Layout

	// ReadTable decodes the CSV file at path. A missing file yields a
	// MissingMeasurementFile error.
	ReadTable(path string, opts table.DecodeOptions) (*table.Table, error)

	// Exists reports whether a regular file exists at path.
	Exists(path string) bool

	// IsDir reports whether a directory exists at path.
	IsDir(path string) bool

	// ListTgtIDs returns the sorted target ids with a table in dir.
	ListTgtIDs(dir string) ([]string, error)

	// ListCfgIDs returns the sorted parameter set ids with a directory
	// below dir.
	ListCfgIDs(dir string) ([]int, error)

	// Revision identifies the current content of the file at path. It
	// changes whenever the file is rewritten and is empty for a missing
	// file.
	Revision(path string) string
}

var (
	tgtFileRegex = regexp.MustCompile(`^(.+)-[a-zA-Z0-9]+\.csv$`)
	cfgDirRegex  = regexp.MustCompile(`^[0-9]+$`)
)

// FileStorage reads a store from the local file system.
type FileStorage struct {
	layout Layout
}

// NewFileStorage creates a file-based storage rooted at root.
func NewFileStorage(root string) *FileStorage {
	return &FileStorage{layout: NewLayout(root)}
}

// NewFileStorageWithLayout creates a file-based storage with a custom layout.
func NewFileStorageWithLayout(layout Layout) *FileStorage {
	return &FileStorage{layout: layout}
}

func (f *FileStorage) Layout() Layout {
	return f.layout
}

func (f *FileStorage) ReadTable(path string, opts table.DecodeOptions) (*table.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.MissingMeasurementFileError(path)
		}
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer file.Close()

	t, err := table.ReadCSV(file, opts)
	if err != nil {
		return nil, apperrors.MalformedTableError(path, err)
	}
	return t, nil
}

func (f *FileStorage) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (f *FileStorage) Revision(path string) string {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 36) + "." + strconv.FormatInt(info.Size(), 36)
}

func (f *FileStorage) IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (f *FileStorage) ListTgtIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := tgtFileRegex.FindStringSubmatch(entry.Name())
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		ids = append(ids, m[1])
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *FileStorage) ListCfgIDs(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var ids []int
	for _, entry := range entries {
		if !entry.IsDir() || !cfgDirRegex.MatchString(entry.Name()) {
			continue
		}
		n, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		ids = append(ids, n)
	}
	sort.Ints(ids)
	return ids, nil
}

// FirstExisting returns the first of paths naming a regular file.
func FirstExisting(s Storage, paths []string) (string, bool) {
	for _, p := range paths {
		if s.Exists(p) {
			return p, true
		}
	}
	return "", false
}

// Dirs returns every directory below the store's results, parameter and
// dataset trees, for file watching. Missing trees are skipped.
func (f *FileStorage) Dirs() ([]string, error) {
	var dirs []string
	for _, sub := range []string{ResultsDir, ParamsDir, DatasetsDir} {
		root := filepath.Join(f.layout.Root, sub)
		if !f.IsDir(root) {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				dirs = append(dirs, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return dirs, nil
}

// Package artifact writes and lists the CSV files passed between stages.
package artifact

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const tmpSuffix = ".tmp"

// WriteCSV writes header and the rows produced by fill to path. The file
// is written next to path and renamed into place, so readers never see a
// partial artifact. The parent directory is created if needed.
func WriteCSV(path string, header []string, fill func(w *csv.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + tmpSuffix
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	bw := bufio.NewWriterSize(f, 64*1024)
	w := csv.NewWriter(bw)
	err = w.Write(header)
	if err == nil {
		err = fill(w)
	}
	if err == nil {
		w.Flush()
		err = w.Error()
	}
	if err == nil {
		err = bw.Flush()
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Clean up
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// List returns the names of regular files in dir starting with prefix,
// sorted by name. Leftover temp files are skipped.
func List(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, tmpSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// BatchOf strips prefix from an artifact name, recovering the batch id.
func BatchOf(name, prefix string) string {
	return strings.TrimPrefix(name, prefix)
}

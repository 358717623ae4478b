// Package batch names and discovers the fixed-width grid-id partitions that
// every pipeline stage is keyed by.
package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrNoInput is returned when no model has any batch file.
	ErrNoInput = errors.New("no batch files found for any model")
)

const (
	filePrefix = "grids_"
	fileSuffix = ".csv"
)

// ID identifies one batch, e.g. "grids_1_160.csv". Start and End are zero
// when the name does not follow the grids_{start}_{end}.csv convention.
type ID struct {
	Name  string
	Start int64
	End   int64
}

func (id ID) String() string { return id.Name }

// Parse reads a batch identifier. Names outside the convention are still
// accepted as opaque identifiers; ok reports whether the range parsed.
func Parse(name string) (id ID, ok bool) {
	id = ID{Name: name}
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return id, false
	}
	core := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	parts := strings.Split(core, "_")
	if len(parts) != 2 {
		return id, false
	}
	start, err1 := strconv.ParseInt(parts[0], 10, 64)
	end, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil || start > end {
		return id, false
	}
	id.Start, id.End = start, end
	return id, true
}

// ForGrid returns the batch that holds gridID under a fixed batch width,
// with grid ids counted from 1.
func ForGrid(gridID int64, width int) ID {
	w := int64(width)
	group := (gridID - 1) / w
	if (gridID-1)%w != 0 && gridID < 1 {
		group-- // floor division
	}
	start := group*w + 1
	end := (group + 1) * w
	return ID{Name: fmt.Sprintf("%s%d_%d%s", filePrefix, start, end, fileSuffix), Start: start, End: end}
}

// Sort orders ids by grid range, with unparsed names after parsed ones in
// lexical order.
func Sort(ids []ID) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		aok, bok := a.Start != 0 || a.End != 0, b.Start != 0 || b.End != 0
		switch {
		case aok && bok:
			if a.Start != b.Start {
				return a.Start < b.Start
			}
			if a.End != b.End {
				return a.End < b.End
			}
			return a.Name < b.Name
		case aok != bok:
			return aok
		default:
			return a.Name < b.Name
		}
	})
}

// FileName is the raw file for one model's batch.
func FileName(model string, id ID) string {
	return model + "_" + id.Name
}

// Discover lists every batch identifier present for any model in dir. The
// result is de-duplicated and sorted; a model missing some batches does not
// hide them for the others.
func Discover(dir string, models []string, logger *zap.Logger) ([]ID, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source dir: %w", err)
	}

	seen := make(map[string]ID)
	for _, model := range models {
		prefix := model + "_"
		pattern := prefix + filePrefix + "*" + fileSuffix
		found := 0
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if matched, _ := filepath.Match(pattern, name); !matched {
				continue
			}
			suffix := strings.TrimPrefix(name, prefix)
			id, ok := Parse(suffix)
			if !ok {
				logger.Debug("batch name outside grid convention", zap.String("model", model), zap.String("file", name))
			}
			seen[suffix] = id
			found++
		}
		if found == 0 {
			logger.Warn("model has no batch files", zap.String("model", model), zap.String("dir", dir))
		} else {
			logger.Debug("model batches found", zap.String("model", model), zap.Int("count", found))
		}
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInput, dir)
	}

	ids := make([]ID, 0, len(seen))
	for _, id := range seen {
		ids = append(ids, id)
	}
	Sort(ids)

	logger.Info("batches discovered", zap.Int("count", len(ids)), zap.Int("models", len(models)))
	return ids, nil
}

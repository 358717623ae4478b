package merge

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strconv"

	"hydrofreq/internal/artifact"
	"hydrofreq/internal/record"
)

var coordColumns = []string{"Grid_ID", "Lon", "Lat"}

// Table is a frequency table: one row per grid with one count column per
// threshold. It is the format both STAT artifacts and the final scenario
// table share.
type Table struct {
	Thresholds []string
	Rows       []record.BatchFrequencyRecord
}

// Header returns the CSV header of t.
func (t *Table) Header() []string {
	return append(append([]string(nil), coordColumns...), t.Thresholds...)
}

// GridIDs returns the grid ids of t in row order.
func (t *Table) GridIDs() []int64 {
	ids := make([]int64, len(t.Rows))
	for i, r := range t.Rows {
		ids[i] = r.GridID
	}
	return ids
}

// SortByGrid stably orders rows by ascending grid id.
func (t *Table) SortByGrid() {
	sort.SliceStable(t.Rows, func(i, j int) bool { return t.Rows[i].GridID < t.Rows[j].GridID })
}

// ReadTable parses a frequency table written by this module.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	if len(header) < len(coordColumns) || !slices.Equal(header[:len(coordColumns)], coordColumns) {
		return nil, fmt.Errorf("%s: unexpected header %v", path, header)
	}
	t := &Table{Thresholds: append([]string(nil), header[len(coordColumns):]...)}

	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		row, err := parseRow(fields, len(t.Thresholds))
		if err != nil {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func parseRow(fields []string, n int) (record.BatchFrequencyRecord, error) {
	grid := record.ParseInt(fields[0])
	if !grid.Valid {
		return record.BatchFrequencyRecord{}, fmt.Errorf("invalid grid id %q", fields[0])
	}
	row := record.BatchFrequencyRecord{
		GridID: grid.Value,
		Lon:    record.ParseFloat(fields[1]),
		Lat:    record.ParseFloat(fields[2]),
		Counts: make([]int, n),
	}
	for i := 0; i < n; i++ {
		c, err := strconv.Atoi(fields[3+i])
		if err != nil {
			return record.BatchFrequencyRecord{}, fmt.Errorf("invalid count %q", fields[3+i])
		}
		row.Counts[i] = c
	}
	return row, nil
}

// WriteTable writes t atomically.
func WriteTable(path string, t *Table) error {
	return artifact.WriteCSV(path, t.Header(), func(w *csv.Writer) error {
		line := make([]string, len(coordColumns)+len(t.Thresholds))
		for _, r := range t.Rows {
			line[0] = strconv.FormatInt(r.GridID, 10)
			line[1] = record.FormatFloat(r.Lon)
			line[2] = record.FormatFloat(r.Lat)
			for j := range t.Thresholds {
				line[3+j] = strconv.Itoa(r.Counts[j])
			}
			if err := w.Write(line); err != nil {
				return err
			}
		}
		return nil
	})
}

// Package diagnose compares a complete frequency table against one with
// gaps and names the batches that must be regenerated.
package diagnose

import (
	"fmt"
	"sort"

	"hydrofreq/internal/batch"
	"hydrofreq/internal/merge"

	"go.uber.org/zap"
)

// Report is the result of a coverage check.
type Report struct {
	Reference string
	Candidate string

	ReferenceGrids int
	CandidateGrids int

	// Missing lists grid ids present in the reference only, ascending.
	Missing []int64
	// Batches lists the batches holding the missing grids.
	Batches []batch.ID
}

// Complete reports whether the candidate covers every reference grid.
func (r *Report) Complete() bool { return len(r.Missing) == 0 }

// Compare loads both tables and reports grids the candidate lacks, mapped
// to batches of the given width.
func Compare(referencePath, candidatePath string, width int, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if width < 1 {
		return nil, fmt.Errorf("batch width must be >= 1, got %d", width)
	}

	ref, err := merge.ReadTable(referencePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference table: %w", err)
	}
	cand, err := merge.ReadTable(candidatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate table: %w", err)
	}

	r := Diff(ref.GridIDs(), cand.GridIDs(), width)
	r.Reference = referencePath
	r.Candidate = candidatePath

	logger.Info("coverage compared",
		zap.Int("reference_grids", r.ReferenceGrids),
		zap.Int("candidate_grids", r.CandidateGrids),
		zap.Int("missing", len(r.Missing)),
		zap.Int("batches", len(r.Batches)))
	return r, nil
}

// Diff computes the set difference reference - candidate over grid ids.
func Diff(reference, candidate []int64, width int) *Report {
	have := make(map[int64]struct{}, len(candidate))
	for _, g := range candidate {
		have[g] = struct{}{}
	}

	refSet := make(map[int64]struct{}, len(reference))
	var missing []int64
	for _, g := range reference {
		if _, dup := refSet[g]; dup {
			continue
		}
		refSet[g] = struct{}{}
		if _, ok := have[g]; !ok {
			missing = append(missing, g)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })

	seen := make(map[string]bool)
	var batches []batch.ID
	for _, g := range missing {
		id := batch.ForGrid(g, width)
		if !seen[id.Name] {
			seen[id.Name] = true
			batches = append(batches, id)
		}
	}
	batch.Sort(batches)

	return &Report{
		ReferenceGrids: len(refSet),
		CandidateGrids: len(have),
		Missing:        missing,
		Batches:        batches,
	}
}

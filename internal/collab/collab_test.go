package collab

import (
	"context"
	"testing"

	"hydrofreq/internal/merge"
	"hydrofreq/internal/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bboxFilter is a rectangular stand-in for a polygon filter.
type bboxFilter struct {
	minLon, maxLon, minLat, maxLat float64
}

var _ BoundaryFilter = bboxFilter{}

func (b bboxFilter) Filter(_ context.Context, t *merge.Table) (*merge.Table, error) {
	out := &merge.Table{Thresholds: t.Thresholds}
	for _, r := range t.Rows {
		if !r.Lon.Valid || !r.Lat.Valid {
			continue
		}
		if r.Lon.Value >= b.minLon && r.Lon.Value <= b.maxLon && r.Lat.Value >= b.minLat && r.Lat.Value <= b.maxLat {
			out.Rows = append(out.Rows, r)
		}
	}
	return out, nil
}

// deltaCalculator joins on grid id, keeping grids present in all three.
type deltaCalculator struct{}

var _ AttributionCalculator = deltaCalculator{}

func (deltaCalculator) Attribute(_ context.Context, s ScenarioSet) (*Attribution, error) {
	index := func(t *merge.Table) map[int64]record.BatchFrequencyRecord {
		m := make(map[int64]record.BatchFrequencyRecord, len(t.Rows))
		for _, r := range t.Rows {
			m[r.GridID] = r
		}
		return m
	}
	hist, obs := index(s.Counterfactual), index(s.Observed)

	a := &Attribution{Thresholds: s.Baseline.Thresholds}
	for _, base := range s.Baseline.Rows {
		h, ok1 := hist[base.GridID]
		o, ok2 := obs[base.GridID]
		if !ok1 || !ok2 {
			continue
		}
		row := AttributionRow{GridID: base.GridID, Lon: base.Lon, Lat: base.Lat}
		for i := range a.Thresholds {
			row.HumanActivity = append(row.HumanActivity, float64(h.Counts[i]-base.Counts[i]))
			row.ClimateChange = append(row.ClimateChange, float64(o.Counts[i]-h.Counts[i]))
		}
		a.Rows = append(a.Rows, row)
	}
	return a, nil
}

func table(rows ...record.BatchFrequencyRecord) *merge.Table {
	return &merge.Table{Thresholds: []string{"Drought_1.0"}, Rows: rows}
}

func row(grid int64, lon, lat float64, count int) record.BatchFrequencyRecord {
	return record.BatchFrequencyRecord{GridID: grid, Lon: record.SomeFloat(lon), Lat: record.SomeFloat(lat), Counts: []int{count}}
}

func TestCollaboratorsComposeOverTable(t *testing.T) {
	ctx := context.Background()
	var filter BoundaryFilter = bboxFilter{minLon: 70, maxLon: 140, minLat: 15, maxLat: 55}

	base, err := filter.Filter(ctx, table(row(1, 100, 30, 2), row(2, 10, 50, 9)))
	require.NoError(t, err)
	require.Len(t, base.Rows, 1)

	var calc AttributionCalculator = deltaCalculator{}
	a, err := calc.Attribute(ctx, ScenarioSet{
		Baseline:       base,
		Counterfactual: table(row(1, 100, 30, 5)),
		Observed:       table(row(1, 100, 30, 4)),
	})
	require.NoError(t, err)
	require.Len(t, a.Rows, 1)
	assert.Equal(t, []float64{3}, a.Rows[0].HumanActivity)
	assert.Equal(t, []float64{-1}, a.Rows[0].ClimateChange)
}

// Package collab declares the downstream consumers of a scenario's final
// frequency table. hydrofreq does not implement them; external tools plug
// in through these interfaces.
package collab

import (
	"context"
	"io"

	"hydrofreq/internal/merge"
	"hydrofreq/internal/record"
)

// BoundaryFilter keeps the rows whose (Lon, Lat) lies inside a region,
// e.g. a national boundary polygon.
type BoundaryFilter interface {
	Filter(ctx context.Context, t *merge.Table) (*merge.Table, error)
}

// ScenarioSet holds the three forcing tables an attribution compares.
type ScenarioSet struct {
	Baseline       *merge.Table // fixed 1901 society, counterfactual climate
	Counterfactual *merge.Table // historical society, counterfactual climate
	Observed       *merge.Table // historical society, observed climate
}

// AttributionRow holds per-threshold deltas for one grid.
// HumanActivity is Counterfactual - Baseline; ClimateChange is
// Observed - Counterfactual.
type AttributionRow struct {
	GridID        int64
	Lon           record.Float
	Lat           record.Float
	HumanActivity []float64
	ClimateChange []float64
}

// Attribution is the per-grid delta table, aligned with Thresholds.
type Attribution struct {
	Thresholds []string
	Rows       []AttributionRow
}

// AttributionCalculator joins the scenario tables by grid id and derives
// the deltas.
type AttributionCalculator interface {
	Attribute(ctx context.Context, s ScenarioSet) (*Attribution, error)
}

// Plotter renders one delta column of an attribution.
type Plotter interface {
	Plot(ctx context.Context, a *Attribution, column string, w io.Writer) error
}

package frequency

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"hydrofreq/internal/config"
	"hydrofreq/internal/means"
	"hydrofreq/internal/record"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults(t *testing.T) []Threshold {
	t.Helper()
	ts, err := Compile(config.DefaultThresholds())
	require.NoError(t, err)
	return ts
}

func rec(grid int64, lon, lat float64, date string, sci record.Float) record.GridRecord {
	return record.GridRecord{GridID: record.SomeInt(grid), Lon: record.SomeFloat(lon), Lat: record.SomeFloat(lat), Date: date, SCI: sci}
}

func TestThreshold_Match(t *testing.T) {
	tests := []struct {
		op   string
		v    record.Float
		want bool
	}{
		{"le", record.SomeFloat(-1.0), true},
		{"lt", record.SomeFloat(-1.0), false},
		{"ge", record.SomeFloat(-1.0), true},
		{"gt", record.SomeFloat(-0.5), true},
		{"le", record.Float{}, false},
		{"ge", record.Float{}, false},
	}
	for _, tt := range tests {
		th := Threshold{Name: "x", Op: tt.op, Value: -1.0}
		assert.Equal(t, tt.want, th.Match(tt.v), "%s %v", th, tt.v)
	}
}

func TestCompile_Rejects(t *testing.T) {
	_, err := Compile(nil)
	assert.Error(t, err)

	_, err = Compile([]config.ThresholdConfig{{Name: "a", Op: "le"}, {Name: "a", Op: "ge"}})
	assert.Error(t, err)

	_, err = Compile([]config.ThresholdConfig{{Name: "a", Op: "eq"}})
	assert.Error(t, err)
}

func TestAggregate_EndToEndCounts(t *testing.T) {
	recs := []record.GridRecord{rec(1, 10, 20, "2000-01", record.SomeFloat(-1.0))}

	got, skipped := Aggregate(recs, defaults(t))
	assert.Zero(t, skipped)

	want := []record.BatchFrequencyRecord{{
		GridID: 1, Lon: record.SomeFloat(10), Lat: record.SomeFloat(20),
		Counts: []int{1, 0, 0, 0},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frequency mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_FirstSeenCoordinatesAndMissing(t *testing.T) {
	recs := []record.GridRecord{
		{GridID: record.SomeInt(5), Date: "2000-01", SCI: record.SomeFloat(2.0)},
		rec(5, 1.25, 2.5, "2000-02", record.SomeFloat(-2.0)),
		rec(5, 9.0, 9.0, "2000-03", record.Float{}),
		rec(3, 0.5, 0.5, "2000-01", record.SomeFloat(1.2)),
		{Lon: record.SomeFloat(1), Lat: record.SomeFloat(1), Date: "2000-01", SCI: record.SomeFloat(-9)},
	}

	got, skipped := Aggregate(recs, defaults(t))
	assert.Equal(t, 1, skipped)
	require.Len(t, got, 2)

	assert.Equal(t, int64(3), got[0].GridID)
	assert.Equal(t, []int{0, 0, 1, 0}, got[0].Counts)

	assert.Equal(t, int64(5), got[1].GridID)
	assert.Equal(t, record.SomeFloat(1.25), got[1].Lon)
	assert.Equal(t, record.SomeFloat(2.5), got[1].Lat)
	assert.Equal(t, []int{1, 1, 1, 1}, got[1].Counts)
}

func TestAggregate_Monotonic(t *testing.T) {
	var recs []record.GridRecord
	for i, v := range []float64{-3, -1.6, -1.5, -1.2, -1.0, -0.99, 0, 0.99, 1.0, 1.49, 1.5, 4} {
		recs = append(recs, rec(int64(i%3+1), 0, 0, "d", record.SomeFloat(v)))
	}
	got, _ := Aggregate(recs, defaults(t))
	for _, g := range got {
		assert.LessOrEqual(t, g.Counts[1], g.Counts[0], "Drought_1.5 <= Drought_1.0 for grid %d", g.GridID)
		assert.LessOrEqual(t, g.Counts[3], g.Counts[2], "Flood_1.5 <= Flood_1.0 for grid %d", g.GridID)
	}
}

func newAggregator(t *testing.T) (*Aggregator, *config.Config, config.ScenarioConfig) {
	t.Helper()
	cfg := config.DefaultConfig()
	sc := config.ScenarioConfig{Name: "test", SourceDir: t.TempDir()}
	a, err := NewAggregator(cfg, sc, nil)
	require.NoError(t, err)
	return a, cfg, sc
}

func writeMeans(t *testing.T, dir, batchName string, rows []record.BatchMeanRecord) {
	t.Helper()
	require.NoError(t, means.Write(filepath.Join(dir, means.FilePrefix+batchName), rows))
}

func TestRun_WritesStatArtifacts(t *testing.T) {
	a, cfg, sc := newAggregator(t)
	meansDir := cfg.MeansDir(sc)

	writeMeans(t, meansDir, "grids_1_160.csv", []record.BatchMeanRecord{
		{MeanKey: record.MeanKey{GridID: 2, Lon: 1, Lat: 2, Date: "2000-01"}, MeanSCI: record.SomeFloat(1.7)},
		{MeanKey: record.MeanKey{GridID: 1, Lon: 10, Lat: 20, Date: "2000-01"}, MeanSCI: record.SomeFloat(-1.0)},
	})
	require.NoError(t, os.WriteFile(filepath.Join(meansDir, means.FilePrefix+"grids_161_320.csv"), []byte("not,a,mean,file\n"), 0644))

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)
	assert.True(t, report.Outcomes[0].OK())
	assert.False(t, report.Outcomes[1].OK())
	assert.Equal(t, "grids_1_160.csv", report.Outcomes[0].Batch)
	assert.Equal(t, "grids_161_320.csv", report.Outcomes[1].Batch)

	statPath := filepath.Join(cfg.StatsDir(sc), FilePrefix+"grids_1_160.csv")
	first, err := os.ReadFile(statPath)
	require.NoError(t, err)
	assert.Equal(t,
		"Grid_ID,Lon,Lat,Drought_1.0,Drought_1.5,Flood_1.0,Flood_1.5\n"+
			"1,10.000000,20.000000,1,0,0,0\n"+
			"2,1.000000,2.000000,0,0,1,1\n",
		string(first))

	_, err = os.Stat(filepath.Join(cfg.StatsDir(sc), FilePrefix+"grids_161_320.csv"))
	assert.True(t, os.IsNotExist(err))

	// Re-running yields byte-identical output.
	_, err = a.Run(context.Background())
	require.NoError(t, err)
	second, err := os.ReadFile(statPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRun_NoMeansDir(t *testing.T) {
	a, _, _ := newAggregator(t)
	_, err := a.Run(context.Background())
	assert.Error(t, err)
}

func TestRun_Cancelled(t *testing.T) {
	a, cfg, sc := newAggregator(t)
	writeMeans(t, cfg.MeansDir(sc), "grids_1_160.csv", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

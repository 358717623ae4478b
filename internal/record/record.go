// Package record defines the row types that flow between pipeline stages.
package record

import (
	"math"
	"strconv"
	"strings"
)

// Float is a float64 cell that may be missing.
type Float struct {
	Value float64
	Valid bool
}

// Int is an int64 cell that may be missing.
type Int struct {
	Value int64
	Valid bool
}

// SomeFloat returns a present Float.
func SomeFloat(v float64) Float { return Float{Value: v, Valid: true} }

// SomeInt returns a present Int.
func SomeInt(v int64) Int { return Int{Value: v, Valid: true} }

// GridRecord is one recovered row of a raw model batch file.
type GridRecord struct {
	GridID Int
	Lon    Float
	Lat    Float
	Date   string
	SCI    Float
}

// MeanKey identifies one spatial-temporal cell within a batch.
type MeanKey struct {
	GridID int64
	Lon    float64
	Lat    float64
	Date   string
}

// Key returns the grouping key for r. Lon and Lat are rounded to
// FloatDecimals so keys stay distinct once persisted. ok is false when any
// key component is missing; such records do not take part in grouping.
func (r GridRecord) Key() (MeanKey, bool) {
	if !r.GridID.Valid || !r.Lon.Valid || !r.Lat.Valid || r.Date == "" {
		return MeanKey{}, false
	}
	return MeanKey{GridID: r.GridID.Value, Lon: Round(r.Lon.Value), Lat: Round(r.Lat.Value), Date: r.Date}, true
}

// Round returns v as it reads back after FormatFloat.
func Round(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', FloatDecimals, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// Less orders keys by grid id, then lon, lat and date.
func (k MeanKey) Less(o MeanKey) bool {
	if k.GridID != o.GridID {
		return k.GridID < o.GridID
	}
	if k.Lon != o.Lon {
		return k.Lon < o.Lon
	}
	if k.Lat != o.Lat {
		return k.Lat < o.Lat
	}
	return k.Date < o.Date
}

// BatchMeanRecord is the ensemble mean for one key.
type BatchMeanRecord struct {
	MeanKey
	MeanSCI Float
}

// BatchFrequencyRecord holds per-threshold event counts for one grid.
// Counts is aligned with the threshold set used to produce it.
type BatchFrequencyRecord struct {
	GridID int64
	Lon    Float
	Lat    Float
	Counts []int
}

// FloatDecimals is the fixed-point precision of persisted floats.
const FloatDecimals = 6

// FormatFloat renders a cell with fixed 6-decimal precision; missing
// cells render empty.
func FormatFloat(f Float) string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.Value, 'f', FloatDecimals, 64)
}

// FormatInt renders an integer cell; missing cells render empty.
func FormatInt(i Int) string {
	if !i.Valid {
		return ""
	}
	return strconv.FormatInt(i.Value, 10)
}

// ParseFloat coerces text into a Float. Text that is empty, a missing
// marker or not a number yields a missing cell.
func ParseFloat(s string) Float {
	s = strings.TrimSpace(s)
	if IsMissingMarker(s) {
		return Float{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return Float{}
	}
	return SomeFloat(v)
}

// ParseInt coerces text into an Int. Integral float spellings such as
// "12.0" are accepted.
func ParseInt(s string) Int {
	s = strings.TrimSpace(s)
	if IsMissingMarker(s) {
		return Int{}
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return SomeInt(v)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return Int{}
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return Int{}
	}
	return SomeInt(int64(f))
}

// IsMissingMarker reports whether trimmed text spells a missing value.
func IsMissingMarker(s string) bool {
	switch strings.ToLower(s) {
	case "", "na", "nan", "n/a", "null", "none":
		return true
	}
	return false
}

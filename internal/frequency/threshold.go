package frequency

import (
	"fmt"

	"hydrofreq/internal/config"
	"hydrofreq/internal/record"
)

// Threshold is a compiled event predicate over the mean index.
type Threshold struct {
	Name  string
	Op    string
	Value float64
}

// Match reports whether v satisfies the threshold. Missing values never
// match.
func (t Threshold) Match(v record.Float) bool {
	if !v.Valid {
		return false
	}
	switch t.Op {
	case "le":
		return v.Value <= t.Value
	case "lt":
		return v.Value < t.Value
	case "ge":
		return v.Value >= t.Value
	case "gt":
		return v.Value > t.Value
	}
	return false
}

func (t Threshold) String() string {
	return fmt.Sprintf("%s(%s %g)", t.Name, t.Op, t.Value)
}

// Compile validates threshold configs and keeps their order, which is
// also the column order of STAT artifacts.
func Compile(cfgs []config.ThresholdConfig) ([]Threshold, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no thresholds configured")
	}
	seen := make(map[string]bool, len(cfgs))
	out := make([]Threshold, 0, len(cfgs))
	for _, c := range cfgs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate threshold %s", c.Name)
		}
		seen[c.Name] = true
		out = append(out, Threshold{Name: c.Name, Op: c.Op, Value: c.Value})
	}
	return out, nil
}

// Header is the STAT artifact column layout for ts.
func Header(ts []Threshold) []string {
	h := []string{"Grid_ID", "Lon", "Lat"}
	for _, t := range ts {
		h = append(h, t.Name)
	}
	return h
}

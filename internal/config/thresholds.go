package config

import "fmt"

// ThresholdConfig is one named event predicate over the mean index:
// `Mean_SCI <op> value`.
type ThresholdConfig struct {
	Name  string  `yaml:"name"`
	Op    string  `yaml:"op"` // le, lt, ge, gt
	Value float64 `yaml:"value"`
}

// ValidOps lists the supported comparison operators.
var ValidOps = []string{"le", "lt", "ge", "gt"}

// Validate checks the threshold fields.
func (t ThresholdConfig) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("threshold name is empty")
	}
	switch t.Name {
	case "Grid_ID", "Lon", "Lat":
		return fmt.Errorf("threshold name %s collides with a coordinate column", t.Name)
	}
	if !containsString(ValidOps, t.Op) {
		return fmt.Errorf("threshold %s: invalid op %q (valid: %v)", t.Name, t.Op, ValidOps)
	}
	return nil
}

// DefaultThresholds returns the drought and flood thresholds.
func DefaultThresholds() []ThresholdConfig {
	return []ThresholdConfig{
		{Name: "Drought_1.0", Op: "le", Value: -1.0},
		{Name: "Drought_1.5", Op: "le", Value: -1.5},
		{Name: "Flood_1.0", Op: "ge", Value: 1.0},
		{Name: "Flood_1.5", Op: "ge", Value: 1.5},
	}
}

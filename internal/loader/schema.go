package loader

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchema is returned for a column list the loader cannot map.
	ErrSchema = errors.New("invalid schema")
	// ErrHeaderMismatch is returned when a file header disagrees with the schema.
	ErrHeaderMismatch = errors.New("header does not match schema")
)

// Role says which record field a column fills.
type Role int

const (
	RoleIgnore Role = iota
	RoleGridID
	RoleLon
	RoleLat
	RoleDate
	RoleValue
)

// Column is one positional field of an input file.
type Column struct {
	Name     string
	Role     Role
	Numeric  bool // coerced even when not retained
	Required bool // must be mapped for the schema to be usable
}

// Retained reports whether the column lands in a GridRecord.
func (c Column) Retained() bool { return c.Role != RoleIgnore }

// Schema is the ordered column list for one file kind.
type Schema struct {
	Columns []Column
}

// Names lists the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

var keyRoles = map[string]Role{
	"Grid_ID": RoleGridID,
	"Lon":     RoleLon,
	"Lat":     RoleLat,
	"Date":    RoleDate,
}

// numericPassthrough columns are coerced for recovery accounting but not
// kept.
var numericPassthrough = map[string]bool{
	"Qtot": true,
}

// NewSchema maps a column list onto record fields. valueColumn names the
// index column (SCI for raw files, Mean_SCI for batch means). The four key
// columns and the value column must be present exactly once.
func NewSchema(names []string, valueColumn string) (Schema, error) {
	var s Schema
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			return Schema{}, fmt.Errorf("%w: empty column name", ErrSchema)
		}
		if seen[name] {
			return Schema{}, fmt.Errorf("%w: duplicate column %q", ErrSchema, name)
		}
		seen[name] = true

		col := Column{Name: name}
		switch {
		case keyRoles[name] != RoleIgnore:
			col.Role = keyRoles[name]
			col.Numeric = col.Role != RoleDate
			col.Required = true
		case name == valueColumn:
			col.Role = RoleValue
			col.Numeric = true
		default:
			col.Numeric = numericPassthrough[name]
		}
		s.Columns = append(s.Columns, col)
	}

	for key := range keyRoles {
		if !seen[key] {
			return Schema{}, fmt.Errorf("%w: missing column %s", ErrSchema, key)
		}
	}
	if !seen[valueColumn] {
		return Schema{}, fmt.Errorf("%w: missing value column %s", ErrSchema, valueColumn)
	}
	return s, nil
}

// RawColumns is the positional layout of raw model batch files.
var RawColumns = []string{"Grid_ID", "Lon", "Lat", "Date", "Qtot", "SCI"}

// MeanColumns is the header of batch-mean artifacts.
var MeanColumns = []string{"Grid_ID", "Lon", "Lat", "Date", "Mean_SCI"}

// RawSchema returns the default raw file schema.
func RawSchema() Schema {
	s, _ := NewSchema(RawColumns, "SCI")
	return s
}

// MeanSchema returns the batch-mean artifact schema.
func MeanSchema() Schema {
	s, _ := NewSchema(MeanColumns, "Mean_SCI")
	return s
}

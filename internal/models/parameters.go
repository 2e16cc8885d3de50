package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"
)

// NumericFeatureCount is the number of leading non-categorical slots in a
// feature vector: total square feet, bathrooms and bedrooms.
const NumericFeatureCount = 3

// ParameterDescriptor describes the feature space the model was trained on.
// Columns is the ordered list of known locations and defines the one-hot
// index space. Prefix is the number of numeric slots preceding it.
type ParameterDescriptor struct {
	Columns []string `json:"columns"`
	Prefix  int      `json:"prefix"`
}

// FeatureVector is a single model input row.
type FeatureVector []float64

// Width returns the feature vector length implied by the descriptor.
func (p ParameterDescriptor) Width() int {
	return p.Prefix + len(p.Columns)
}

// IndexOf returns the position of location in Columns, or -1.
func (p ParameterDescriptor) IndexOf(location string) int {
	for i, col := range p.Columns {
		if col == location {
			return i
		}
	}
	return -1
}

// Validate checks the descriptor shape. Columns must be non-empty and
// distinct, and Prefix must match NumericFeatureCount.
func (p ParameterDescriptor) Validate() error {
	if p.Prefix != NumericFeatureCount {
		return fmt.Errorf("prefix must be %d, got %d", NumericFeatureCount, p.Prefix)
	}
	if len(p.Columns) == 0 {
		return fmt.Errorf("columns must not be empty")
	}

	seen := make(map[string]struct{}, len(p.Columns))
	for i, col := range p.Columns {
		if col == "" {
			return fmt.Errorf("column %d is empty", i)
		}
		if _, dup := seen[col]; dup {
			return fmt.Errorf("duplicate column %q", col)
		}
		seen[col] = struct{}{}
	}
	return nil
}

// Scan implements sql.Scanner so a descriptor can be read straight from a
// jsonb column.
func (p *ParameterDescriptor) Scan(value interface{}) error {
	if value == nil {
		return fmt.Errorf("failed to scan ParameterDescriptor: value is NULL")
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan ParameterDescriptor: expected []byte, got %T", value)
	}

	if err := json.Unmarshal(raw, p); err != nil {
		return fmt.Errorf("failed to unmarshal parameter descriptor: %w", err)
	}
	return nil
}

// Value implements driver.Valuer for writing the descriptor as JSON.
func (p ParameterDescriptor) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameter descriptor: %w", err)
	}
	return data, nil
}

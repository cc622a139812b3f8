package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Figure is a numeric field exactly as it was entered.
// It decodes from either a string or a number in JSON and YAML.
type Figure string

// FigureOf formats a float as a Figure.
func FigureOf(value float64) Figure {
	return Figure(strconv.FormatFloat(value, 'f', -1, 64))
}

// IsBlank reports whether the figure holds no text.
func (f Figure) IsBlank() bool {
	return strings.TrimSpace(string(f)) == ""
}

// Float parses the figure. NaN and infinities are rejected.
func (f Figure) Float() (float64, error) {
	raw := strings.TrimSpace(string(f))
	if raw == "" {
		return 0, ErrEmptyFigure
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotANumber, raw)
	}
	return value, nil
}

// UnmarshalJSON accepts "12.5", 12.5 and null.
func (f *Figure) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Figure(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("billing: figure must be a string or number: %w", err)
	}
	*f = Figure(n.String())
	return nil
}

// UnmarshalYAML accepts any scalar node.
func (f *Figure) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("billing: figure must be a scalar at line %d", node.Line)
	}
	if node.Tag == "!!null" {
		*f = ""
		return nil
	}
	*f = Figure(node.Value)
	return nil
}

// FiguresOf formats a slice of floats.
func FiguresOf(values []float64) []Figure {
	if values == nil {
		return nil
	}
	out := make([]Figure, len(values))
	for i, v := range values {
		out[i] = FigureOf(v)
	}
	return out
}

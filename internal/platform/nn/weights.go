package nn

import (
	"encoding/json"
	"fmt"
	"os"
)

// LinearParams is the on-disk JSON form of a Linear layer.
// Weight holds one row per output.
type LinearParams struct {
	Weight [][]float32 `json:"weight"`
	Bias   []float32   `json:"bias"`
}

// LoadLinear reads a JSON parameter file and builds a Linear stage from it.
func LoadLinear(name, path string) (*Linear, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights %s: %w", path, err)
	}
	var p LinearParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to parse weights %s: %w", path, err)
	}
	return p.Linear(name)
}

// Linear flattens the parameters into a Linear stage.
func (p LinearParams) Linear(name string) (*Linear, error) {
	if len(p.Weight) == 0 {
		return nil, fmt.Errorf("%s: no weight rows", name)
	}
	in := len(p.Weight[0])
	flat := make([]float32, 0, in*len(p.Weight))
	for k, row := range p.Weight {
		if len(row) != in {
			return nil, fmt.Errorf("%s: row %d has %d values, want %d", name, k, len(row), in)
		}
		flat = append(flat, row...)
	}
	return NewLinear(name, in, len(p.Weight), flat, p.Bias)
}

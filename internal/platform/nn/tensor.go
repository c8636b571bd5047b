// Package nn provides a small staged network graph used to run a classifier and to
// extract intermediate activations and gradients for a single pass.
//
// Tensors never carry a batch dimension; stages that talk to an external runtime
// add and remove it themselves.
package nn

import (
	"fmt"
	"slices"
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zero-filled tensor of the given shape.
func NewTensor(shape ...int) *Tensor {
	return &Tensor{Shape: slices.Clone(shape), Data: make([]float32, numel(shape))}
}

// FromData wraps data with the given shape. The length of data must match the shape.
func FromData(data []float32, shape ...int) (*Tensor, error) {
	if n := numel(shape); n != len(data) {
		return nil, fmt.Errorf("shape %v needs %d values, got %d", shape, n, len(data))
	}
	return &Tensor{Shape: slices.Clone(shape), Data: data}, nil
}

// Len returns the number of elements.
func (t *Tensor) Len() int { return len(t.Data) }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}

// CHW returns the channel, height and width of a rank-3 tensor.
func (t *Tensor) CHW() (c, h, w int, err error) {
	if len(t.Shape) != 3 {
		return 0, 0, 0, fmt.Errorf("expected (C,H,W) tensor, got shape %v", t.Shape)
	}
	return t.Shape[0], t.Shape[1], t.Shape[2], nil
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// isSpatial reports whether shape is (C,H,W) with a non-trivial spatial extent.
func isSpatial(shape []int) bool {
	return len(shape) == 3 && shape[1]*shape[2] > 1
}

func sameShape(a, b []int) bool { return slices.Equal(a, b) }

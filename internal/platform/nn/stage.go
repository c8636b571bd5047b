package nn

import (
	"context"
	"errors"
)

var (
	// ErrNoSpatialLayer is returned when a graph has no stage producing a (C,H,W) feature map.
	ErrNoSpatialLayer = errors.New("graph has no spatial feature layer")

	// ErrNotDifferentiable is returned when a gradient has to flow through a forward-only stage.
	ErrNotDifferentiable = errors.New("stage does not support backward pass")

	// ErrUnknownStage is returned when a stage name is not part of the graph.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrCaptureSpent is returned when a capture is asked to run a second pass.
	ErrCaptureSpent = errors.New("capture already used for a pass")

	// ErrCaptureDetached is returned when a detached capture is used.
	ErrCaptureDetached = errors.New("capture detached")
)

// Stage is one named step of a Graph.
type Stage interface {
	// Name identifies the stage inside its graph.
	Name() string
	// OutputShape returns the shape produced for an input of the given shape.
	OutputShape(in []int) ([]int, error)
	// Forward computes the stage output. Implementations must not retain in.
	Forward(ctx context.Context, in *Tensor) (*Tensor, error)
}

// Differentiable is implemented by stages that can propagate a gradient back to their input.
// Backward must be a pure function of its arguments so concurrent passes never share state.
type Differentiable interface {
	Stage
	Backward(in, out, gradOut *Tensor) (*Tensor, error)
}

// Elementwise marks activation stages. They keep the shape of their input and are never
// chosen as an explanation layer.
type Elementwise interface {
	Elementwise()
}

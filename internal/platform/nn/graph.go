package nn

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
)

// Graph is an ordered chain of stages with shapes resolved at construction time.
// A Graph holds no per-pass state and is safe for concurrent use as long as its stages are.
type Graph struct {
	inputShape []int
	stages     []Stage
	shapes     [][]int
	index      map[string]int
	active     atomic.Int64
}

// NewGraph wires the stages in order and checks that their shapes line up.
func NewGraph(inputShape []int, stages ...Stage) (*Graph, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("graph needs at least one stage")
	}
	g := &Graph{
		inputShape: slices.Clone(inputShape),
		stages:     stages,
		shapes:     make([][]int, len(stages)),
		index:      make(map[string]int, len(stages)),
	}
	shape := g.inputShape
	for i, s := range stages {
		if _, dup := g.index[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate stage name %q", s.Name())
		}
		g.index[s.Name()] = i
		out, err := s.OutputShape(shape)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", s.Name(), err)
		}
		g.shapes[i] = slices.Clone(out)
		shape = out
	}
	return g, nil
}

// InputShape returns the expected input shape.
func (g *Graph) InputShape() []int { return slices.Clone(g.inputShape) }

// OutputShape returns the shape produced by the last stage.
func (g *Graph) OutputShape() []int { return slices.Clone(g.shapes[len(g.shapes)-1]) }

// StageShape returns the output shape of the named stage.
func (g *Graph) StageShape(name string) ([]int, error) {
	i, ok := g.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	return slices.Clone(g.shapes[i]), nil
}

// Forward runs inference without retaining intermediate tensors.
func (g *Graph) Forward(ctx context.Context, x *Tensor) (*Tensor, error) {
	if err := g.checkInput(x); err != nil {
		return nil, err
	}
	out := x
	for _, s := range g.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := s.Forward(ctx, out)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", s.Name(), err)
		}
		out = next
	}
	return out, nil
}

// ExplanationLayer returns the last non-elementwise stage producing a spatial feature map.
// Every stage after it must be differentiable.
func (g *Graph) ExplanationLayer() (string, error) {
	for i := len(g.stages) - 1; i >= 0; i-- {
		if _, ok := g.stages[i].(Elementwise); ok {
			continue
		}
		if !isSpatial(g.shapes[i]) {
			continue
		}
		if err := g.checkTail(i); err != nil {
			return "", err
		}
		return g.stages[i].Name(), nil
	}
	return "", ErrNoSpatialLayer
}

// Attach installs a capture point on the named stage. The returned Capture must be detached.
func (g *Graph) Attach(layer string) (*Capture, error) {
	i, ok := g.index[layer]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, layer)
	}
	if err := g.checkTail(i); err != nil {
		return nil, err
	}
	g.active.Add(1)
	return &Capture{graph: g, layer: i}, nil
}

// ActiveCaptures reports how many captures are currently attached.
func (g *Graph) ActiveCaptures() int { return int(g.active.Load()) }

func (g *Graph) checkTail(i int) error {
	for _, s := range g.stages[i+1:] {
		if _, ok := s.(Differentiable); !ok {
			return fmt.Errorf("%w: %q", ErrNotDifferentiable, s.Name())
		}
	}
	return nil
}

func (g *Graph) checkInput(x *Tensor) error {
	if x == nil {
		return fmt.Errorf("nil input")
	}
	if !sameShape(x.Shape, g.inputShape) {
		return fmt.Errorf("input shape %v, want %v", x.Shape, g.inputShape)
	}
	if x.Len() != numel(x.Shape) {
		return fmt.Errorf("input has %d values for shape %v", x.Len(), x.Shape)
	}
	return nil
}

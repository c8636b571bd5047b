package nn

import (
	"context"
	"fmt"
	"sync"
)

// Capture extracts the activation of one stage and the gradient flowing back into it
// for exactly one forward and backward pass. All pass state lives in the Capture, so
// captures on the same Graph never interfere with each other.
type Capture struct {
	graph *Graph
	layer int

	used       bool
	detached   bool
	detachOnce sync.Once

	activation *Tensor
	gradient   *Tensor
	output     *Tensor
	tailIn     []*Tensor
	tailOut    []*Tensor
}

// Layer returns the name of the captured stage.
func (c *Capture) Layer() string { return c.graph.stages[c.layer].Name() }

// Forward runs the pass, recording the captured activation and what the backward pass needs.
func (c *Capture) Forward(ctx context.Context, x *Tensor) (*Tensor, error) {
	if c.detached {
		return nil, ErrCaptureDetached
	}
	if c.used {
		return nil, ErrCaptureSpent
	}
	c.used = true
	if err := c.graph.checkInput(x); err != nil {
		return nil, err
	}

	tail := len(c.graph.stages) - c.layer - 1
	c.tailIn = make([]*Tensor, 0, tail)
	c.tailOut = make([]*Tensor, 0, tail)

	out := x
	for i, s := range c.graph.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > c.layer {
			c.tailIn = append(c.tailIn, out)
		}
		next, err := s.Forward(ctx, out)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", s.Name(), err)
		}
		if i == c.layer {
			c.activation = next
		}
		if i > c.layer {
			c.tailOut = append(c.tailOut, next)
		}
		out = next
	}
	c.output = out
	return out, nil
}

// Backward differentiates output element outputIndex with respect to the captured activation.
func (c *Capture) Backward(outputIndex int) error {
	if c.detached {
		return ErrCaptureDetached
	}
	if c.output == nil {
		return fmt.Errorf("backward called before forward")
	}
	if c.gradient != nil {
		return ErrCaptureSpent
	}
	if outputIndex < 0 || outputIndex >= c.output.Len() {
		return fmt.Errorf("output index %d out of range [0,%d)", outputIndex, c.output.Len())
	}

	grad := NewTensor(c.output.Shape...)
	grad.Data[outputIndex] = 1
	for i := len(c.tailIn) - 1; i >= 0; i-- {
		s := c.graph.stages[c.layer+1+i].(Differentiable)
		g, err := s.Backward(c.tailIn[i], c.tailOut[i], grad)
		if err != nil {
			return fmt.Errorf("stage %q backward: %w", s.Name(), err)
		}
		grad = g
	}
	c.gradient = grad
	return nil
}

// Activation returns the captured forward activation, or nil before Forward.
func (c *Capture) Activation() *Tensor { return c.activation }

// Gradient returns the captured gradient, or nil before Backward.
func (c *Capture) Gradient() *Tensor { return c.gradient }

// Detach drops every recorded tensor and removes the capture from its graph.
// It is safe to call more than once.
func (c *Capture) Detach() {
	c.detachOnce.Do(func() {
		c.detached = true
		c.activation = nil
		c.gradient = nil
		c.output = nil
		c.tailIn = nil
		c.tailOut = nil
		c.graph.active.Add(-1)
	})
}

// WithCapture attaches a capture on layer, runs fn and detaches on every exit path.
func WithCapture(g *Graph, layer string, fn func(c *Capture) error) error {
	c, err := g.Attach(layer)
	if err != nil {
		return err
	}
	defer c.Detach()
	return fn(c)
}

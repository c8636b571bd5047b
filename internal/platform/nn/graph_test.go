package nn

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// opaqueStage is a forward-only stage standing in for an external runtime.
type opaqueStage struct {
	name string
}

func (o *opaqueStage) Name() string                        { return o.name }
func (o *opaqueStage) OutputShape(in []int) ([]int, error) { return in, nil }
func (o *opaqueStage) Forward(_ context.Context, in *Tensor) (*Tensor, error) {
	return in.Clone(), nil
}

// smallGraph: (2,4,4) -> features (2,2,2) -> relu -> pool (2) -> classifier (3).
func smallGraph(t *testing.T) *Graph {
	t.Helper()
	lin, err := NewLinear("classifier", 2, 3, []float32{1, 0, 0, 1, -1, -1}, nil)
	require.NoError(t, err)
	g, err := NewGraph([]int{2, 4, 4},
		NewAvgPool2D("features", 2),
		NewReLU("relu"),
		NewGlobalAvgPool("pool"),
		lin,
	)
	require.NoError(t, err)
	return g
}

func TestNewGraph_ShapeErrors(t *testing.T) {
	_, err := NewGraph([]int{2, 3, 3}, NewAvgPool2D("features", 2))
	assert.Error(t, err, "kernel does not tile the input")

	_, err = NewGraph([]int{2, 4, 4}, NewReLU("a"), NewReLU("a"))
	assert.Error(t, err, "duplicate names")

	_, err = NewGraph([]int{2})
	assert.Error(t, err, "no stages")
}

func TestGraph_Forward(t *testing.T) {
	g := smallGraph(t)
	x := NewTensor(2, 4, 4)
	for i := range x.Data[:16] {
		x.Data[i] = 2
	}
	out, err := g.Forward(context.Background(), x)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, out.Shape)
	assert.InDeltaSlice(t, []float32{2, 0, -2}, out.Data, 1e-6)

	_, err = g.Forward(context.Background(), NewTensor(1, 4, 4))
	assert.Error(t, err, "wrong input shape")
}

func TestGraph_ExplanationLayer(t *testing.T) {
	lin, err := NewLinear("fc", 4, 2, make([]float32, 8), nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		build   func() (*Graph, error)
		want    string
		wantErr error
	}{
		{
			name: "skips elementwise stage after features",
			build: func() (*Graph, error) {
				return smallGraph(t), nil
			},
			want: "features",
		},
		{
			name: "no spatial stage",
			build: func() (*Graph, error) {
				return NewGraph([]int{4}, lin)
			},
			wantErr: ErrNoSpatialLayer,
		},
		{
			name: "forward-only stage after features",
			build: func() (*Graph, error) {
				return NewGraph([]int{1, 4, 4}, NewAvgPool2D("features", 2), NewGlobalAvgPool("pool"), &opaqueStage{name: "opaque"})
			},
			wantErr: ErrNotDifferentiable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := tt.build()
			require.NoError(t, err)
			got, err := g.ExplanationLayer()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCapture_ActivationAndGradient(t *testing.T) {
	g := smallGraph(t)
	x := NewTensor(2, 4, 4)
	for i := range x.Data {
		x.Data[i] = float32(i%3) - 0.5
	}

	c, err := g.Attach("features")
	require.NoError(t, err)
	assert.Equal(t, 1, g.ActiveCaptures())

	_, err = c.Forward(context.Background(), x)
	require.NoError(t, err)
	require.NoError(t, c.Backward(0))

	act := c.Activation()
	grad := c.Gradient()
	require.NotNil(t, act)
	require.NotNil(t, grad)
	assert.Equal(t, []int{2, 2, 2}, act.Shape)
	assert.Equal(t, act.Shape, grad.Shape)

	// d logit0 / d features = W[0][c]/4 where the ReLU is open, zero elsewhere.
	for i, v := range act.Data {
		ch := i / 4
		want := float32(0)
		if ch == 0 && v > 0 {
			want = 0.25
		}
		assert.InDelta(t, want, grad.Data[i], 1e-6, "index %d", i)
	}

	c.Detach()
	c.Detach()
	assert.Equal(t, 0, g.ActiveCaptures())
	assert.Nil(t, c.Activation())
	assert.Nil(t, c.Gradient())
	assert.ErrorIs(t, c.Backward(0), ErrCaptureDetached)
}

func TestCapture_SinglePass(t *testing.T) {
	g := smallGraph(t)
	c, err := g.Attach("features")
	require.NoError(t, err)
	defer c.Detach()

	_, err = c.Forward(context.Background(), NewTensor(2, 4, 4))
	require.NoError(t, err)
	_, err = c.Forward(context.Background(), NewTensor(2, 4, 4))
	assert.ErrorIs(t, err, ErrCaptureSpent)

	require.NoError(t, c.Backward(1))
	assert.ErrorIs(t, c.Backward(1), ErrCaptureSpent)
}

func TestCapture_BackwardOutOfRange(t *testing.T) {
	g := smallGraph(t)
	c, err := g.Attach("features")
	require.NoError(t, err)
	defer c.Detach()

	assert.Error(t, c.Backward(0), "backward before forward")
	_, err = c.Forward(context.Background(), NewTensor(2, 4, 4))
	require.NoError(t, err)
	assert.Error(t, c.Backward(3))
	assert.Error(t, c.Backward(-1))
}

func TestGraph_AttachUnknownStage(t *testing.T) {
	g := smallGraph(t)
	_, err := g.Attach("missing")
	assert.ErrorIs(t, err, ErrUnknownStage)
	assert.Equal(t, 0, g.ActiveCaptures())
}

func TestWithCapture_DetachesOnError(t *testing.T) {
	g := smallGraph(t)
	boom := errors.New("boom")

	err := WithCapture(g, "features", func(c *Capture) error {
		assert.Equal(t, 1, g.ActiveCaptures())
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, g.ActiveCaptures())

	assert.Panics(t, func() {
		_ = WithCapture(g, "features", func(c *Capture) error { panic("stage exploded") })
	})
	assert.Equal(t, 0, g.ActiveCaptures())
}

func TestCapture_ConcurrentPassesAreIndependent(t *testing.T) {
	g := smallGraph(t)
	x := NewTensor(2, 4, 4)
	for i := range x.Data {
		x.Data[i] = float32(i) / 8
	}

	var wg sync.WaitGroup
	grads := make([][]float32, 3)
	for k := 0; k < 3; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			err := WithCapture(g, "features", func(c *Capture) error {
				if _, err := c.Forward(context.Background(), x); err != nil {
					return err
				}
				if err := c.Backward(k); err != nil {
					return err
				}
				grads[k] = c.Gradient().Clone().Data
				return nil
			})
			assert.NoError(t, err)
		}(k)
	}
	wg.Wait()

	assert.Equal(t, 0, g.ActiveCaptures())
	assert.NotEqual(t, grads[0], grads[1])
	assert.NotEqual(t, grads[1], grads[2])
}

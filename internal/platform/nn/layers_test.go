package nn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// numericGrad estimates d(sum(w*out))/d(in) with central differences.
func numericGrad(t *testing.T, s Stage, in *Tensor, weights []float32) []float32 {
	t.Helper()
	const eps = 1e-2
	grad := make([]float32, in.Len())
	for i := range in.Data {
		plus := in.Clone()
		plus.Data[i] += eps
		minus := in.Clone()
		minus.Data[i] -= eps
		op, err := s.Forward(context.Background(), plus)
		require.NoError(t, err)
		om, err := s.Forward(context.Background(), minus)
		require.NoError(t, err)
		var diff float64
		for j := range op.Data {
			diff += float64(weights[j]) * float64(op.Data[j]-om.Data[j])
		}
		grad[i] = float32(diff / (2 * eps))
	}
	return grad
}

func ramp(shape ...int) *Tensor {
	t := NewTensor(shape...)
	for i := range t.Data {
		t.Data[i] = float32(i%7)*0.5 - 1.25
	}
	return t
}

func TestStages_BackwardMatchesFiniteDifference(t *testing.T) {
	lin, err := NewLinear("fc", 4, 2, []float32{1, -2, 0.5, 3, -1, 0.25, 2, -0.5}, []float32{0, 1})
	require.NoError(t, err)

	tests := []struct {
		name  string
		stage Differentiable
		in    *Tensor
	}{
		{name: "avgpool", stage: NewAvgPool2D("pool", 2), in: ramp(2, 4, 4)},
		{name: "global avg pool", stage: NewGlobalAvgPool("gap"), in: ramp(3, 2, 2)},
		{name: "linear", stage: lin, in: ramp(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.stage.Forward(context.Background(), tt.in)
			require.NoError(t, err)

			weights := make([]float32, out.Len())
			for i := range weights {
				weights[i] = float32(i+1) * 0.5
			}
			gradOut, err := FromData(weights, out.Shape...)
			require.NoError(t, err)

			got, err := tt.stage.Backward(tt.in, out, gradOut)
			require.NoError(t, err)
			want := numericGrad(t, tt.stage, tt.in, weights)
			assert.InDeltaSlice(t, want, got.Data, 1e-3)
		})
	}
}

func TestReLU_ForwardBackward(t *testing.T) {
	r := NewReLU("relu")
	in, err := FromData([]float32{-1, 0, 2, -3}, 4)
	require.NoError(t, err)

	out, err := r.Forward(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 2, 0}, out.Data)
	out.Data[2] = 9
	assert.Equal(t, float32(2), in.Data[2], "forward returns its own buffer")

	g, err := r.Backward(in, out, &Tensor{Shape: []int{4}, Data: []float32{1, 1, 1, 1}})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1, 0}, g.Data)
	assert.Equal(t, []float32{-1, 0, 2, -3}, in.Data, "input must not be modified")
}

func TestNewLinear_RejectsBadSizes(t *testing.T) {
	_, err := NewLinear("fc", 2, 2, []float32{1, 2, 3}, nil)
	assert.Error(t, err)

	_, err = NewLinear("fc", 2, 2, []float32{1, 2, 3, 4}, []float32{1})
	assert.Error(t, err)

	l, err := NewLinear("fc", 2, 2, []float32{1, 2, 3, 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0}, l.Bias)
}

func TestLinearParams_Linear(t *testing.T) {
	p := LinearParams{Weight: [][]float32{{1, 2}, {3, 4}, {5, 6}}, Bias: []float32{0, 0, 1}}
	l, err := p.Linear("classifier")
	require.NoError(t, err)
	assert.Equal(t, 2, l.In)
	assert.Equal(t, 3, l.Out)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, l.Weight)

	_, err = LinearParams{Weight: [][]float32{{1, 2}, {3}}}.Linear("bad")
	assert.Error(t, err)
}

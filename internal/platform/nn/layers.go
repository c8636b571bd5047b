package nn

import (
	"context"
	"fmt"
)

// ReLU clamps negative values to zero.
type ReLU struct {
	name string
}

// NewReLU returns a ReLU stage.
func NewReLU(name string) *ReLU { return &ReLU{name: name} }

func (r *ReLU) Name() string { return r.name }

func (r *ReLU) Elementwise() {}

func (r *ReLU) OutputShape(in []int) ([]int, error) { return in, nil }

func (r *ReLU) Forward(_ context.Context, in *Tensor) (*Tensor, error) {
	out := in.Clone()
	for i, v := range out.Data {
		if v < 0 {
			out.Data[i] = 0
		}
	}
	return out, nil
}

func (r *ReLU) Backward(in, _, gradOut *Tensor) (*Tensor, error) {
	if !sameShape(in.Shape, gradOut.Shape) {
		return nil, fmt.Errorf("%s: gradient shape %v does not match input %v", r.name, gradOut.Shape, in.Shape)
	}
	g := gradOut.Clone()
	for i, v := range in.Data {
		if v <= 0 {
			g.Data[i] = 0
		}
	}
	return g, nil
}

// GlobalAvgPool averages each channel of a (C,H,W) tensor into a (C) vector.
type GlobalAvgPool struct {
	name string
}

// NewGlobalAvgPool returns a global average pooling stage.
func NewGlobalAvgPool(name string) *GlobalAvgPool { return &GlobalAvgPool{name: name} }

func (p *GlobalAvgPool) Name() string { return p.name }

func (p *GlobalAvgPool) OutputShape(in []int) ([]int, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("%s: expected (C,H,W) input, got %v", p.name, in)
	}
	return []int{in[0]}, nil
}

func (p *GlobalAvgPool) Forward(_ context.Context, in *Tensor) (*Tensor, error) {
	c, h, w, err := in.CHW()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	hw := h * w
	out := NewTensor(c)
	for ch := 0; ch < c; ch++ {
		var sum float64
		for _, v := range in.Data[ch*hw : (ch+1)*hw] {
			sum += float64(v)
		}
		out.Data[ch] = float32(sum / float64(hw))
	}
	return out, nil
}

func (p *GlobalAvgPool) Backward(in, _, gradOut *Tensor) (*Tensor, error) {
	c, h, w, err := in.CHW()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	if gradOut.Len() != c {
		return nil, fmt.Errorf("%s: gradient has %d values, want %d", p.name, gradOut.Len(), c)
	}
	hw := h * w
	g := NewTensor(in.Shape...)
	for ch := 0; ch < c; ch++ {
		v := gradOut.Data[ch] / float32(hw)
		for i := ch * hw; i < (ch+1)*hw; i++ {
			g.Data[i] = v
		}
	}
	return g, nil
}

// Linear is a fully connected layer: out[k] = sum_c W[k][c]*in[c] + b[k].
// Weight is stored row-major with Out rows of In columns.
type Linear struct {
	name   string
	In     int
	Out    int
	Weight []float32
	Bias   []float32
}

// NewLinear validates the parameter sizes and returns a Linear stage.
func NewLinear(name string, in, out int, weight, bias []float32) (*Linear, error) {
	if len(weight) != in*out {
		return nil, fmt.Errorf("%s: weight has %d values, want %d", name, len(weight), in*out)
	}
	if bias == nil {
		bias = make([]float32, out)
	}
	if len(bias) != out {
		return nil, fmt.Errorf("%s: bias has %d values, want %d", name, len(bias), out)
	}
	return &Linear{name: name, In: in, Out: out, Weight: weight, Bias: bias}, nil
}

func (l *Linear) Name() string { return l.name }

func (l *Linear) OutputShape(in []int) ([]int, error) {
	if numel(in) != l.In {
		return nil, fmt.Errorf("%s: expected %d inputs, got shape %v", l.name, l.In, in)
	}
	return []int{l.Out}, nil
}

func (l *Linear) Forward(_ context.Context, in *Tensor) (*Tensor, error) {
	if in.Len() != l.In {
		return nil, fmt.Errorf("%s: expected %d inputs, got %d", l.name, l.In, in.Len())
	}
	out := NewTensor(l.Out)
	for k := 0; k < l.Out; k++ {
		row := l.Weight[k*l.In : (k+1)*l.In]
		sum := float64(l.Bias[k])
		for c, v := range in.Data {
			sum += float64(row[c]) * float64(v)
		}
		out.Data[k] = float32(sum)
	}
	return out, nil
}

func (l *Linear) Backward(in, _, gradOut *Tensor) (*Tensor, error) {
	if gradOut.Len() != l.Out {
		return nil, fmt.Errorf("%s: gradient has %d values, want %d", l.name, gradOut.Len(), l.Out)
	}
	g := NewTensor(in.Shape...)
	for k, gk := range gradOut.Data {
		if gk == 0 {
			continue
		}
		row := l.Weight[k*l.In : (k+1)*l.In]
		for c := range g.Data {
			g.Data[c] += row[c] * gk
		}
	}
	return g, nil
}

// AvgPool2D averages non-overlapping Kernel x Kernel windows of a (C,H,W) tensor.
// H and W must be divisible by Kernel.
type AvgPool2D struct {
	name   string
	Kernel int
}

// NewAvgPool2D returns an average pooling stage.
func NewAvgPool2D(name string, kernel int) *AvgPool2D {
	return &AvgPool2D{name: name, Kernel: kernel}
}

func (p *AvgPool2D) Name() string { return p.name }

func (p *AvgPool2D) OutputShape(in []int) ([]int, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("%s: expected (C,H,W) input, got %v", p.name, in)
	}
	if p.Kernel <= 0 || in[1]%p.Kernel != 0 || in[2]%p.Kernel != 0 {
		return nil, fmt.Errorf("%s: kernel %d does not tile %dx%d", p.name, p.Kernel, in[1], in[2])
	}
	return []int{in[0], in[1] / p.Kernel, in[2] / p.Kernel}, nil
}

func (p *AvgPool2D) Forward(_ context.Context, in *Tensor) (*Tensor, error) {
	shape, err := p.OutputShape(in.Shape)
	if err != nil {
		return nil, err
	}
	c, h, w := in.Shape[0], in.Shape[1], in.Shape[2]
	oh, ow := shape[1], shape[2]
	k := p.Kernel
	area := float64(k * k)
	out := NewTensor(shape...)
	for ch := 0; ch < c; ch++ {
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				var sum float64
				for dy := 0; dy < k; dy++ {
					base := ch*h*w + (oy*k+dy)*w + ox*k
					for dx := 0; dx < k; dx++ {
						sum += float64(in.Data[base+dx])
					}
				}
				out.Data[ch*oh*ow+oy*ow+ox] = float32(sum / area)
			}
		}
	}
	return out, nil
}

func (p *AvgPool2D) Backward(in, out, gradOut *Tensor) (*Tensor, error) {
	if !sameShape(out.Shape, gradOut.Shape) {
		return nil, fmt.Errorf("%s: gradient shape %v does not match output %v", p.name, gradOut.Shape, out.Shape)
	}
	c, h, w := in.Shape[0], in.Shape[1], in.Shape[2]
	oh, ow := out.Shape[1], out.Shape[2]
	k := p.Kernel
	area := float32(k * k)
	g := NewTensor(in.Shape...)
	for ch := 0; ch < c; ch++ {
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				v := gradOut.Data[ch*oh*ow+oy*ow+ox] / area
				for dy := 0; dy < k; dy++ {
					base := ch*h*w + (oy*k+dy)*w + ox*k
					for dx := 0; dx < k; dx++ {
						g.Data[base+dx] = v
					}
				}
			}
		}
	}
	return g, nil
}

var (
	_ Differentiable = (*ReLU)(nil)
	_ Differentiable = (*GlobalAvgPool)(nil)
	_ Differentiable = (*Linear)(nil)
	_ Differentiable = (*AvgPool2D)(nil)
	_ Elementwise    = (*ReLU)(nil)
)

// Package gradcam は勾配重み付きクラス活性化マップ（Grad-CAM）を計算します。
package gradcam

import (
	"context"
	"errors"
	"fmt"

	"xray_backend/internal/feature/xray/domain"
	"xray_backend/internal/feature/xray/domain/entity"
	"xray_backend/internal/feature/xray/usecase"
	"xray_backend/internal/platform/nn"
)

// epsilon は正規化時のゼロ除算を防ぐ微小値です。
const epsilon = 1e-12

// Engine は分類器と同じグラフ上でGrad-CAMを計算します。
// 呼び出しごとに独立したキャプチャを使うため、並行に呼び出せます。
type Engine struct {
	graph  *nn.Graph
	labels entity.LabelSet
	layer  string
}

// Engineがusecase.Explainerを実装していることをコンパイル時に検証します。
var _ usecase.Explainer = (*Engine)(nil)

// NewEngine はEngineを生成します。layer が空の場合は最後の空間特徴マップ層を自動選択します。
func NewEngine(graph *nn.Graph, labels entity.LabelSet, layer string) *Engine {
	return &Engine{graph: graph, labels: labels, layer: layer}
}

// Layer は説明に使用する層名を返します。
func (e *Engine) Layer() (string, error) {
	if e.layer == "" {
		name, err := e.graph.ExplanationLayer()
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedArchitecture, err)
		}
		return name, nil
	}
	shape, err := e.graph.StageShape(e.layer)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedArchitecture, err)
	}
	if len(shape) != 3 {
		return "", fmt.Errorf("%w: layer %q output %v is not a feature map", domain.ErrUnsupportedArchitecture, e.layer, shape)
	}
	return e.layer, nil
}

// Explain は labelIndex のラベルについて、width x height の [0,1] に正規化されたマップを返します。
// ラベルの検証は順伝播の前に行います。
func (e *Engine) Explain(ctx context.Context, x *nn.Tensor, labelIndex, width, height int) (*entity.SaliencyMap, error) {
	if labelIndex < 0 || labelIndex >= len(e.labels) {
		return nil, fmt.Errorf("%w: %d (labels: %d)", domain.ErrInvalidLabelIndex, labelIndex, len(e.labels))
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", width, height)
	}
	layer, err := e.Layer()
	if err != nil {
		return nil, err
	}

	var (
		cam    []float64
		fw, fh int
	)
	err = nn.WithCapture(e.graph, layer, func(c *nn.Capture) error {
		if _, err := c.Forward(ctx, x); err != nil {
			return err
		}
		// シグモイド前のロジットを微分対象とします。
		if err := c.Backward(e.labels[labelIndex].OutputIndex); err != nil {
			return err
		}
		var werr error
		cam, fh, fw, werr = weightedActivation(c.Activation(), c.Gradient())
		return werr
	})
	if err != nil {
		if errors.Is(err, nn.ErrNotDifferentiable) || errors.Is(err, nn.ErrUnknownStage) {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedArchitecture, err)
		}
		return nil, fmt.Errorf("grad-cam pass failed: %w", err)
	}

	values := upsampleBilinear(cam, fw, fh, width, height)
	normalize(values)
	return &entity.SaliencyMap{Width: width, Height: height, Values: values}, nil
}

// weightedActivation はチャンネルごとの平均勾配で活性化を重み付けして合計し、ReLUを適用します。
func weightedActivation(act, grad *nn.Tensor) ([]float64, int, int, error) {
	if act == nil || grad == nil {
		return nil, 0, 0, fmt.Errorf("capture produced no activation or gradient")
	}
	c, h, w, err := act.CHW()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", domain.ErrUnsupportedArchitecture, err)
	}
	if grad.Len() != act.Len() {
		return nil, 0, 0, fmt.Errorf("gradient has %d values, activation has %d", grad.Len(), act.Len())
	}

	plane := h * w
	cam := make([]float64, plane)
	for ch := 0; ch < c; ch++ {
		g := grad.Data[ch*plane : (ch+1)*plane]
		var alpha float64
		for _, v := range g {
			alpha += float64(v)
		}
		alpha /= float64(plane)
		if alpha == 0 {
			continue
		}
		a := act.Data[ch*plane : (ch+1)*plane]
		for i, v := range a {
			cam[i] += alpha * float64(v)
		}
	}
	for i, v := range cam {
		if v < 0 {
			cam[i] = 0
		}
	}
	return cam, h, w, nil
}

// upsampleBilinear はピクセル中心を揃えた双線形補間で src を dstW x dstH に拡大します。
func upsampleBilinear(src []float64, srcW, srcH, dstW, dstH int) []float64 {
	dst := make([]float64, dstW*dstH)
	sx := float64(srcW) / float64(dstW)
	sy := float64(srcH) / float64(dstH)
	for y := 0; y < dstH; y++ {
		y0, y1, fy := sample(y, sy, srcH)
		for x := 0; x < dstW; x++ {
			x0, x1, fx := sample(x, sx, srcW)
			top := src[y0*srcW+x0]*(1-fx) + src[y0*srcW+x1]*fx
			bottom := src[y1*srcW+x0]*(1-fx) + src[y1*srcW+x1]*fx
			dst[y*dstW+x] = top*(1-fy) + bottom*fy
		}
	}
	return dst
}

func sample(i int, scale float64, n int) (int, int, float64) {
	pos := (float64(i)+0.5)*scale - 0.5
	if pos < 0 {
		pos = 0
	}
	i0 := int(pos)
	if i0 >= n-1 {
		return n - 1, n - 1, 0
	}
	return i0, i0 + 1, pos - float64(i0)
}

// normalize は最小値を引いてから最大値（+epsilon）で割ります。
// 最大値が0以下、または値が一定の場合はすべて0になります。
func normalize(values []float64) {
	if len(values) == 0 {
		return
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi <= 0 {
		clear(values)
		return
	}
	span := hi - lo
	for i, v := range values {
		values[i] = (v - lo) / (span + epsilon)
	}
}

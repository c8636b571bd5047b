// Package classifier は画像をモデル入力に変換し、ラベルごとの確率を返す推論アダプターを提供します。
package classifier

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"

	"xray_backend/internal/feature/xray/domain/entity"
	"xray_backend/internal/feature/xray/usecase"
	"xray_backend/internal/platform/nn"
)

// Config は前処理の設定です。
type Config struct {
	InputSize int        // 正方形入力の一辺（例: 224）
	Mean      [3]float32 // チャンネルごとの平均（RGB）
	Std       [3]float32 // チャンネルごとの標準偏差（RGB）
}

// DefaultConfig はImageNetの統計量による224x224入力の設定です。
func DefaultConfig() Config {
	return Config{
		InputSize: 224,
		Mean:      [3]float32{0.485, 0.456, 0.406},
		Std:       [3]float32{0.229, 0.224, 0.225},
	}
}

// Classifier はnn.Graphをラップする推論アダプターです。
type Classifier struct {
	graph  *nn.Graph
	labels entity.LabelSet
	cfg    Config
}

// Classifierがusecase.Classifierを実装していることをコンパイル時に検証します。
var _ usecase.Classifier = (*Classifier)(nil)

// New はグラフの入出力形状とラベルの対応を検証してClassifierを生成します。
func New(graph *nn.Graph, labels entity.LabelSet, cfg Config) (*Classifier, error) {
	want := []int{3, cfg.InputSize, cfg.InputSize}
	in := graph.InputShape()
	if len(in) != 3 || in[0] != want[0] || in[1] != want[1] || in[2] != want[2] {
		return nil, fmt.Errorf("graph input shape %v, preprocessing produces %v", in, want)
	}
	for c := 0; c < 3; c++ {
		if cfg.Std[c] == 0 {
			return nil, fmt.Errorf("std for channel %d is zero", c)
		}
	}
	out := graph.OutputShape()
	if len(out) != 1 {
		return nil, fmt.Errorf("graph output shape %v is not a logit vector", out)
	}
	if err := labels.Validate(out[0]); err != nil {
		return nil, fmt.Errorf("invalid label mapping: %w", err)
	}
	return &Classifier{graph: graph, labels: labels, cfg: cfg}, nil
}

// Labels はラベル列を返します。
func (c *Classifier) Labels() entity.LabelSet { return c.labels }

// Preprocess は画像をリサイズし、RGB [0,1] に変換後、チャンネルごとに正規化したCHWテンソルを返します。
func (c *Classifier) Preprocess(img image.Image) (*nn.Tensor, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	size := c.cfg.InputSize
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)

	b := resized.Bounds()
	if b.Dx() != size || b.Dy() != size {
		return nil, fmt.Errorf("resized image is %dx%d, want %dx%d", b.Dx(), b.Dy(), size, size)
	}

	plane := size * size
	x := nn.NewTensor(3, size, size)
	for y := 0; y < size; y++ {
		for xx := 0; xx < size; xx++ {
			r, g, bl, _ := resized.At(b.Min.X+xx, b.Min.Y+y).RGBA()
			i := y*size + xx
			x.Data[i] = (float32(r)/65535.0 - c.cfg.Mean[0]) / c.cfg.Std[0]
			x.Data[plane+i] = (float32(g)/65535.0 - c.cfg.Mean[1]) / c.cfg.Std[1]
			x.Data[2*plane+i] = (float32(bl)/65535.0 - c.cfg.Mean[2]) / c.cfg.Std[2]
		}
	}
	return x, nil
}

// Predict は勾配を保持しない順伝播を1回実行し、各ロジットに独立なシグモイドを適用します。
func (c *Classifier) Predict(ctx context.Context, x *nn.Tensor) ([]entity.Prediction, error) {
	logits, err := c.graph.Forward(ctx, x)
	if err != nil {
		return nil, fmt.Errorf("forward pass failed: %w", err)
	}
	preds := make([]entity.Prediction, len(c.labels))
	for i, l := range c.labels {
		preds[i] = entity.Prediction{
			Label:       l.Name,
			Probability: sigmoid(float64(logits.Data[l.OutputIndex])),
		}
	}
	return preds, nil
}

// PredictImage は画像バイト列をデコードして推論します。デコードに失敗した場合はネットワークを実行しません。
func (c *Classifier) PredictImage(ctx context.Context, data []byte) ([]entity.Prediction, error) {
	img, err := usecase.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	x, err := c.Preprocess(img)
	if err != nil {
		return nil, err
	}
	return c.Predict(ctx, x)
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

// Package overlay はサリエンシーマップをJETカラーマップで着色し、元画像に重ねたPNGを生成します。
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/nfnt/resize"

	"xray_backend/internal/feature/xray/domain/entity"
	"xray_backend/internal/feature/xray/usecase"
)

// DefaultAlpha はヒートマップ側の合成比率です（元画像は 1-alpha）。
const DefaultAlpha = 0.4

// Renderer は純Goのオーバーレイ生成器です。
type Renderer struct {
	alpha float64
}

// Rendererがusecase.OverlayRendererを実装していることをコンパイル時に検証します。
var _ usecase.OverlayRenderer = (*Renderer)(nil)

// NewRenderer は alpha を [0,1] に丸めてRendererを生成します。
func NewRenderer(alpha float64) *Renderer {
	return &Renderer{alpha: clamp01(alpha)}
}

// Render はマップと同じサイズに元画像をリサイズし、着色したマップと合成してPNGにエンコードします。
func (r *Renderer) Render(original image.Image, m *entity.SaliencyMap) ([]byte, error) {
	if original == nil || m == nil {
		return nil, fmt.Errorf("overlay needs both an image and a saliency map")
	}
	if m.Width <= 0 || m.Height <= 0 || len(m.Values) != m.Width*m.Height {
		return nil, fmt.Errorf("malformed saliency map %dx%d with %d values", m.Width, m.Height, len(m.Values))
	}

	base := fit(original, m.Width, m.Height)
	bb := base.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			hr, hg, hb := Jet(m.At(x, y))
			or, og, ob, _ := base.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			out.SetRGBA(x, y, color.RGBA{
				R: blend(hr, float64(or>>8), r.alpha),
				G: blend(hg, float64(og>>8), r.alpha),
				B: blend(hb, float64(ob>>8), r.alpha),
				A: 0xff,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode overlay: %w", err)
	}
	return buf.Bytes(), nil
}

// Jet は [0,1] の値をJETカラーマップ（青→シアン→黄→赤）の8bit RGBに変換します。
func Jet(v float64) (r, g, b float64) {
	v = clamp01(v)
	r = clamp01(1.5-abs(4*v-3)) * 255
	g = clamp01(1.5-abs(4*v-2)) * 255
	b = clamp01(1.5-abs(4*v-1)) * 255
	return r, g, b
}

func fit(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	return resize.Resize(uint(w), uint(h), img, resize.Bilinear)
}

func blend(heat, orig, alpha float64) uint8 {
	v := alpha*heat + (1-alpha)*orig + 0.5
	if v >= 255 {
		return 255
	}
	if v <= 0 {
		return 0
	}
	return uint8(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

//go:build gocv

package overlay

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"xray_backend/internal/feature/xray/domain/entity"
	"xray_backend/internal/feature/xray/usecase"
)

// OpenCVRenderer はOpenCVのCOLORMAP_JETとaddWeightedでオーバーレイを生成します。
type OpenCVRenderer struct {
	alpha float64
}

var _ usecase.OverlayRenderer = (*OpenCVRenderer)(nil)

// NewOpenCVRenderer はOpenCVRendererを生成します。
func NewOpenCVRenderer(alpha float64) *OpenCVRenderer {
	return &OpenCVRenderer{alpha: clamp01(alpha)}
}

// Render はRendererと同じ合成をOpenCVで行います。
func (r *OpenCVRenderer) Render(original image.Image, m *entity.SaliencyMap) ([]byte, error) {
	if original == nil || m == nil {
		return nil, fmt.Errorf("overlay needs both an image and a saliency map")
	}
	if m.Width <= 0 || m.Height <= 0 || len(m.Values) != m.Width*m.Height {
		return nil, fmt.Errorf("malformed saliency map %dx%d with %d values", m.Width, m.Height, len(m.Values))
	}

	src, err := gocv.ImageToMatRGB(original)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()

	base := gocv.NewMat()
	defer base.Close()
	gocv.Resize(src, &base, image.Pt(m.Width, m.Height), 0, 0, gocv.InterpolationLinear)

	gray := gocv.NewMatWithSize(m.Height, m.Width, gocv.MatTypeCV8U)
	defer gray.Close()
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			gray.SetUCharAt(y, x, uint8(math.Round(clamp01(m.At(x, y))*255)))
		}
	}

	heat := gocv.NewMat()
	defer heat.Close()
	gocv.ApplyColorMap(gray, &heat, gocv.ColormapJet)

	out := gocv.NewMat()
	defer out.Close()
	gocv.AddWeighted(heat, r.alpha, base, 1-r.alpha, 0, &out)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode overlay: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

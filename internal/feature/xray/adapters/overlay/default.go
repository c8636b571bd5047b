//go:build !gocv

package overlay

import "xray_backend/internal/feature/xray/usecase"

// NewDefault はビルドタグに応じたオーバーレイ生成器を返します。
func NewDefault(alpha float64) usecase.OverlayRenderer {
	return NewRenderer(alpha)
}

package entity

// SaliencyMap は入力画像の空間上の重要度マップです。Values は行優先で [0,1] に正規化されています。
type SaliencyMap struct {
	Width  int
	Height int
	Values []float64
}

// At は (x, y) の値を返します。
func (m *SaliencyMap) At(x, y int) float64 {
	return m.Values[y*m.Width+x]
}

// Heatmap は検出ラベルごとのオーバーレイ画像（PNG）です。リクエストをまたいでキャッシュしません。
type Heatmap struct {
	Label string
	Image []byte
}

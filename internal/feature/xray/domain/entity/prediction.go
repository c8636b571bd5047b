package entity

import "math"

// Prediction は1ラベル分の独立したシグモイド確率（0.0 ~ 1.0）です。
type Prediction struct {
	Label       string
	Probability float64
}

// ConfidencePercent は確率を四捨五入した整数パーセントで返します。
func (p Prediction) ConfidencePercent() int {
	return int(math.Round(p.Probability * 100))
}

// Detection は閾値を超えたラベルです。リクエストごとに導出され、永続化されません。
type Detection struct {
	Label       string
	LabelIndex  int     // LabelSet内の位置
	Probability float64 // 0.0 ~ 1.0
	Confidence  int     // 四捨五入した整数パーセント
}

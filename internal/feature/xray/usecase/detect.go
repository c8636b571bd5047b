package usecase

import "xray_backend/internal/feature/xray/domain/entity"

// DefaultThreshold は検出とみなす確率の閾値です（この値を厳密に超える必要があります）。
const DefaultThreshold = 0.5

// Detect は threshold を厳密に超える予測を、予測の順序のまま返します。
// preds は LabelSet と同じ順序である必要があります。
// 判定は丸める前の確率で行うため、0.5 < p < 0.505 の検出の Confidence は50になります。
func Detect(preds []entity.Prediction, threshold float64) []entity.Detection {
	out := make([]entity.Detection, 0, len(preds))
	for i, p := range preds {
		if p.Probability <= threshold {
			continue
		}
		out = append(out, entity.Detection{
			Label:       p.Label,
			LabelIndex:  i,
			Probability: p.Probability,
			Confidence:  p.ConfidencePercent(),
		})
	}
	return out
}

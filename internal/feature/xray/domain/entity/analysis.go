package entity

// Analysis は1回の画像解析の結果です。
type Analysis struct {
	ID          string       // ログ相関用のUUID
	Predictions []Prediction // LabelSet順の全ラベル確率
	Detections  []Detection  // 閾値超過ラベル（LabelSet順）
	Heatmaps    []Heatmap    // Detectionsと同じ順序
}

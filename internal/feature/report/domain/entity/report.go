// Package entity はreportフィーチャーのドメインモデルを定義します。
package entity

// PatientData は自由形式の患者情報ドキュメントです（patient_details, medical_history など）。
type PatientData map[string]any

// PatientName は patient_details.name を返します。存在しない場合は空文字です。
func (p PatientData) PatientName() string {
	details, ok := p["patient_details"].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := details["name"].(string)
	return name
}

// Report は生成されたレポートです。
type Report struct {
	Title string
	Text  string
}

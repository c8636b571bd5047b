// Package entity はxrayフィーチャーのドメインモデルを定義します。
package entity

import "fmt"

// Label は分類器が独立にスコアリングする疾患名と、その出力ベクトル上の位置です。
type Label struct {
	Name        string // 疾患名
	OutputIndex int    // 分類器出力ベクトル内のインデックス
}

// LabelSet は順序付きのラベル列です。順序はレスポンスの並び順にのみ影響します。
type LabelSet []Label

// DefaultLabels はデフォルトの10疾患ラベルです（出力インデックス0〜9に固定）。
var DefaultLabels = LabelSet{
	{Name: "Atelectasis", OutputIndex: 0},
	{Name: "Cardiomegaly", OutputIndex: 1},
	{Name: "Effusion", OutputIndex: 2},
	{Name: "Infiltration", OutputIndex: 3},
	{Name: "Mass", OutputIndex: 4},
	{Name: "Nodule", OutputIndex: 5},
	{Name: "Pneumonia", OutputIndex: 6},
	{Name: "Pneumothorax", OutputIndex: 7},
	{Name: "Consolidation", OutputIndex: 8},
	{Name: "Edema", OutputIndex: 9},
}

// Validate はラベル名と出力インデックスが一意で、出力幅 outputs に収まっていることを検証します。
func (s LabelSet) Validate(outputs int) error {
	if len(s) == 0 {
		return fmt.Errorf("label set is empty")
	}
	names := make(map[string]struct{}, len(s))
	indices := make(map[int]struct{}, len(s))
	for _, l := range s {
		if l.Name == "" {
			return fmt.Errorf("label with output index %d has no name", l.OutputIndex)
		}
		if _, dup := names[l.Name]; dup {
			return fmt.Errorf("duplicate label %q", l.Name)
		}
		if _, dup := indices[l.OutputIndex]; dup {
			return fmt.Errorf("output index %d is mapped twice", l.OutputIndex)
		}
		if l.OutputIndex < 0 || l.OutputIndex >= outputs {
			return fmt.Errorf("label %q maps to output %d, classifier has %d outputs", l.Name, l.OutputIndex, outputs)
		}
		names[l.Name] = struct{}{}
		indices[l.OutputIndex] = struct{}{}
	}
	return nil
}

// Names はラベル名を順序通りに返します。
func (s LabelSet) Names() []string {
	out := make([]string, len(s))
	for i, l := range s {
		out[i] = l.Name
	}
	return out
}

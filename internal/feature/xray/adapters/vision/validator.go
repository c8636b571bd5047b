// Package vision はGoogle Cloud Vision APIのラベル検出でアップロード画像がX線画像かを検証します。
package vision

import (
	"context"
	"fmt"
	"strings"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"xray_backend/internal/feature/xray/domain"
	"xray_backend/internal/feature/xray/usecase"
)

// DefaultMinScore はX線関連ラベルとみなす最低スコアです。
const DefaultMinScore = 0.6

// radiographKeywords はX線画像を示すラベル記述のキーワードです。
var radiographKeywords = []string{"x-ray", "radiography", "radiology", "medical imaging", "chest"}

// RadiographValidator はVision APIでX線画像かどうかを判定します。
type RadiographValidator struct {
	client   *gvision.ImageAnnotatorClient
	minScore float32
}

// RadiographValidatorがImageValidatorを実装していることをコンパイル時に検証します。
var _ usecase.ImageValidator = (*RadiographValidator)(nil)

// NewRadiographValidator はADCを使用してRadiographValidatorの新しいインスタンスを生成します。
func NewRadiographValidator(ctx context.Context, minScore float32) (*RadiographValidator, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &RadiographValidator{client: client, minScore: minScore}, nil
}

// Close はVision APIクライアントを解放します。
func (v *RadiographValidator) Close() error {
	return v.client.Close()
}

// Validate はX線関連のラベルが検出されない場合に domain.ErrNotRadiograph を返します。
func (v *RadiographValidator) Validate(ctx context.Context, imageData []byte) error {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: imageData},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: 20},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return fmt.Errorf("vision API request failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return fmt.Errorf("%w: no labels returned", domain.ErrNotRadiograph)
	}
	if resp.Responses[0].Error != nil {
		return fmt.Errorf("vision API error: %s", resp.Responses[0].Error.Message)
	}

	if !IsRadiograph(resp.Responses[0].LabelAnnotations, v.minScore) {
		return domain.ErrNotRadiograph
	}
	return nil
}

// IsRadiograph はラベルのいずれかがX線関連キーワードを含み、minScore 以上であるかを返します。
func IsRadiograph(labels []*visionpb.EntityAnnotation, minScore float32) bool {
	for _, l := range labels {
		if l.GetScore() < minScore {
			continue
		}
		desc := strings.ToLower(l.GetDescription())
		for _, kw := range radiographKeywords {
			if strings.Contains(desc, kw) {
				return true
			}
		}
	}
	return false
}

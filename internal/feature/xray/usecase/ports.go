// Package usecase はxrayフィーチャーのビジネスロジックを実装します。
package usecase

import (
	"context"
	"image"

	"xray_backend/internal/feature/xray/domain/entity"
	"xray_backend/internal/platform/nn"
)

// Classifier は画像分類器（推論アダプター）のインターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type Classifier interface {
	// Labels は出力ベクトルに固定されたラベル列を返します。
	Labels() entity.LabelSet
	// Preprocess は画像をモデル入力テンソルに変換します。分類とサリエンシーで同じテンソルを使います。
	Preprocess(img image.Image) (*nn.Tensor, error)
	// Predict は1回の順伝播でラベルごとの確率を返します。
	Predict(ctx context.Context, x *nn.Tensor) ([]entity.Prediction, error)
}

// Explainer は指定ラベルのサリエンシーマップを計算するインターフェースです。
type Explainer interface {
	// Explain は labelIndex（LabelSet上の位置）のマップを width x height で返します。
	Explain(ctx context.Context, x *nn.Tensor, labelIndex, width, height int) (*entity.SaliencyMap, error)
}

// OverlayRenderer はサリエンシーマップを元画像に重ねたPNGを生成するインターフェースです。
type OverlayRenderer interface {
	Render(original image.Image, m *entity.SaliencyMap) ([]byte, error)
}

// ImageValidator はアップロード画像がX線画像かどうかを検証するインターフェースです。
type ImageValidator interface {
	// Validate は画像がX線画像でない場合に domain.ErrNotRadiograph を返します。
	Validate(ctx context.Context, imageData []byte) error
}

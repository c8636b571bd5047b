package usecase

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"xray_backend/internal/feature/xray/domain"
	"xray_backend/internal/feature/xray/domain/entity"
	"xray_backend/internal/platform/nn"
)

const (
	// MaxImageSize は画像アップロードの最大サイズ（16MB）です。
	MaxImageSize = 16 * 1024 * 1024
	// DefaultWorkers はラベルごとのサリエンシー計算の並列数です。
	DefaultWorkers = 4
	// DefaultMaxImageSide は受け付ける画像の一辺の最大ピクセル数です。
	DefaultMaxImageSide = 4096
)

// Config は解析ユースケースの設定です。
type Config struct {
	Threshold    float64 // 検出閾値（厳密に超える）
	DisplaySize  int     // ヒートマップの一辺。0の場合は元画像の解像度
	Workers      int     // サリエンシー計算の並列数
	MaxImageSize int     // 受け付ける最大バイト数
	MaxImageSide int     // 受け付ける画像の一辺の最大ピクセル数
}

// DefaultConfig はデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		Threshold:    DefaultThreshold,
		Workers:      DefaultWorkers,
		MaxImageSize: MaxImageSize,
		MaxImageSide: DefaultMaxImageSide,
	}
}

// AnalyzeInput はディスクに退避されたアップロード画像です。
type AnalyzeInput struct {
	Filename string // クライアントが送ったファイル名（拡張子の検証に使用）
	Path     string // 一時ファイルのパス
}

// analysisUsecase は分類・検出・サリエンシー・オーバーレイの一連の処理を提供します。
type analysisUsecase struct {
	classifier Classifier
	explainer  Explainer
	renderer   OverlayRenderer
	validator  ImageValidator
	cfg        Config
}

// NewAnalysisUsecase はanalysisUsecaseの新しいインスタンスを生成します。validator はnilでも構いません。
func NewAnalysisUsecase(c Classifier, e Explainer, r OverlayRenderer, v ImageValidator, cfg Config) *analysisUsecase {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = MaxImageSize
	}
	if cfg.MaxImageSide <= 0 {
		cfg.MaxImageSide = DefaultMaxImageSide
	}
	return &analysisUsecase{classifier: c, explainer: e, renderer: r, validator: v, cfg: cfg}
}

// Labels は分類器のラベル列を返します。
func (u *analysisUsecase) Labels() entity.LabelSet { return u.classifier.Labels() }

// Threshold は検出閾値を返します。
func (u *analysisUsecase) Threshold() float64 { return u.cfg.Threshold }

// Analyze は一時ファイルの画像を解析します。ファイルの削除は呼び出し側の責務です。
func (u *analysisUsecase) Analyze(ctx context.Context, in AnalyzeInput) (*entity.Analysis, error) {
	if err := ValidateFileType(in.Filename); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded image: %w", err)
	}
	return u.AnalyzeBytes(ctx, in.Filename, data)
}

// AnalyzeBytes は画像バイト列を解析し、全ラベルの確率と検出ラベルごとのヒートマップを返します。
// いずれかのヒートマップ生成に失敗した場合は解析全体を失敗とします。
func (u *analysisUsecase) AnalyzeBytes(ctx context.Context, filename string, data []byte) (*entity.Analysis, error) {
	start := time.Now()
	id := uuid.NewString()

	if err := ValidateFileType(filename); err != nil {
		return nil, err
	}
	if len(data) > u.cfg.MaxImageSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", domain.ErrImageTooLarge, len(data), u.cfg.MaxImageSize)
	}
	if err := CheckDimensions(data, u.cfg.MaxImageSide); err != nil {
		return nil, err
	}
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	if u.validator != nil {
		if err := u.validator.Validate(ctx, data); err != nil {
			return nil, fmt.Errorf("image validation failed: %w", err)
		}
	}

	x, err := u.classifier.Preprocess(img)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}
	preds, err := u.classifier.Predict(ctx, x)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}
	detections := Detect(preds, u.cfg.Threshold)

	heatmaps, err := u.heatmaps(ctx, img, x, detections)
	if err != nil {
		slog.Error("heatmap generation failed", "analysis_id", id, "error", err)
		return nil, err
	}

	slog.Info("xray analysis completed",
		"analysis_id", id,
		"labels", len(preds),
		"detections", len(detections),
		"elapsed", time.Since(start),
	)
	return &entity.Analysis{
		ID:          id,
		Predictions: preds,
		Detections:  detections,
		Heatmaps:    heatmaps,
	}, nil
}

// heatmaps は検出ラベルごとに独立したサリエンシーパスを並行実行し、検出順に結果を並べます。
func (u *analysisUsecase) heatmaps(ctx context.Context, img image.Image, x *nn.Tensor, detections []entity.Detection) ([]entity.Heatmap, error) {
	width, height := u.outputSize(img)
	out := make([]entity.Heatmap, len(detections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.cfg.Workers)
	for i, d := range detections {
		g.Go(func() error {
			m, err := u.explainer.Explain(gctx, x, d.LabelIndex, width, height)
			if err != nil {
				return fmt.Errorf("saliency for %q: %w", d.Label, err)
			}
			png, err := u.renderer.Render(img, m)
			if err != nil {
				return fmt.Errorf("overlay for %q: %w", d.Label, err)
			}
			out[i] = entity.Heatmap{Label: d.Label, Image: png}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (u *analysisUsecase) outputSize(img image.Image) (int, int) {
	if u.cfg.DisplaySize > 0 {
		return u.cfg.DisplaySize, u.cfg.DisplaySize
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

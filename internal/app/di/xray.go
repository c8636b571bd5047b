// Package di は設定からアダプターとユースケースを組み立てるファクトリーを提供します。
package di

import (
	"context"
	"fmt"
	"log/slog"

	"xray_backend/internal/app/config"
	"xray_backend/internal/feature/xray/adapters/classifier"
	"xray_backend/internal/feature/xray/adapters/gradcam"
	"xray_backend/internal/feature/xray/adapters/overlay"
	"xray_backend/internal/feature/xray/adapters/vision"
	xrayhandler "xray_backend/internal/feature/xray/transport/handler"
	"xray_backend/internal/feature/xray/usecase"
	"xray_backend/internal/platform/nn"
	"xray_backend/internal/platform/onnx"
)

// Stage names of the assembled classifier.
const (
	StageFeatures    = "features"
	StageFeaturePool = "feature_pool"
	StageReLU        = "relu"
	StagePool        = "pool"
	StageClassifier  = "classifier"
)

// Model は推論グラフとその上に構築した分類器・説明器です。
type Model struct {
	Graph      *nn.Graph
	Classifier *classifier.Classifier
	Explainer  *gradcam.Engine

	backbone *onnx.Backbone
}

// Close はONNXセッションを解放します。
func (m *Model) Close() {
	if m.backbone != nil {
		m.backbone.Close()
	}
}

// NewModel はONNXバックボーン、ReLU、GAP、線形ヘッドを順に連結してモデルを読み込みます。
// Grad-CAMの対象はバックボーン出力（ReLU前）の特徴マップです。
func NewModel(cfg *config.Config) (*Model, error) {
	mc := cfg.Model
	size := int64(mc.InputSize)
	backbone, err := onnx.NewBackbone(StageFeatures, onnx.Config{
		ModelPath:         mc.BackbonePath,
		SharedLibraryPath: mc.RuntimeLibrary,
		InputName:         mc.InputName,
		OutputName:        mc.OutputName,
		InputShape:        []int64{3, size, size},
		OutputShape:       mc.FeatureShape,
	})
	if err != nil {
		return nil, err
	}

	m, err := assemble(backbone, cfg)
	if err != nil {
		backbone.Close()
		return nil, err
	}
	m.backbone = backbone
	return m, nil
}

// assemble はバックボーンステージの後ろに分類ヘッドを連結します。
// feature_pool が2以上の場合はバックボーン直後に平均プーリングを挟み、Grad-CAMの対象もその出力になります。
func assemble(backbone nn.Stage, cfg *config.Config) (*Model, error) {
	mc := cfg.Model
	head, err := nn.LoadLinear(StageClassifier, mc.HeadWeights)
	if err != nil {
		return nil, err
	}
	stages := []nn.Stage{backbone}
	if mc.FeaturePool > 1 {
		stages = append(stages, nn.NewAvgPool2D(StageFeaturePool, mc.FeaturePool))
	}
	stages = append(stages, nn.NewReLU(StageReLU), nn.NewGlobalAvgPool(StagePool), head)
	graph, err := nn.NewGraph([]int{3, mc.InputSize, mc.InputSize}, stages...)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble classifier graph: %w", err)
	}

	mean, std := mc.MeanStd()
	labelSet := cfg.LabelSet()
	clf, err := classifier.New(graph, labelSet, classifier.Config{InputSize: mc.InputSize, Mean: mean, Std: std})
	if err != nil {
		return nil, err
	}
	engine := gradcam.NewEngine(graph, labelSet, mc.ExplanationLayer)
	layer, err := engine.Layer()
	if err != nil {
		return nil, err
	}
	slog.Info("classifier loaded", "labels", len(labelSet), "explanation_layer", layer, "output", graph.OutputShape())
	return &Model{Graph: graph, Classifier: clf, Explainer: engine}, nil
}

// NewAnalysisUsecase はモデルとオーバーレイ、任意のVision検証を組み合わせたユースケースを生成します。
// 返される close はVisionクライアントを解放します。
func NewAnalysisUsecase(ctx context.Context, cfg *config.Config, m *Model) (xrayhandler.AnalysisUsecase, func(), error) {
	closeFn := func() {}

	var validator usecase.ImageValidator
	if cfg.Vision.Enabled {
		v, err := vision.NewRadiographValidator(ctx, cfg.Vision.MinScore)
		if err != nil {
			return nil, nil, err
		}
		validator = v
		closeFn = func() {
			if err := v.Close(); err != nil {
				slog.Warn("failed to close vision client", "error", err)
			}
		}
	}

	uc := usecase.NewAnalysisUsecase(m.Classifier, m.Explainer, overlay.NewDefault(cfg.Analysis.OverlayAlpha), validator, usecase.Config{
		Threshold:    cfg.Analysis.Threshold,
		DisplaySize:  cfg.Analysis.DisplaySize,
		Workers:      cfg.Analysis.Workers,
		MaxImageSize: int(cfg.Server.MaxUploadBytes),
		MaxImageSide: cfg.Analysis.MaxImageSide,
	})
	return uc, closeFn, nil
}

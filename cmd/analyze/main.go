// Command analyze classifies one chest X-ray from disk and writes a Grad-CAM overlay per detected label.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"xray_backend/internal/app/config"
	"xray_backend/internal/app/di"
	"xray_backend/internal/feature/xray/domain/entity"
	"xray_backend/internal/feature/xray/usecase"
	"xray_backend/internal/platform/logging"
	"xray_backend/internal/platform/onnx"
)

func main() {
	imagePath := flag.String("image", "", "path to a PNG or JPEG chest X-ray")
	outDir := flag.String("out", ".", "directory for <label>.png overlays")
	configPath := flag.String("config", "", "path to the TOML config")
	flag.Parse()

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -image <path> [-out dir] [-config path]")
		os.Exit(2)
	}
	if err := run(*imagePath, *outDir, *configPath); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(imagePath, outDir, configPath string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, "text", cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx := context.Background()
	model, err := di.NewModel(cfg)
	if err != nil {
		return err
	}
	defer onnx.Shutdown()
	defer model.Close()

	uc, closeVision, err := di.NewAnalysisUsecase(ctx, cfg, model)
	if err != nil {
		return err
	}
	defer closeVision()

	analysis, err := uc.Analyze(ctx, usecase.AnalyzeInput{Filename: filepath.Base(imagePath), Path: imagePath})
	if err != nil {
		return err
	}

	if len(analysis.Detections) == 0 {
		fmt.Printf("No findings above %.2f\n", uc.Threshold())
		return nil
	}
	for _, d := range byConfidence(analysis.Detections) {
		fmt.Printf("%-16s %3d%%\n", d.Label, d.Confidence)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	for _, h := range analysis.Heatmaps {
		path := filepath.Join(outDir, overlayName(h.Label))
		if err := os.WriteFile(path, h.Image, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Println("wrote", path)
	}
	return nil
}

// byConfidence returns the detections sorted by probability, highest first.
func byConfidence(ds []entity.Detection) []entity.Detection {
	out := append([]entity.Detection(nil), ds...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Probability > out[j].Probability })
	return out
}

func overlayName(label string) string {
	return strings.ReplaceAll(label, string(filepath.Separator), "_") + ".png"
}

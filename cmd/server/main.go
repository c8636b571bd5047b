package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xray_backend/internal/app/config"
	"xray_backend/internal/app/di"
	"xray_backend/internal/app/router"
	reporthandler "xray_backend/internal/feature/report/transport/handler"
	xrayhandler "xray_backend/internal/feature/xray/transport/handler"
	"xray_backend/internal/platform/http/handler"
	"xray_backend/internal/platform/logging"
	"xray_backend/internal/platform/onnx"
	"xray_backend/internal/platform/upload"
)

// multipartSlack は画像サイズ上限に加えて許容するマルチパートのヘッダー分です。
const multipartSlack = 1 << 20

func main() {
	configPath := flag.String("config", "", "path to the TOML config (default $XRAY_CONFIG or "+config.DefaultPath+")")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stdout, cfg.Server.LogFormat, cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// モデル
	model, err := di.NewModel(cfg)
	if err != nil {
		return err
	}
	defer onnx.Shutdown()
	defer model.Close()
	layer, err := model.Explainer.Layer()
	if err != nil {
		return err
	}

	// Usecase
	analysis, closeVision, err := di.NewAnalysisUsecase(ctx, cfg, model)
	if err != nil {
		return err
	}
	defer closeVision()

	rdb := di.NewRedis(ctx, cfg.Redis)
	if rdb != nil {
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close redis client", "error", err)
			}
		}()
	}
	report, err := di.NewReportUsecase(ctx, cfg, rdb)
	if err != nil {
		return err
	}

	spool, err := upload.NewSpooler(cfg.Server.UploadDir)
	if err != nil {
		return err
	}

	// Handler
	handlers := router.Handlers{
		Xray:   xrayhandler.NewXrayHandler(analysis, spool, cfg.Server.MaxUploadBytes+multipartSlack),
		Report: reporthandler.NewReportHandler(report),
		Model:  handler.ModelInfo{Labels: len(cfg.Labels), ExplanationLayer: layer},
	}
	opts := router.Options{AllowOrigins: cfg.Server.AllowOrigins}

	if cfg.Auth.Enabled {
		auth, err := di.NewAuth(ctx, cfg)
		if err != nil {
			return err
		}
		if sqlDB, err := auth.DB.DB(); err == nil {
			defer sqlDB.Close()
		}
		handlers.Auth = auth.Handler
		opts.Tokens = auth.Tokens
	} else {
		slog.Warn("authentication is disabled, /v1 routes are public")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.NewRouter(handlers, opts),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Duration,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "upload_dir", spool.Dir())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if d := cfg.Server.ShutdownTimeout.Duration; d > 0 {
		return d
	}
	return 15 * time.Second
}

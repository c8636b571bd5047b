// Package handler はxrayフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"xray_backend/internal/api"
	"xray_backend/internal/feature/xray/domain"
	"xray_backend/internal/feature/xray/domain/entity"
	"xray_backend/internal/feature/xray/usecase"
	"xray_backend/internal/platform/upload"
)

// formField はアップロード画像のマルチパートフィールド名です。
const formField = "file"

// AnalysisUsecase はX線画像解析のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type AnalysisUsecase interface {
	Labels() entity.LabelSet
	Threshold() float64
	Analyze(ctx context.Context, in usecase.AnalyzeInput) (*entity.Analysis, error)
}

// Spooler はアップロードを一時ファイルに退避するインターフェースです。
type Spooler interface {
	Save(r io.Reader, originalName string) (*upload.File, error)
}

// XrayHandler はX線画像解析のHTTPリクエストを処理します。
type XrayHandler struct {
	uc       AnalysisUsecase
	spool    Spooler
	maxBytes int64
}

// NewXrayHandler はXrayHandlerの新しいインスタンスを生成します。maxBytes はリクエストボディの上限です。
func NewXrayHandler(uc AnalysisUsecase, spool Spooler, maxBytes int64) *XrayHandler {
	return &XrayHandler{uc: uc, spool: spool, maxBytes: maxBytes}
}

// Analyze はアップロードされた胸部X線画像を分類し、検出ラベルとヒートマップを返します。
//
// エンドポイント: POST /v1/xray/analyze
// Content-Type: multipart/form-data
// フィールド: file（PNG/JPEG）
// クエリ: probabilities=true で全ラベルの確率も返します。
func (h *XrayHandler) Analyze(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	file, err := c.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("upload too large", "limit", tooLarge.Limit, "remote_addr", c.ClientIP())
			c.JSON(http.StatusRequestEntityTooLarge, api.ErrorResponse{Error: "File too large"})
			return
		}
		slog.Warn("failed to read upload", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "No file part"})
		return
	}
	if file.Filename == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "No selected file"})
		return
	}
	if err := usecase.ValidateFileType(file.Filename); err != nil {
		slog.Warn("rejected upload", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "File type not allowed"})
		return
	}

	f, err := file.Open()
	if err != nil {
		slog.Error("failed to open upload", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to read upload"})
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close upload", "error", err)
		}
	}()

	spooled, err := h.spool.Save(f, file.Filename)
	if err != nil {
		slog.Error("failed to spool upload", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to store upload"})
		return
	}
	defer spooled.RemoveQuietly()

	analysis, err := h.uc.Analyze(c.Request.Context(), usecase.AnalyzeInput{
		Filename: file.Filename,
		Path:     spooled.Path,
	})
	if err != nil {
		status, msg := statusFor(err)
		slog.Error("xray analysis failed", "error", err, "status", status, "filename", file.Filename)
		c.JSON(status, api.ErrorResponse{Error: msg})
		return
	}

	c.JSON(http.StatusOK, toResponse(analysis, c.Query("probabilities") == "true"))
}

// Labels は分類器が判定するラベルと閾値を返します。
//
// エンドポイント: GET /v1/xray/labels
func (h *XrayHandler) Labels(c *gin.Context) {
	c.JSON(http.StatusOK, api.LabelsResponse{
		Labels:    h.uc.Labels().Names(),
		Threshold: h.uc.Threshold(),
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusBadRequest, "File type not allowed"
	case errors.Is(err, domain.ErrDecode):
		return http.StatusBadRequest, "Image could not be decoded"
	case errors.Is(err, domain.ErrNotRadiograph):
		return http.StatusBadRequest, "Image does not appear to be an X-ray"
	case errors.Is(err, domain.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Analysis timed out"
	default:
		return http.StatusInternalServerError, "Analysis failed"
	}
}

func toResponse(a *entity.Analysis, withProbabilities bool) api.AnalysisResponse {
	resp := api.AnalysisResponse{
		AnalysisID:  a.ID,
		Predictions: make([]api.PredictionResponse, 0, len(a.Predictions)),
		Heatmaps:    make([]api.HeatmapResponse, 0, len(a.Heatmaps)),
	}
	// ラベル順に全ラベルの信頼度を返し、ヒートマップは検出分のみ
	for _, p := range a.Predictions {
		resp.Predictions = append(resp.Predictions, api.PredictionResponse{Name: p.Label, Confidence: p.ConfidencePercent()})
	}
	for _, hm := range a.Heatmaps {
		resp.Heatmaps = append(resp.Heatmaps, api.HeatmapResponse{
			Disease: hm.Label,
			Image:   base64.StdEncoding.EncodeToString(hm.Image),
		})
	}
	if withProbabilities {
		for _, p := range a.Predictions {
			resp.Probabilities = append(resp.Probabilities, api.ProbabilityResponse{Name: p.Label, Probability: p.Probability})
		}
	}
	return resp
}

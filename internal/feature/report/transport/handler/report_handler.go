// Package handler はreportフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"xray_backend/internal/api"
	"xray_backend/internal/feature/report/domain"
	"xray_backend/internal/feature/report/domain/entity"
)

// maxBodyBytes は患者データJSONの最大サイズ（1MB）です。
const maxBodyBytes = 1 << 20

// ReportUsecase はレポート生成のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type ReportUsecase interface {
	Generate(ctx context.Context, data entity.PatientData) (*entity.Report, error)
}

// ReportHandler はレポート生成のHTTPリクエストを処理します。
type ReportHandler struct {
	uc ReportUsecase
}

// NewReportHandler はReportHandlerの新しいインスタンスを生成します。
func NewReportHandler(uc ReportUsecase) *ReportHandler {
	return &ReportHandler{uc: uc}
}

// Generate は患者データJSONからレポートを生成します。
//
// エンドポイント: POST /v1/report
// Content-Type: application/json（任意のJSONオブジェクト）
func (h *ReportHandler) Generate(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes+1))
	if err != nil {
		slog.Warn("failed to read report request", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if len(body) > maxBodyBytes {
		c.JSON(http.StatusRequestEntityTooLarge, api.ErrorResponse{Error: "Request body too large"})
		return
	}

	var data entity.PatientData
	if err := json.Unmarshal(body, &data); err != nil || len(data) == 0 {
		slog.Warn("invalid patient data", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "No patient data provided"})
		return
	}

	report, err := h.uc.Generate(c.Request.Context(), data)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPatientData):
			slog.Warn("report rejected", "error", err, "remote_addr", c.ClientIP())
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "No patient data provided"})
		case errors.Is(err, domain.ErrUpstreamService):
			slog.Error("report generation failed", "error", err)
			c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "An error occurred while generating the report: " + err.Error()})
		default:
			slog.Error("report generation failed", "error", err)
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Report generation failed"})
		}
		return
	}

	c.JSON(http.StatusOK, api.ReportResponse{Title: report.Title, ReportText: report.Text})
}

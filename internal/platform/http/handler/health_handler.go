// Package handler はプラットフォームレベルのエンドポイント用HTTPハンドラーを提供します。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ModelInfo はヘルスチェックで公開する推論モデルの情報です。
type ModelInfo struct {
	Labels           int    `json:"labels"`
	ExplanationLayer string `json:"explanation_layer"`
}

// Health は /healthz エンドポイントのハンドラーを返します。
// GETはモデル情報を含むJSON、HEADは200、OPTIONSは204を返し、キャッシュを防止します。
func Health(info ModelInfo) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")

		switch c.Request.Method {
		case http.MethodHead:
			c.Status(http.StatusOK)
		case http.MethodOptions:
			c.Status(http.StatusNoContent)
		default:
			c.JSON(http.StatusOK, gin.H{"status": "ok", "model": info})
		}
	}
}

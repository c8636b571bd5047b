// Package router はHTTPルーティングを定義します。
package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	authhandler "xray_backend/internal/feature/auth/transport/handler"
	reporthandler "xray_backend/internal/feature/report/transport/handler"
	xrayhandler "xray_backend/internal/feature/xray/transport/handler"
	"xray_backend/internal/platform/http/handler"
	jwtmw "xray_backend/internal/platform/jwt"
)

// Handlers はルーターに登録するハンドラーです。Auth がnilの場合は /signup と /login を登録しません。
type Handlers struct {
	Xray   *xrayhandler.XrayHandler
	Report *reporthandler.ReportHandler
	Auth   *authhandler.AuthHandler
	Model  handler.ModelInfo
}

// Options はルーターの動作設定です。
type Options struct {
	AllowOrigins []string
	// Tokens がnil以外の場合、/v1 配下はBearerトークンが必須になります。
	Tokens jwtmw.TokenParser
}

// NewRouter はCORSと認証ミドルウェアを設定し、各ハンドラーをルーティングしたgin.Engineを返します。
func NewRouter(h Handlers, opts Options) *gin.Engine {
	r := gin.Default()

	corsCfg := cors.Config{
		AllowOrigins: opts.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(opts.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	}
	r.Use(cors.New(corsCfg))

	// 認証不要
	health := handler.Health(h.Model)
	r.GET("/healthz", health)
	r.HEAD("/healthz", health)
	r.OPTIONS("/healthz", health)

	if h.Auth != nil {
		r.POST("/signup", h.Auth.Signup)
		r.POST("/login", h.Auth.Login)
	}

	v1 := r.Group("/v1")
	if opts.Tokens != nil {
		v1.Use(jwtmw.AuthRequired(opts.Tokens))
	}
	{
		v1.GET("/xray/labels", h.Xray.Labels)
		v1.POST("/xray/analyze", h.Xray.Analyze)
		v1.POST("/report", h.Report.Generate)
	}

	return r
}

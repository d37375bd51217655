package router

import (
	"Zyncrate/config"
	"Zyncrate/internal/handler"
	"Zyncrate/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InitRouter builds API routes.
func InitRouter(cfg config.Config, h *handler.Handler) *gin.Engine {
	r := gin.Default()
	r.Use(utils.CORSMiddleware())
	r.Use(utils.MetricsMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(utils.IdentityMiddleware(cfg.JWTSecret))
	{
		api.GET("/guest/session", h.GuestSession)
		api.POST("/user/register", h.Register)
		api.POST("/user/login", h.Login)

		api.POST("/upload", h.Upload)
		api.GET("/file-info", h.FileInfo)
		api.GET("/download-info", h.DownloadInfo)
		api.GET("/download", h.Download)
		api.POST("/key-verify", h.KeyVerify)

		auth := api.Group("")
		auth.Use(utils.AuthMiddleware())
		{
			auth.GET("/files", h.ListFiles)
		}

		ops := api.Group("")
		ops.Use(utils.StaticTokenMiddleware(cfg.CleanupToken))
		{
			ops.POST("/cleanup", h.Cleanup)
			ops.GET("/admin/settings", h.GetSettings)
			ops.POST("/admin/settings", h.SetSetting)
		}
	}
	return r
}

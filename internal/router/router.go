package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/bookforge/backend/config"
	"github.com/bookforge/backend/internal/handler"
)

func Setup(
	cfg *config.Config,
	bookHandler *handler.BookHandler,
	themeHandler *handler.ThemeHandler,
	configHandler *handler.ConfigHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))
	// 书籍文档里携带 base64 插图，压缩收益明显
	// SSE 端点跳过压缩，避免事件被缓冲
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`.*/progress/stream$`})))

	api := r.Group("/api")
	{
		books := api.Group("/books")
		{
			books.POST("", bookHandler.Create)
			books.GET("", bookHandler.List)
			books.GET("/:id", bookHandler.Get)
			books.GET("/:id/progress", bookHandler.GetProgress)
			books.GET("/:id/progress/stream", bookHandler.StreamProgress)
			books.POST("/:id/cancel", bookHandler.Cancel)
			books.DELETE("/:id", bookHandler.Delete)
		}

		themes := api.Group("/themes")
		{
			themes.GET("", themeHandler.List)
			themes.GET("/:id", themeHandler.Get)
		}

		api.GET("/config", configHandler.Get)
	}

	return r
}

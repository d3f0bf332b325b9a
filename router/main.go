package router

import (
	"embed"
	"net/http"

	"github.com/Laisky/zap"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"github.com/chatbridge/chatbridge/common/logger"
	"github.com/chatbridge/chatbridge/controller"
)

// SetRouter registers the API routes and serves the embedded web client.
func SetRouter(server *gin.Engine, api *controller.ChatAPI, buildFS embed.FS) {
	apiRouter := server.Group("/api")
	{
		apiRouter.GET("/status", api.Status)
		apiRouter.GET("/models", api.Models)
		apiRouter.POST("/chat", api.Relay)
		apiRouter.GET("/chat/history", api.History)
		apiRouter.DELETE("/chat/history", api.ClearHistory)
	}

	setWebRouter(server, buildFS)
}

func setWebRouter(server *gin.Engine, buildFS embed.FS) {
	fs, err := static.EmbedFolder(buildFS, "web")
	if err != nil {
		logger.Logger.Fatal("failed to load embedded web assets", zap.Error(err))
	}
	server.Use(static.Serve("/", fs))
	server.NoRoute(func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache")
		c.FileFromFS("web/index.html", http.FS(buildFS))
	})
}

package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatbridge/chatbridge/common"
	"github.com/chatbridge/chatbridge/common/config"
	"github.com/chatbridge/chatbridge/common/helper"
)

// Status handles GET /api/status.
func (api *ChatAPI) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"version":        common.Version,
		"default_model":  config.DefaultModel,
		"uptime_seconds": helper.GetTimestamp() - common.StartTime,
	})
}

// Models handles GET /api/models: the model names accepted by POST /api/chat.
func (api *ChatAPI) Models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": api.Bridge.Models(), "default": config.DefaultModel})
}

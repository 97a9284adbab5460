package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookforge/backend/config"
)

type ConfigHandler struct{}

func NewConfigHandler() *ConfigHandler {
	return &ConfigHandler{}
}

// Get 返回脱敏后的运行配置
// API Key 只回传是否已配置，不回传明文
func (h *ConfigHandler) Get(c *gin.Context) {
	cfg := config.GetConfig()
	c.JSON(http.StatusOK, gin.H{
		"llm": gin.H{
			"api_url":         cfg.LLM.APIURL,
			"model":           cfg.LLM.Model,
			"max_tokens":      cfg.LLM.MaxTokens,
			"api_key_present": cfg.LLM.APIKey != "",
		},
		"image": gin.H{
			"api_url": cfg.Image.APIURL,
			"width":   cfg.Image.Width,
			"height":  cfg.Image.Height,
		},
		"generator": gin.H{
			"total_chapters":        cfg.Generator.TotalChapters,
			"illustration_interval": cfg.Generator.IllustrationInterval,
			"max_retries":           cfg.Generator.MaxRetries,
		},
	})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookforge/backend/internal/themes"
)

type ThemeHandler struct{}

func NewThemeHandler() *ThemeHandler {
	return &ThemeHandler{}
}

func (h *ThemeHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, themes.List())
}

func (h *ThemeHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !themes.Exists(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "theme not found"})
		return
	}
	c.JSON(http.StatusOK, themes.GetByID(id))
}

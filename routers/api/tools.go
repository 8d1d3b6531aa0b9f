package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 脚本润色（同步单次调用）
func (h *Handler) RefineScript(c *gin.Context) {
	var req struct {
		Script string `json:"script" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	refined, err := h.Gen.RefineScript(c.Request.Context(), req.Script)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "润色失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"script": refined})
}

// 封面文案生成（同步单次调用）
func (h *Handler) ThumbnailText(c *gin.Context) {
	var req struct {
		Script string `json:"script" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Gen.ThumbnailText(c.Request.Context(), req.Script)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "封面文案生成失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"SceneStudio-server/models"
)

// 固定键名之外的写入一律拒绝
var allowedSettingKeys = map[string]bool{
	models.SettingAIKey:      true,
	models.SettingSpeechKey:  true,
	models.SettingUpscaleKey: true,
	models.SettingVoiceID:    true,
}

func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := models.AllSettings(h.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取配置失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// 每次变更立即写回持久层
func (h *Handler) PutSettings(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for key, value := range req {
		if !allowedSettingKeys[key] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "未知的配置键: " + key})
			return
		}
		if err := models.PutSetting(h.DB, key, value); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "写入配置失败: " + err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"updated": len(req)})
}

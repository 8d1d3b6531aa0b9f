package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"SceneStudio-server/models"
	"SceneStudio-server/service"
)

// 创建生产会话
func (h *Handler) CreateRun(c *gin.Context) {
	var req struct {
		Title     string `json:"title"`
		IntroText string `json:"intro_text"`
		BodyText  string `json:"body_text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	aiKey, speechKey, upscaleKey, voiceID := h.resolveCredentials()
	o := service.NewOrchestrator(h.Cfg, h.Analyzer, h.Gen, h.saver(), service.OrchestratorOptions{
		RunID:      uuid.NewString(),
		Title:      req.Title,
		IntroText:  req.IntroText,
		BodyText:   req.BodyText,
		AIKey:      aiKey,
		SpeechKey:  speechKey,
		UpscaleKey: upscaleKey,
		VoiceID:    voiceID,
	})
	h.Sessions.Put(o)

	c.JSON(http.StatusOK, gin.H{
		"run_id": o.RunID(),
		"status": models.RunStatusIdle,
	})
}

// 查询会话状态与分镜列表
func (h *Handler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")
	o, ok := h.Sessions.Get(runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话未找到: " + runID})
		return
	}
	c.JSON(http.StatusOK, o.State())
}

// 手动保存快照
func (h *Handler) SaveRun(c *gin.Context) {
	runID := c.Param("run_id")
	o, ok := h.Sessions.Get(runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话未找到: " + runID})
		return
	}
	if err := o.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "saved": true})
}

// 历史会话列表（持久化快照摘要）
func (h *Handler) ListRuns(c *gin.Context) {
	runs, err := models.ListRuns(h.DB)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取列表失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": len(runs)})
}

// 恢复已保存的会话到内存（续跑超分/视频）
func (h *Handler) RestoreRun(c *gin.Context) {
	runID := c.Param("run_id")
	run, err := models.GetRunByID(h.DB, runID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "快照未找到: " + err.Error()})
		return
	}

	aiKey, speechKey, upscaleKey, voiceID := h.resolveCredentials()
	o := service.NewOrchestrator(h.Cfg, h.Analyzer, h.Gen, h.saver(), service.OrchestratorOptions{
		RunID:      run.ID,
		Title:      run.Title,
		BodyText:   run.Script,
		AIKey:      aiKey,
		SpeechKey:  speechKey,
		UpscaleKey: upscaleKey,
		VoiceID:    voiceID,
	})
	o.RestoreFrom(run)
	h.Sessions.Put(o)

	c.JSON(http.StatusOK, o.State())
}

// 删除持久化快照（同时移除内存会话）
func (h *Handler) DeleteRun(c *gin.Context) {
	runID := c.Param("run_id")
	if o, ok := h.Sessions.Get(runID); ok {
		o.Cancel()
		h.Sessions.Delete(runID)
	}
	if err := models.DeleteRunByID(h.DB, runID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "会话已删除"})
}

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"SceneStudio-server/service"
)

// 触发计划阶段（分段 + 提示词分析，异步执行）
func (h *Handler) PlanRun(c *gin.Context) {
	runID := c.Param("run_id")
	if _, ok := h.Sessions.Get(runID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话未找到: " + runID})
		return
	}
	if err := h.Queue.Enqueue(service.TypePlanRun, service.PipelinePayload{RunID: runID}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "计划任务入队失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "message": "计划任务已创建"})
}

// 确认计划，进入生产阶段；不自动触发任何生成
func (h *Handler) ConfirmRun(c *gin.Context) {
	runID := c.Param("run_id")
	o, ok := h.Sessions.Get(runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话未找到: " + runID})
		return
	}
	if err := o.Confirm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, o.State())
}

// 触发批量操作：images | tts | upscale
func (h *Handler) StartBatch(c *gin.Context) {
	runID := c.Param("run_id")
	kind := c.Param("kind")

	switch kind {
	case service.BatchImages, service.BatchTTS, service.BatchUpscale:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "不支持的批量类型: " + kind})
		return
	}
	if _, ok := h.Sessions.Get(runID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话未找到: " + runID})
		return
	}
	if err := h.Queue.Enqueue(service.TypeBatchRun, service.PipelinePayload{RunID: runID, Kind: kind}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "批量任务入队失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "kind": kind, "message": "批量任务已创建"})
}

// 单分镜操作：image | video | audio | upscale
func (h *Handler) SceneOp(c *gin.Context) {
	runID := c.Param("run_id")
	kind := c.Param("kind")
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的分镜序号"})
		return
	}

	switch kind {
	case "image", "video", "audio", "upscale":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "不支持的操作类型: " + kind})
		return
	}
	if _, ok := h.Sessions.Get(runID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话未找到: " + runID})
		return
	}
	if err := h.Queue.Enqueue(service.TypeSceneOp, service.PipelinePayload{RunID: runID, Kind: kind, Index: index}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "任务入队失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "kind": kind, "index": index, "message": "任务已创建"})
}

// 取消当前批量；进行中的外部调用允许完成
func (h *Handler) CancelRun(c *gin.Context) {
	runID := c.Param("run_id")
	o, ok := h.Sessions.Get(runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话未找到: " + runID})
		return
	}
	cancelled := o.Cancel()
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "cancelled": cancelled})
}

// 打包全部已生成素材为 zip
func (h *Handler) PackageRun(c *gin.Context) {
	runID := c.Param("run_id")
	if _, ok := h.Sessions.Get(runID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "会话未找到: " + runID})
		return
	}
	if err := h.Queue.Enqueue(service.TypePackageRun, service.PipelinePayload{RunID: runID}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "打包任务入队失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "message": "打包任务已创建"})
}

package routers

import (
	"github.com/gin-gonic/gin"

	"SceneStudio-server/routers/api"
)

func InitRouter(h *api.Handler) *gin.Engine {
	r := gin.Default()
	v1 := r.Group("/v1/api")
	{
		v1.POST("/runs", h.CreateRun)
		v1.GET("/runs", h.ListRuns)
		v1.GET("/runs/:run_id", h.GetRun)
		v1.DELETE("/runs/:run_id", h.DeleteRun)
		v1.POST("/runs/:run_id/plan", h.PlanRun)
		v1.POST("/runs/:run_id/confirm", h.ConfirmRun)
		v1.POST("/runs/:run_id/batch/:kind", h.StartBatch)
		v1.POST("/runs/:run_id/scenes/:index/:kind", h.SceneOp)
		v1.POST("/runs/:run_id/cancel", h.CancelRun)
		v1.POST("/runs/:run_id/package", h.PackageRun)
		v1.POST("/runs/:run_id/save", h.SaveRun)
		v1.POST("/runs/:run_id/restore", h.RestoreRun)
		v1.POST("/tools/refine", h.RefineScript)
		v1.POST("/tools/thumbnail", h.ThumbnailText)
		v1.GET("/settings", h.GetSettings)
		v1.PUT("/settings", h.PutSettings)
	}
	r.GET("/runs/:run_id/progress/wss", h.RunProgressWebSocket)
	return r
}

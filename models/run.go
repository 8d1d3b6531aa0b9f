package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 会话状态常量（流水线状态机，按顺序推进）
const (
	RunStatusIdle      = "idle"       // 空闲，未开始计划
	RunStatusPlanning  = "planning"   // 正在分段 + 生成提示词
	RunStatusPlanReady = "plan_ready" // 计划完成，等待用户确认
	RunStatusProducing = "producing"  // 已确认，逐分镜生成素材
)

// Run 一次完整生产会话的快照。Scenes 为深拷贝，持久层不会看到中间态。
type Run struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title      string    `json:"title"`
	Script     string    `gorm:"type:longtext" json:"script"`
	Scenes     SceneList `gorm:"type:json" json:"scenes"`
	SceneCount int       `json:"sceneCount"`
	UpscaleKey string    `json:"upscaleKey"` // 续跑超分所需的凭证
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Run) TableName() string {
	return "run"
}

// RunSummary 列表接口只需要的摘要字段
type RunSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	SceneCount int       `json:"sceneCount"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// SaveRun 插入或整体覆盖快照（同一 run 反复保存）
func SaveRun(db *gorm.DB, r *Run) error {
	r.UpdatedAt = time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = r.UpdatedAt
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "script", "scenes", "scene_count", "upscale_key", "status", "updated_at",
		}),
	}).Create(r).Error
}

func GetRunByID(db *gorm.DB, id string) (*Run, error) {
	var r Run
	if err := db.First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func ListRuns(db *gorm.DB) ([]RunSummary, error) {
	var res []RunSummary
	err := db.Model(&Run{}).
		Select("id, title, scene_count, status, created_at, updated_at").
		Order("created_at DESC").
		Scan(&res).Error
	return res, err
}

func DeleteRunByID(db *gorm.DB, id string) error {
	return db.Delete(&Run{}, "id = ?", id).Error
}

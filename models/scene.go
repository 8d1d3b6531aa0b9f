package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Scene 流水线的最小生产单元：一段台词文本及其派生产物。
// Index 从 1 开始，计划确认后不再增删，顺序固定。
type Scene struct {
	Index          int    `json:"index"`
	OriginalText   string `json:"originalText"` // 原文片段，下游任何阶段不得改写
	VisualPrompt   string `json:"visualPrompt"`
	MotionPrompt   string `json:"motionPrompt"`
	IsIntroSegment bool   `json:"isIntroSegment"` // 计划阶段确定，之后不可变
	MediaUrl       string `json:"mediaUrl"`       // 生图成功后写入；超分结果原地覆盖
	VideoUrl       string `json:"videoUrl"`
	AudioUrl       string `json:"audioUrl"`

	// 处理中标记，同一分镜同类操作同一时刻至多一个
	ImagePending   bool `json:"imagePending,omitempty"`
	VideoPending   bool `json:"videoPending,omitempty"`
	AudioPending   bool `json:"audioPending,omitempty"`
	UpscalePending bool `json:"upscalePending,omitempty"`
}

// SceneList 以 JSON 列形式存入 run 表
type SceneList []Scene

// 实现 driver.Valuer 接口: Go Struct -> JSON String (存入数据库)
func (l SceneList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// 实现 sql.Scanner 接口: JSON String -> Go Struct (从数据库读取)
func (l *SceneList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(bytes, l)
}

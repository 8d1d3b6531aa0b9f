package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 本地持久化配置的固定键名，启动时读取，变更时写回
const (
	SettingAIKey      = "ai_api_key"
	SettingSpeechKey  = "speech_api_key"
	SettingUpscaleKey = "upscale_api_key"
	SettingVoiceID    = "voice_id"
)

type Setting struct {
	Key       string    `gorm:"primaryKey;type:varchar(64)" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Setting) TableName() string {
	return "setting"
}

func GetSetting(db *gorm.DB, key string) (string, error) {
	var s Setting
	if err := db.First(&s, "`key` = ?", key).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return s.Value, nil
}

func PutSetting(db *gorm.DB, key, value string) error {
	s := Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&s).Error
}

// AllSettings 返回全部固定键的当前值（不存在的键为空串）
func AllSettings(db *gorm.DB) (map[string]string, error) {
	res := map[string]string{
		SettingAIKey:      "",
		SettingSpeechKey:  "",
		SettingUpscaleKey: "",
		SettingVoiceID:    "",
	}
	var rows []Setting
	if err := db.Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, s := range rows {
		res[s.Key] = s.Value
	}
	return res, nil
}

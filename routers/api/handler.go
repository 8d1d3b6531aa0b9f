package api

import (
	"os"

	"gorm.io/gorm"

	"SceneStudio-server/config"
	"SceneStudio-server/models"
	"SceneStudio-server/service"
)

// Handler 聚合各处理函数的依赖，由 main 组装后传入路由
type Handler struct {
	Cfg      *config.Config
	DB       *gorm.DB
	Sessions *service.SessionRegistry
	Queue    *service.Queue
	Analyzer *service.Analyzer
	Gen      *service.Generators
}

func NewHandler(cfg *config.Config, db *gorm.DB, sessions *service.SessionRegistry, queue *service.Queue, analyzer *service.Analyzer, gen *service.Generators) *Handler {
	return &Handler{
		Cfg:      cfg,
		DB:       db,
		Sessions: sessions,
		Queue:    queue,
		Analyzer: analyzer,
		Gen:      gen,
	}
}

// gormSaver 持久化网关的落地实现
type gormSaver struct {
	db *gorm.DB
}

func (g *gormSaver) Save(r *models.Run) error {
	return models.SaveRun(g.db, r)
}

func (h *Handler) saver() service.RunSaver {
	return &gormSaver{db: h.DB}
}

// resolveCredentials 每次建会话时解析凭证，settings 表的改动即时生效
func (h *Handler) resolveCredentials() (aiKey, speechKey, upscaleKey, voiceID string) {
	stored, err := models.AllSettings(h.DB)
	if err != nil {
		stored = map[string]string{}
	}
	return credentialsFrom(h.Cfg, stored)
}

// credentialsFrom 密钥取值顺序：环境变量 > settings 表 > 配置文件。
// 配置文件里写了密钥时，settings 表的新值依然要生效。
func credentialsFrom(cfg *config.Config, stored map[string]string) (aiKey, speechKey, upscaleKey, voiceID string) {
	aiKey = resolveKey(os.Getenv(config.EnvAIKey), stored[models.SettingAIKey], cfg.AI.APIKey)
	speechKey = resolveKey(os.Getenv(config.EnvSpeechKey), stored[models.SettingSpeechKey], cfg.Speech.APIKey)
	upscaleKey = resolveKey(os.Getenv(config.EnvUpscaleKey), stored[models.SettingUpscaleKey], cfg.Upscale.APIKey)
	voiceID = resolveKey("", stored[models.SettingVoiceID], cfg.Speech.VoiceID)
	return
}

func resolveKey(envVal, storedVal, fileVal string) string {
	if envVal != "" {
		return envVal
	}
	if storedVal != "" {
		return storedVal
	}
	return fileVal
}

package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"SceneStudio-server/config"
	"SceneStudio-server/models"
)

func TestCredentialResolutionOrder(t *testing.T) {
	t.Setenv(config.EnvAIKey, "env-ai")
	t.Setenv(config.EnvSpeechKey, "")
	t.Setenv(config.EnvUpscaleKey, "")

	cfg := &config.Config{}
	cfg.AI.APIKey = "file-ai"
	cfg.Speech.APIKey = "file-speech"
	cfg.Speech.VoiceID = "file-voice"

	stored := map[string]string{
		models.SettingAIKey:   "stored-ai",
		models.SettingVoiceID: "stored-voice",
	}

	aiKey, speechKey, upscaleKey, voiceID := credentialsFrom(cfg, stored)
	assert.Equal(t, "env-ai", aiKey)
	assert.Equal(t, "file-speech", speechKey)
	assert.Equal(t, "", upscaleKey)
	assert.Equal(t, "stored-voice", voiceID)
}

// 配置文件里写了密钥时，settings 表的新值必须覆盖它
func TestStoredCredentialBeatsFileValue(t *testing.T) {
	t.Setenv(config.EnvAIKey, "")

	cfg := &config.Config{}
	cfg.AI.APIKey = "file-ai"

	stored := map[string]string{models.SettingAIKey: "stored-ai"}
	aiKey, _, _, _ := credentialsFrom(cfg, stored)
	assert.Equal(t, "stored-ai", aiKey)
}

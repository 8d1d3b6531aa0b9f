package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	MinIO struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
		Domain    string `yaml:"domain"`
	} `yaml:"minio"`
	AI struct {
		BaseURL    string `yaml:"base_url"` // OpenAI 兼容网关地址
		APIKey     string `yaml:"api_key"`
		Model      string `yaml:"model"`
		ImageModel string `yaml:"image_model"`
	} `yaml:"ai"`
	Speech struct {
		API     string `yaml:"api"`
		APIKey  string `yaml:"api_key"`
		VoiceID string `yaml:"voice_id"`
	} `yaml:"speech"`
	Upscale struct {
		API    string `yaml:"api"`
		APIKey string `yaml:"api_key"`
	} `yaml:"upscale"`
	Video struct {
		WorkerAddr string `yaml:"worker_addr"` // 图生视频 worker 地址
	} `yaml:"video"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// PipelineConfig 流水线节奏参数，零值由 ApplyDefaults 填充
type PipelineConfig struct {
	IntroGroupSize   int  `yaml:"intro_group_size"`
	BodyGroupSize    int  `yaml:"body_group_size"`
	AnalyzeBatchSize int  `yaml:"analyze_batch_size"`
	ImagePaceSeconds int  `yaml:"image_pace_seconds"`
	ImageRetries     int  `yaml:"image_retries"`
	ImageRetryDelay  int  `yaml:"image_retry_delay_seconds"`
	VideoPollSeconds int  `yaml:"video_poll_seconds"`
	VideoPollMax     int  `yaml:"video_poll_max_attempts"`
	AutoSaveBatch    bool `yaml:"auto_save_after_batch"`
	AutoSaveImage    bool `yaml:"auto_save_single_image"`
	AutoSaveOther    bool `yaml:"auto_save_other_ops"`
}

func (p *PipelineConfig) ApplyDefaults() {
	if p.IntroGroupSize <= 0 {
		p.IntroGroupSize = 2
	}
	if p.BodyGroupSize <= 0 {
		p.BodyGroupSize = 4
	}
	if p.AnalyzeBatchSize <= 0 {
		p.AnalyzeBatchSize = 4
	}
	if p.ImagePaceSeconds <= 0 {
		p.ImagePaceSeconds = 4
	}
	if p.ImageRetries <= 0 {
		p.ImageRetries = 3
	}
	if p.ImageRetryDelay <= 0 {
		p.ImageRetryDelay = 2
	}
	if p.VideoPollSeconds <= 0 {
		p.VideoPollSeconds = 10
	}
	if p.VideoPollMax <= 0 {
		p.VideoPollMax = 90
	}
}

// 密钥对应的环境变量名
const (
	EnvAIKey      = "AI_API_KEY"
	EnvSpeechKey  = "SPEECH_API_KEY"
	EnvUpscaleKey = "UPSCALE_API_KEY"
)

// LoadConfig 读取 YAML 配置并应用默认值，由 main 显式传递给各组件。
// 这里只把环境变量合并进启动期配置；运行时完整的取值顺序
// （环境变量 > settings 表 > 配置文件）在 API 层解析。
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("配置文件读取失败: %w", err)
	}
	defer f.Close()

	cfg := &Config{}
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("配置文件解析失败: %w", err)
	}
	cfg.Pipeline.ApplyDefaults()

	// 环境变量优先于文件内的密钥
	if v := os.Getenv(EnvAIKey); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv(EnvSpeechKey); v != "" {
		cfg.Speech.APIKey = v
	}
	if v := os.Getenv(EnvUpscaleKey); v != "" {
		cfg.Upscale.APIKey = v
	}
	return cfg, nil
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"SceneStudio-server/config"
)

// 图像提示词统一追加的约束（人物一致性 + 语言约束在服务端拼接）
const imagePromptSuffix = " -- " + styleDirective + " No text, no captions, no watermark."

// MediaStore 生成产物的落地面，*Storage 天然满足
type MediaStore interface {
	UploadBytes(ctx context.Context, data []byte, objectName string) (string, error)
	Upload(ctx context.Context, reader io.Reader, objectName string, size int64) (string, error)
}

// Generators 各媒体能力的无状态封装；不读写 Scene Store，
// 结果一律由编排器写回。
type Generators struct {
	cfg     *config.Config
	ai      *OpenAIClient
	storage MediaStore
	http    *http.Client

	// 测试替换点
	imageGen ImageGenerator
	textGen  TextGenerator
}

func NewGenerators(cfg *config.Config, ai *OpenAIClient, storage *Storage) *Generators {
	return &Generators{
		cfg:      cfg,
		ai:       ai,
		storage:  storage,
		http:     &http.Client{Timeout: 60 * time.Second},
		imageGen: ai,
		textGen:  ai,
	}
}

// ============================================================================
// 图像生成（有界重试）
// ============================================================================

// SceneImage 文生图并落对象存储，返回资源 URL。
// 任意失败等待固定间隔后重试，超出上限后把最后一次错误上抛。
func (g *Generators) SceneImage(ctx context.Context, runID string, index int, visualPrompt string) (string, error) {
	retries := g.cfg.Pipeline.ImageRetries
	delay := time.Duration(g.cfg.Pipeline.ImageRetryDelay) * time.Second

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			log.Printf("生图重试 %d/%d (scene %d): %v", attempt, retries, index, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		data, err := g.imageGen.GenerateImage(ctx, visualPrompt+imagePromptSuffix)
		if err != nil {
			lastErr = err
			continue
		}
		objectName := fmt.Sprintf("runs/%s/images/scene-%d.png", runID, index)
		url, err := g.storage.UploadBytes(ctx, data, objectName)
		if err != nil {
			lastErr = err
			continue
		}
		return url, nil
	}
	return "", lastErr
}

// ============================================================================
// 视频生成（提交 + 轮询，带次数上限）
// ============================================================================

type workerJob struct {
	ID          string `json:"id"`
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
	Error       string `json:"error"`
	ResourceUrl string `json:"resource_url"`
}

// SceneVideo 图生视频：提交 worker 任务后按固定间隔轮询，
// 超出 VideoPollMax 次返回 ErrPollTimeout。
func (g *Generators) SceneVideo(ctx context.Context, runID string, index int, imageURL, motionPrompt string) (string, error) {
	jobID, err := g.submitVideoJob(ctx, imageURL, motionPrompt)
	if err != nil {
		return "", err
	}
	log.Printf("视频任务已提交，Job ID: %s，开始轮询结果...", jobID)

	resourceURL, err := g.pollVideoJob(ctx, jobID)
	if err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("runs/%s/videos/scene-%d.mp4", runID, index)
	return g.rehost(ctx, resourceURL, objectName)
}

func (g *Generators) submitVideoJob(ctx context.Context, imageURL, motionPrompt string) (string, error) {
	reqBody, _ := json.Marshal(map[string]interface{}{
		"image_url":     imageURL,
		"motion_prompt": motionPrompt,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Video.WorkerAddr+"/v1/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("%w: worker status code: %d", ErrTransient, resp.StatusCode)
	}

	var job workerJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return "", fmt.Errorf("%w: decode submit response: %v", ErrMalformedResponse, err)
	}
	// 优先根节点 id，其次 job_id
	if job.ID != "" {
		return job.ID, nil
	}
	if job.JobID != "" {
		return job.JobID, nil
	}
	return "", fmt.Errorf("%w: response missing 'id'", ErrMalformedResponse)
}

func (g *Generators) pollVideoJob(ctx context.Context, jobID string) (string, error) {
	jobURL := fmt.Sprintf("%s/v1/jobs/%s", g.cfg.Video.WorkerAddr, jobID)
	interval := time.Duration(g.cfg.Pipeline.VideoPollSeconds) * time.Second
	maxAttempts := g.cfg.Pipeline.VideoPollMax

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("polling canceled: %w", ctx.Err())
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, jobURL, nil)
			if err != nil {
				return "", err
			}
			resp, err := g.http.Do(req)
			if err != nil {
				log.Printf("轮询网络错误(重试中): %v", err)
				continue
			}
			var job workerJob
			err = json.NewDecoder(resp.Body).Decode(&job)
			resp.Body.Close()
			if err != nil {
				log.Printf("解析轮询响应失败(重试中): %v", err)
				continue
			}

			switch job.Status {
			case "finished", "success", "completed", "succeeded":
				if job.ResourceUrl == "" {
					return "", fmt.Errorf("%w: job finished without resource_url", ErrGenerationFailed)
				}
				return job.ResourceUrl, nil
			case "failed", "error":
				return "", fmt.Errorf("%w: worker reported failure: %s", ErrGenerationFailed, job.Error)
			}
			// 其他状态继续轮询
		}
	}
	return "", fmt.Errorf("%w: job %s exceeded %d poll attempts", ErrPollTimeout, jobID, maxAttempts)
}

// ============================================================================
// TTS（单次调用，不重试）
// ============================================================================

// SceneSpeech 文本转语音并落对象存储
func (g *Generators) SceneSpeech(ctx context.Context, runID string, index int, text, voiceID, apiKey string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{
		"text":  text,
		"voice": voiceID,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Speech.API, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: speech status code: %d", ErrGenerationFailed, resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio payload", ErrGenerationFailed)
	}

	objectName := fmt.Sprintf("runs/%s/audio/scene-%d.mp3", runID, index)
	return g.storage.UploadBytes(ctx, audio, objectName)
}

// ============================================================================
// 超分（凭证前置校验在调用方）
// ============================================================================

// UpscaleImage 对已有图片超分，结果覆盖同名对象，URL 原地替换
func (g *Generators) UpscaleImage(ctx context.Context, runID string, index int, imageURL, apiKey string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{
		"image_url": imageURL,
		"scale":     "2",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Upscale.API, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: upscale status code: %d", ErrGenerationFailed, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty upscale payload", ErrGenerationFailed)
	}

	// 与原图同名，旧对象被覆盖
	objectName := fmt.Sprintf("runs/%s/images/scene-%d.png", runID, index)
	return g.storage.UploadBytes(ctx, data, objectName)
}

// ============================================================================
// 单次文本工具：封面标题 / 脚本润色
// ============================================================================

type ThumbnailCopy struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

var (
	thumbTitleAliases    = []string{"title", "main_title", "headline"}
	thumbSubtitleAliases = []string{"subtitle", "sub_title", "tagline"}
)

// ThumbnailText 生成封面文案，结构化解析复用 ExtractJSON
func (g *Generators) ThumbnailText(ctx context.Context, topic string) (*ThumbnailCopy, error) {
	prompt := fmt.Sprintf(
		"Write a short punchy video thumbnail title (max 8 words) and subtitle (max 12 words) for this script.\n"+
			"Return ONLY a JSON object with fields \"title\" and \"subtitle\".\n\n%s", topic)
	raw, err := g.textGen.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var item map[string]interface{}
	if err := ExtractJSON(raw, &item); err != nil {
		return nil, err
	}
	return &ThumbnailCopy{
		Title:    pickString(item, thumbTitleAliases, ""),
		Subtitle: pickString(item, thumbSubtitleAliases, ""),
	}, nil
}

// RefineScript 自由文本润色，原样返回模型输出
func (g *Generators) RefineScript(ctx context.Context, script string) (string, error) {
	prompt := "Polish the following narration script. Keep the language, tone and meaning, " +
		"improve flow and readability. Return only the polished script.\n\n" + script
	return g.textGen.GenerateText(ctx, prompt)
}

// rehost 下载外部资源并转存到对象存储
func (g *Generators) rehost(ctx context.Context, sourceURL, objectName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: download failed: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: download status: %d", ErrTransient, resp.StatusCode)
	}
	return g.storage.Upload(ctx, resp.Body, objectName, resp.ContentLength)
}

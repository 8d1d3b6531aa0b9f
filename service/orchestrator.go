package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"SceneStudio-server/config"
	"SceneStudio-server/models"
)

// 批量操作种类
const (
	BatchImages  = "images"
	BatchTTS     = "tts"
	BatchUpscale = "upscale"
)

// MediaGenerator 编排器依赖的媒体能力面，便于测试注入
type MediaGenerator interface {
	SceneImage(ctx context.Context, runID string, index int, visualPrompt string) (string, error)
	SceneVideo(ctx context.Context, runID string, index int, imageURL, motionPrompt string) (string, error)
	SceneSpeech(ctx context.Context, runID string, index int, text, voiceID, apiKey string) (string, error)
	UpscaleImage(ctx context.Context, runID string, index int, imageURL, apiKey string) (string, error)
}

// RunSaver 持久化网关，只接收深拷贝快照
type RunSaver interface {
	Save(r *models.Run) error
}

// SceneAnalyzer 计划阶段的提示词分析面
type SceneAnalyzer interface {
	Analyze(ctx context.Context, sceneTexts []string, onProgress func(done, total int)) ([]PlannedScene, error)
}

// Progress 对外可见的进度（websocket 推送用）
type Progress struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
}

// Orchestrator 一次生产会话：状态机 + 分镜仓 + 批量节奏控制。
// 状态推进 idle -> planning -> plan_ready -> producing。
type Orchestrator struct {
	runID     string
	title     string
	introText string
	bodyText  string

	cfg      *config.Config
	analyzer SceneAnalyzer
	gen      MediaGenerator
	saver    RunSaver

	// 由 main 解析后的凭证（环境变量 > settings 表 > 配置文件）
	aiKey      string
	speechKey  string
	upscaleKey string
	voiceID    string

	store *SceneStore

	stateMu     sync.Mutex
	status      string
	progress    Progress
	lastError   string
	packageUrl  string
	batchCancel context.CancelFunc
	createdAt   time.Time
}

// SessionState 对外暴露的会话视图（API/websocket 用）
type SessionState struct {
	RunID      string           `json:"runId"`
	Title      string           `json:"title"`
	Status     string           `json:"status"`
	Progress   Progress         `json:"progress"`
	LastError  string           `json:"lastError,omitempty"`
	PackageUrl string           `json:"packageUrl,omitempty"`
	Scenes     models.SceneList `json:"scenes"`
}

type OrchestratorOptions struct {
	RunID      string
	Title      string
	IntroText  string
	BodyText   string
	AIKey      string
	SpeechKey  string
	UpscaleKey string
	VoiceID    string
}

func NewOrchestrator(cfg *config.Config, analyzer SceneAnalyzer, gen MediaGenerator, saver RunSaver, opts OrchestratorOptions) *Orchestrator {
	return &Orchestrator{
		runID:      opts.RunID,
		title:      opts.Title,
		introText:  opts.IntroText,
		bodyText:   opts.BodyText,
		cfg:        cfg,
		analyzer:   analyzer,
		gen:        gen,
		saver:      saver,
		aiKey:      opts.AIKey,
		speechKey:  opts.SpeechKey,
		upscaleKey: opts.UpscaleKey,
		voiceID:    opts.VoiceID,
		store:      NewSceneStore(),
		status:     models.RunStatusIdle,
		createdAt:  time.Now(),
	}
}

func (o *Orchestrator) RunID() string { return o.runID }

// State 当前状态 + 进度 + 分镜深拷贝
func (o *Orchestrator) State() SessionState {
	o.stateMu.Lock()
	st := SessionState{
		RunID:      o.runID,
		Title:      o.title,
		Status:     o.status,
		Progress:   o.progress,
		LastError:  o.lastError,
		PackageUrl: o.packageUrl,
	}
	o.stateMu.Unlock()
	st.Scenes = o.store.Snapshot()
	return st
}

// SetPackageUrl 打包完成后由处理器写入
func (o *Orchestrator) SetPackageUrl(url string) {
	o.stateMu.Lock()
	o.packageUrl = url
	o.stateMu.Unlock()
}

func (o *Orchestrator) setProgress(stage string, done, total int) {
	o.stateMu.Lock()
	o.progress = Progress{
		Stage:   stage,
		Message: fmt.Sprintf("%d/%d", done, total),
		Done:    done,
		Total:   total,
	}
	o.stateMu.Unlock()
}

func (o *Orchestrator) setError(msg string) {
	o.stateMu.Lock()
	o.lastError = msg
	o.stateMu.Unlock()
}

// ============================================================================
// 计划阶段
// ============================================================================

// Plan 分段 + 提示词分析。前置条件不满足立即失败，不进入 planning；
// 任何失败回到 idle，不提交部分分镜。
func (o *Orchestrator) Plan(ctx context.Context) error {
	if strings.TrimSpace(o.introText)+strings.TrimSpace(o.bodyText) == "" {
		return fmt.Errorf("%w: empty source text", ErrPreconditionFailed)
	}
	if o.aiKey == "" {
		return fmt.Errorf("%w: missing primary provider credential", ErrPreconditionFailed)
	}

	o.stateMu.Lock()
	if o.status != models.RunStatusIdle {
		status := o.status
		o.stateMu.Unlock()
		return fmt.Errorf("%w: cannot plan from status %q", ErrPreconditionFailed, status)
	}
	o.status = models.RunStatusPlanning
	o.lastError = ""
	o.stateMu.Unlock()

	scenes, err := o.plan(ctx)
	if err != nil {
		o.stateMu.Lock()
		o.status = models.RunStatusIdle
		o.lastError = err.Error()
		o.stateMu.Unlock()
		return err
	}

	o.store.Replace(scenes)
	o.stateMu.Lock()
	o.status = models.RunStatusPlanReady
	o.stateMu.Unlock()
	log.Printf("Run %s: 计划完成，共 %d 个分镜", o.runID, len(scenes))
	return nil
}

func (o *Orchestrator) plan(ctx context.Context) ([]models.Scene, error) {
	// 开场文本和正文使用不同的分组大小，开场分镜排在最前
	introTexts := SegmentText(o.introText, o.cfg.Pipeline.IntroGroupSize)
	bodyTexts := SegmentText(o.bodyText, o.cfg.Pipeline.BodyGroupSize)
	sceneTexts := append(append([]string{}, introTexts...), bodyTexts...)
	if len(sceneTexts) == 0 {
		return nil, fmt.Errorf("%w: source text yields no scenes", ErrPreconditionFailed)
	}

	planned, err := o.analyzer.Analyze(ctx, sceneTexts, func(done, total int) {
		o.setProgress("planning", done, total)
	})
	if err != nil {
		return nil, err
	}

	scenes := make([]models.Scene, len(planned))
	for i, p := range planned {
		scenes[i] = models.Scene{
			Index:          i + 1,
			OriginalText:   p.SourceText,
			VisualPrompt:   p.VisualPrompt,
			MotionPrompt:   p.MotionPrompt,
			IsIntroSegment: i < len(introTexts),
		}
	}
	return scenes, nil
}

// RestoreFrom 从持久化快照恢复会话（续跑超分/视频等）；
// 带分镜的快照直接进入 producing，无需重新计划确认
func (o *Orchestrator) RestoreFrom(run *models.Run) {
	o.store.Replace(run.Scenes)
	o.stateMu.Lock()
	if len(run.Scenes) > 0 {
		o.status = models.RunStatusProducing
	}
	if run.UpscaleKey != "" {
		o.upscaleKey = run.UpscaleKey
	}
	if !run.CreatedAt.IsZero() {
		o.createdAt = run.CreatedAt
	}
	o.stateMu.Unlock()
}

// Confirm 用户确认计划，只推进状态，不触发任何生成
func (o *Orchestrator) Confirm() error {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	if o.status != models.RunStatusPlanReady {
		return fmt.Errorf("%w: cannot confirm from status %q", ErrPreconditionFailed, o.status)
	}
	o.status = models.RunStatusProducing
	return nil
}

// ============================================================================
// 批量生产
// ============================================================================

// RunBatch 对缺少目标素材的分镜按 index 升序逐个生成。
// 单个分镜失败只记录并继续，整批不报错；对外只保留最后一次错误。
// 取消只在分镜边界检查，进行中的外部调用不会被打断。
func (o *Orchestrator) RunBatch(ctx context.Context, kind string) error {
	o.stateMu.Lock()
	if o.status != models.RunStatusProducing {
		status := o.status
		o.stateMu.Unlock()
		return fmt.Errorf("%w: batch requires producing status, got %q", ErrPreconditionFailed, status)
	}
	if o.batchCancel != nil {
		o.stateMu.Unlock()
		return fmt.Errorf("%w: another batch is running", ErrPreconditionFailed)
	}
	// 取消令牌独立于调用方 ctx：只用于边界检查和间隔等待
	batchCtx, cancel := context.WithCancel(context.Background())
	o.batchCancel = cancel
	o.stateMu.Unlock()

	defer func() {
		o.stateMu.Lock()
		o.batchCancel = nil
		o.stateMu.Unlock()
		cancel()
	}()

	if kind == BatchUpscale && o.upscaleKey == "" {
		return fmt.Errorf("%w: missing upscale credential", ErrPreconditionFailed)
	}

	pending := o.pendingIndices(kind)
	total := len(pending)
	log.Printf("Run %s: %s 批量开始，共 %d 个分镜待处理", o.runID, kind, total)

	var lastErr string
	cancelled := false
	for i, index := range pending {
		if batchCtx.Err() != nil {
			cancelled = true
			log.Printf("Run %s: %s 批量在分镜 %d 前被取消", o.runID, kind, index)
			break
		}
		// 节奏限制：首个调用之后等待固定间隔
		if i > 0 {
			if !o.pace(batchCtx, kind) {
				cancelled = true
				break
			}
		}

		if err := o.generateOne(ctx, kind, index); err != nil {
			lastErr = fmt.Sprintf("scene %d: %v", index, err)
			log.Printf("Run %s: 分镜 %d %s 失败: %v", o.runID, index, kind, err)
		}
		o.setProgress(kind, i+1, total)
	}

	if lastErr != "" {
		o.setError(lastErr)
	}

	// 自动保存：默认仅图像批量；其余种类由配置开关决定
	if !cancelled && o.shouldAutoSave(kind, false) {
		o.autoSave()
	}
	return nil
}

// pendingIndices 目标字段为空的分镜 index，升序
func (o *Orchestrator) pendingIndices(kind string) []int {
	var pending []int
	for _, sc := range o.store.Snapshot() {
		switch kind {
		case BatchImages:
			if sc.MediaUrl == "" {
				pending = append(pending, sc.Index)
			}
		case BatchTTS:
			if sc.AudioUrl == "" {
				pending = append(pending, sc.Index)
			}
		case BatchUpscale:
			// 超分只处理已有图片的分镜
			if sc.MediaUrl != "" {
				pending = append(pending, sc.Index)
			}
		}
	}
	return pending
}

func (o *Orchestrator) pace(ctx context.Context, kind string) bool {
	seconds := 1
	if kind == BatchImages {
		seconds = o.cfg.Pipeline.ImagePaceSeconds
	}
	select {
	case <-time.After(time.Duration(seconds) * time.Second):
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) generateOne(ctx context.Context, kind string, index int) error {
	sc, err := o.store.Get(index)
	if err != nil {
		return err
	}
	switch kind {
	case BatchImages:
		o.markPending(index, kind, true)
		defer o.markPending(index, kind, false)
		url, err := o.gen.SceneImage(ctx, o.runID, index, sc.VisualPrompt)
		if err != nil {
			return err
		}
		return o.store.SetMediaUrl(index, url)
	case BatchTTS:
		o.markPending(index, kind, true)
		defer o.markPending(index, kind, false)
		url, err := o.gen.SceneSpeech(ctx, o.runID, index, sc.OriginalText, o.voiceID, o.speechKey)
		if err != nil {
			return err
		}
		return o.store.SetAudioUrl(index, url)
	case BatchUpscale:
		o.markPending(index, kind, true)
		defer o.markPending(index, kind, false)
		url, err := o.gen.UpscaleImage(ctx, o.runID, index, sc.MediaUrl, o.upscaleKey)
		if err != nil {
			return err
		}
		// 原地替换，不保留旧 URL
		return o.store.SetMediaUrl(index, url)
	}
	return fmt.Errorf("unknown batch kind: %s", kind)
}

func (o *Orchestrator) markPending(index int, kind string, v bool) {
	_ = o.store.Update(index, func(sc *models.Scene) {
		switch kind {
		case BatchImages:
			sc.ImagePending = v
		case BatchTTS:
			sc.AudioPending = v
		case BatchUpscale:
			sc.UpscalePending = v
		case "video":
			sc.VideoPending = v
		}
	})
}

// Cancel 协作式取消当前批量；进行中的调用允许跑完
func (o *Orchestrator) Cancel() bool {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	if o.batchCancel == nil {
		return false
	}
	o.batchCancel()
	return true
}

// ============================================================================
// 单分镜操作（独立于批量状态机）
// ============================================================================

// RegenerateImage 显式重生成，已有图片会被覆盖
func (o *Orchestrator) RegenerateImage(ctx context.Context, index int) error {
	sc, err := o.store.Get(index)
	if err != nil {
		return err
	}
	o.markPending(index, BatchImages, true)
	defer o.markPending(index, BatchImages, false)

	url, err := o.gen.SceneImage(ctx, o.runID, index, sc.VisualPrompt)
	if err != nil {
		o.setError(fmt.Sprintf("scene %d: %v", index, err))
		return err
	}
	if err := o.store.SetMediaUrl(index, url); err != nil {
		return err
	}
	if o.shouldAutoSave(BatchImages, true) {
		o.autoSave()
	}
	return nil
}

func (o *Orchestrator) GenerateVideo(ctx context.Context, index int) error {
	sc, err := o.store.Get(index)
	if err != nil {
		return err
	}
	if sc.MediaUrl == "" {
		return fmt.Errorf("%w: scene %d has no image yet", ErrPreconditionFailed, index)
	}
	o.markPending(index, "video", true)

	url, err := o.gen.SceneVideo(ctx, o.runID, index, sc.MediaUrl, sc.MotionPrompt)
	o.markPending(index, "video", false)
	if err != nil {
		o.setError(fmt.Sprintf("scene %d: %v", index, err))
		return err
	}
	if err := o.store.SetVideoUrl(index, url); err != nil {
		return err
	}
	if o.cfg.Pipeline.AutoSaveOther {
		o.autoSave()
	}
	return nil
}

func (o *Orchestrator) GenerateAudio(ctx context.Context, index int) error {
	sc, err := o.store.Get(index)
	if err != nil {
		return err
	}
	o.markPending(index, BatchTTS, true)

	url, err := o.gen.SceneSpeech(ctx, o.runID, index, sc.OriginalText, o.voiceID, o.speechKey)
	o.markPending(index, BatchTTS, false)
	if err != nil {
		o.setError(fmt.Sprintf("scene %d: %v", index, err))
		return err
	}
	if err := o.store.SetAudioUrl(index, url); err != nil {
		return err
	}
	if o.cfg.Pipeline.AutoSaveOther {
		o.autoSave()
	}
	return nil
}

// UpscaleScene 凭证校验在这里（调用方），不在生成器里
func (o *Orchestrator) UpscaleScene(ctx context.Context, index int) error {
	if o.upscaleKey == "" {
		return fmt.Errorf("%w: missing upscale credential", ErrPreconditionFailed)
	}
	sc, err := o.store.Get(index)
	if err != nil {
		return err
	}
	if sc.MediaUrl == "" {
		return fmt.Errorf("%w: scene %d has no image to upscale", ErrPreconditionFailed, index)
	}
	o.markPending(index, BatchUpscale, true)

	url, err := o.gen.UpscaleImage(ctx, o.runID, index, sc.MediaUrl, o.upscaleKey)
	o.markPending(index, BatchUpscale, false)
	if err != nil {
		o.setError(fmt.Sprintf("scene %d: %v", index, err))
		return err
	}
	if err := o.store.SetMediaUrl(index, url); err != nil {
		return err
	}
	if o.cfg.Pipeline.AutoSaveOther {
		o.autoSave()
	}
	return nil
}

// ============================================================================
// 保存
// ============================================================================

func (o *Orchestrator) shouldAutoSave(kind string, single bool) bool {
	if single {
		return o.cfg.Pipeline.AutoSaveImage
	}
	if kind == BatchImages {
		return o.cfg.Pipeline.AutoSaveBatch
	}
	return o.cfg.Pipeline.AutoSaveOther
}

func (o *Orchestrator) autoSave() {
	if err := o.Save(); err != nil {
		log.Printf("Run %s: 自动保存失败: %v", o.runID, err)
	}
}

// Save 向持久化网关推送深拷贝快照
func (o *Orchestrator) Save() error {
	if o.saver == nil {
		return nil
	}
	o.stateMu.Lock()
	status := o.status
	o.stateMu.Unlock()

	scenes := o.store.Snapshot()
	run := &models.Run{
		ID:         o.runID,
		Title:      o.title,
		Script:     strings.TrimSpace(o.introText + "\n\n" + o.bodyText),
		Scenes:     scenes,
		SceneCount: len(scenes),
		UpscaleKey: o.upscaleKey,
		Status:     status,
		CreatedAt:  o.createdAt,
	}
	return o.saver.Save(run)
}

// Store 仅供打包器读取快照使用
func (o *Orchestrator) Store() *SceneStore {
	return o.store
}

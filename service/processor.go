package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"SceneStudio-server/config"
)

// Processor 进程内任务消费者：从注册表取会话并驱动编排器。
// 业务失败已经体现在会话状态里，处理函数返回 nil 避免队列重试造成重复计费。
type Processor struct {
	cfg      *config.Config
	sessions *SessionRegistry
	packager *Packager
}

func NewProcessor(cfg *config.Config, sessions *SessionRegistry, packager *Packager) *Processor {
	return &Processor{cfg: cfg, sessions: sessions, packager: packager}
}

// StartProcessor 启动任务消费者
func (p *Processor) StartProcessor(concurrency int) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     p.cfg.Redis.Addr,
			Password: p.cfg.Redis.Password,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePlanRun, p.HandlePlan)
	mux.HandleFunc(TypeBatchRun, p.HandleBatch)
	mux.HandleFunc(TypeSceneOp, p.HandleSceneOp)
	mux.HandleFunc(TypePackageRun, p.HandlePackage)

	log.Printf("Starting Pipeline Processor with concurrency %d...", concurrency)
	go func() {
		if err := srv.Run(mux); err != nil {
			log.Fatalf("could not run server: %v", err)
		}
	}()
}

func (p *Processor) session(t *asynq.Task) (*Orchestrator, PipelinePayload, error) {
	var payload PipelinePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return nil, payload, fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	o, ok := p.sessions.Get(payload.RunID)
	if !ok {
		return nil, payload, fmt.Errorf("run session not found: %s: %w", payload.RunID, asynq.SkipRetry)
	}
	return o, payload, nil
}

func (p *Processor) HandlePlan(ctx context.Context, t *asynq.Task) error {
	o, payload, err := p.session(t)
	if err != nil {
		return err
	}
	log.Printf("Processing Plan: run=%s", payload.RunID)
	if err := o.Plan(ctx); err != nil {
		log.Printf("计划阶段失败 run=%s: %v", payload.RunID, err)
	}
	return nil
}

func (p *Processor) HandleBatch(ctx context.Context, t *asynq.Task) error {
	o, payload, err := p.session(t)
	if err != nil {
		return err
	}
	log.Printf("Processing Batch: run=%s kind=%s", payload.RunID, payload.Kind)
	if err := o.RunBatch(ctx, payload.Kind); err != nil {
		log.Printf("批量操作失败 run=%s kind=%s: %v", payload.RunID, payload.Kind, err)
	}
	return nil
}

func (p *Processor) HandleSceneOp(ctx context.Context, t *asynq.Task) error {
	o, payload, err := p.session(t)
	if err != nil {
		return err
	}
	log.Printf("Processing SceneOp: run=%s kind=%s index=%d", payload.RunID, payload.Kind, payload.Index)

	switch payload.Kind {
	case "image":
		err = o.RegenerateImage(ctx, payload.Index)
	case "video":
		err = o.GenerateVideo(ctx, payload.Index)
	case "audio":
		err = o.GenerateAudio(ctx, payload.Index)
	case "upscale":
		err = o.UpscaleScene(ctx, payload.Index)
	default:
		return fmt.Errorf("unknown scene op: %s: %w", payload.Kind, asynq.SkipRetry)
	}
	if err != nil {
		log.Printf("单分镜操作失败 run=%s kind=%s index=%d: %v", payload.RunID, payload.Kind, payload.Index, err)
	}
	return nil
}

func (p *Processor) HandlePackage(ctx context.Context, t *asynq.Task) error {
	o, payload, err := p.session(t)
	if err != nil {
		return err
	}
	log.Printf("Processing Package: run=%s", payload.RunID)

	url, err := p.packager.Package(ctx, payload.RunID, o.Store().Snapshot(), func(percent int) {
		o.setProgress("packaging", percent, 100)
	})
	if err != nil {
		// 归档整体失败需要对用户可见
		o.setError(fmt.Sprintf("packaging failed: %v", err))
		log.Printf("打包失败 run=%s: %v", payload.RunID, err)
		return nil
	}
	o.SetPackageUrl(url)
	log.Printf("打包完成 run=%s: %s", payload.RunID, url)
	return nil
}

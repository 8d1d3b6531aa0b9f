package service

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"SceneStudio-server/config"
)

const (
	TypePlanRun    = "pipeline:plan"
	TypeBatchRun   = "pipeline:batch"
	TypeSceneOp    = "pipeline:scene"
	TypePackageRun = "pipeline:package"
)

// PipelinePayload 队列任务载荷；Kind/Index 仅部分类型使用
type PipelinePayload struct {
	RunID string `json:"run_id"`
	Kind  string `json:"kind,omitempty"`
	Index int    `json:"index,omitempty"`
}

// Queue 任务入队客户端
type Queue struct {
	client *asynq.Client
}

func NewQueue(cfg *config.Config) *Queue {
	return &Queue{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		}),
	}
}

// Enqueue 通用入队；业务失败不靠队列重试（编排器内部自己控制重试）
func (q *Queue) Enqueue(taskType string, payload PipelinePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(taskType, body,
		asynq.MaxRetry(0),
		asynq.Timeout(30*time.Minute), // 批量生成较慢，设置较长超时
		asynq.Retention(24*time.Hour),
	)

	info, err := q.client.Enqueue(task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	log.Printf("[Queue] Task Enqueued: Type=%s, RunID=%s, ID=%s", taskType, payload.RunID, info.ID)
	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

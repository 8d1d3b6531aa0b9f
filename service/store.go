package service

import (
	"fmt"
	"sync"

	"SceneStudio-server/models"
)

// SceneStore 一次会话内全部分镜的内存态，编排器独占持有。
// 写操作按 index 做单字段替换（最后写入者生效），读侧只拿深拷贝。
type SceneStore struct {
	mu     sync.Mutex
	scenes []models.Scene
}

func NewSceneStore() *SceneStore {
	return &SceneStore{}
}

// Replace 计划确认前整体写入；之后分镜数固定不再增删
func (s *SceneStore) Replace(scenes []models.Scene) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes = make([]models.Scene, len(scenes))
	copy(s.scenes, scenes)
}

func (s *SceneStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scenes)
}

// Snapshot 返回深拷贝，持久层永远拿不到活引用
func (s *SceneStore) Snapshot() models.SceneList {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(models.SceneList, len(s.scenes))
	copy(out, s.scenes)
	return out
}

// Get 按 1 基下标取分镜副本
func (s *SceneStore) Get(index int) (models.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 1 || index > len(s.scenes) {
		return models.Scene{}, fmt.Errorf("scene index %d out of range (1..%d)", index, len(s.scenes))
	}
	return s.scenes[index-1], nil
}

// Update 对指定分镜做读-改-写，mutate 在锁内基于最新值执行
func (s *SceneStore) Update(index int, mutate func(*models.Scene)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 1 || index > len(s.scenes) {
		return fmt.Errorf("scene index %d out of range (1..%d)", index, len(s.scenes))
	}
	mutate(&s.scenes[index-1])
	return nil
}

func (s *SceneStore) SetMediaUrl(index int, url string) error {
	return s.Update(index, func(sc *models.Scene) { sc.MediaUrl = url })
}

func (s *SceneStore) SetVideoUrl(index int, url string) error {
	return s.Update(index, func(sc *models.Scene) { sc.VideoUrl = url })
}

func (s *SceneStore) SetAudioUrl(index int, url string) error {
	return s.Update(index, func(sc *models.Scene) { sc.AudioUrl = url })
}

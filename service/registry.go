package service

import "sync"

// SessionRegistry 进程内会话表：runID -> 编排器。
// 编排器独占各自的分镜仓，注册表只负责查找。
type SessionRegistry struct {
	mu sync.RWMutex
	m  map[string]*Orchestrator
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{m: make(map[string]*Orchestrator)}
}

func (r *SessionRegistry) Put(o *Orchestrator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[o.RunID()] = o
}

func (r *SessionRegistry) Get(runID string) (*Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.m[runID]
	return o, ok
}

func (r *SessionRegistry) Delete(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, runID)
}

package storage

import (
	"context"
	"sync"
	"time"

	"tyre-vision/internal/domain/entity"
	"tyre-vision/internal/domain/port"
)

// MemoryJobStore in-memory хранилище задач анализа
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*entity.Job
}

// NewMemoryJobStore создаёт новое in-memory хранилище
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[string]*entity.Job),
	}
}

// Put сохраняет новую задачу
func (s *MemoryJobStore) Put(ctx context.Context, job *entity.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

// Get возвращает задачу по ID
func (s *MemoryJobStore) Get(ctx context.Context, id string) (*entity.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, port.ErrJobNotFound
	}

	copied := *job
	return &copied, nil
}

// Update перезаписывает состояние задачи
func (s *MemoryJobStore) Update(ctx context.Context, job *entity.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; !exists {
		return port.ErrJobNotFound
	}

	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

// UpdateProgress обновляет прогресс выполняющейся задачи
func (s *MemoryJobStore) UpdateProgress(ctx context.Context, id string, progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[id]
	if !exists {
		return port.ErrJobNotFound
	}

	job.Progress = progress
	job.UpdatedAt = time.Now()
	return nil
}

// Проверка реализации интерфейса
var _ port.JobStore = (*MemoryJobStore)(nil)

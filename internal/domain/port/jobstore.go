package port

import (
	"context"
	"errors"

	"tyre-vision/internal/domain/entity"
)

// ErrJobNotFound задача с таким ID не найдена в хранилище.
var ErrJobNotFound = errors.New("job not found")

// JobStore интерфейс хранилища задач анализа.
type JobStore interface {
	// Put сохраняет новую задачу.
	Put(ctx context.Context, job *entity.Job) error

	// Get возвращает задачу по ID.
	Get(ctx context.Context, id string) (*entity.Job, error)

	// Update перезаписывает состояние задачи.
	Update(ctx context.Context, job *entity.Job) error

	// UpdateProgress обновляет только прогресс задачи.
	UpdateProgress(ctx context.Context, id string, progress float64) error
}

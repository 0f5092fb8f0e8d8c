package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tyre-vision/internal/domain/entity"
	"tyre-vision/internal/domain/port"
)

// jobRecord строка таблицы задач. Запросы и результаты хранятся
// сериализованными JSON-колонками: их структура меняется чаще схемы.
type jobRecord struct {
	ID        string `gorm:"primaryKey"`
	Kind      string
	Status    string
	Progress  float64
	Payload   string // Job целиком в JSON
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (jobRecord) TableName() string { return "jobs" }

// SQLiteJobStore хранилище задач, переживающее перезапуск сервиса.
type SQLiteJobStore struct {
	db *gorm.DB
}

// NewSQLiteJobStore открывает базу и накатывает схему.
func NewSQLiteJobStore(path string) (*SQLiteJobStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&jobRecord{}); err != nil {
		return nil, fmt.Errorf("migrate jobs table: %w", err)
	}
	return &SQLiteJobStore{db: db}, nil
}

// Put сохраняет новую задачу.
func (s *SQLiteJobStore) Put(ctx context.Context, job *entity.Job) error {
	record, err := toRecord(job)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(record).Error
}

// Get возвращает задачу по ID.
func (s *SQLiteJobStore) Get(ctx context.Context, id string) (*entity.Job, error) {
	var record jobRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, port.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRecord(&record)
}

// Update перезаписывает состояние задачи.
func (s *SQLiteJobStore) Update(ctx context.Context, job *entity.Job) error {
	record, err := toRecord(job)
	if err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&jobRecord{}).Where("id = ?", job.ID).Updates(map[string]any{
		"kind":       record.Kind,
		"status":     record.Status,
		"progress":   record.Progress,
		"payload":    record.Payload,
		"error":      record.Error,
		"updated_at": record.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return port.ErrJobNotFound
	}
	return nil
}

// UpdateProgress обновляет прогресс выполняющейся задачи.
func (s *SQLiteJobStore) UpdateProgress(ctx context.Context, id string, progress float64) error {
	result := s.db.WithContext(ctx).Model(&jobRecord{}).Where("id = ?", id).Updates(map[string]any{
		"progress":   progress,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return port.ErrJobNotFound
	}
	return nil
}

func toRecord(job *entity.Job) (*jobRecord, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	return &jobRecord{
		ID:        job.ID,
		Kind:      string(job.Kind),
		Status:    string(job.Status),
		Progress:  job.Progress,
		Payload:   string(payload),
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}, nil
}

func fromRecord(record *jobRecord) (*entity.Job, error) {
	var job entity.Job
	if err := json.Unmarshal([]byte(record.Payload), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", record.ID, err)
	}
	// Скалярные колонки авторитетнее payload: UpdateProgress трогает
	// только их.
	job.Progress = record.Progress
	job.Status = entity.JobStatus(record.Status)
	job.UpdatedAt = record.UpdatedAt
	return &job, nil
}

// Проверка реализации интерфейса
var _ port.JobStore = (*SQLiteJobStore)(nil)

package entity

import (
	"errors"
	"time"
)

// JobStatus состояние фоновой задачи анализа.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"     // принята, ждёт воркера
	JobProcessing JobStatus = "processing" // идёт обработка
	JobCompleted  JobStatus = "completed"  // успешно завершена
	JobFailed     JobStatus = "failed"     // завершена с ошибкой
)

// Стадии конвейера; используются в ошибках и логах.
const (
	StagePreprocess    = "preprocess"
	StageCrackDetect   = "crack-detection"
	StageDepthEstimate = "depth-estimation"
	StageClassify      = "damage-classification"
	StageSeverity      = "severity-calculation"
	StageDiffVideo     = "difference-video"
	StageEdgeVideo     = "edge-video"
)

// Фатальные ошибки стадий.
var (
	ErrNoFrames  = errors.New("no frames survived preprocessing")
	ErrNoCircles = errors.New("no tyre circle detected in any frame")
)

// JobKind вид фоновой задачи.
type JobKind string

const (
	JobKindAnalysis  JobKind = "analysis"         // полный конвейер оценки
	JobKindDiffVideo JobKind = "difference-video" // только видео различий
	JobKindEdgeVideo JobKind = "edge-video"       // только контурное видео
)

// AnalysisRequest входной контракт запуска анализа.
type AnalysisRequest struct {
	ReferenceVideoPath string `json:"referenceVideoPath"` // либо видео,
	ReferenceFramesDir string `json:"referenceFramesDir"` // либо каталог кадров
	DamagedVideoPath   string `json:"damagedVideoPath"`
	DamagedFramesDir   string `json:"damagedFramesDir"`
	OutputDir          string `json:"outputDir"`
	FPS                int    `json:"fps"`
	MeshOutputPath     string `json:"meshOutputPath"` // прокидывается внешнему реконструктору как есть
}

// Validate проверяет, что задан хотя бы один источник на каждую сторону.
func (r AnalysisRequest) Validate() error {
	if r.ReferenceVideoPath == "" && r.ReferenceFramesDir == "" {
		return errors.New("reference video path or frames dir is required")
	}
	if r.DamagedVideoPath == "" && r.DamagedFramesDir == "" {
		return errors.New("damaged video path or frames dir is required")
	}
	if r.OutputDir == "" {
		return errors.New("output dir is required")
	}
	return nil
}

// DiffVideoRequest входной контракт отдельной сборки видео различий.
type DiffVideoRequest struct {
	ReferenceFramesDir string `json:"referenceFramesDir"`
	DamagedFramesDir   string `json:"damagedFramesDir"`
	ReferenceVideoPath string `json:"referenceVideoPath"`
	DamagedVideoPath   string `json:"damagedVideoPath"`
	CrackMapsDir       string `json:"crackMapsDir"`
	DepthMapsDir       string `json:"depthMapsDir"`
	OutputVideoPath    string `json:"outputVideoPath"`
	FPS                int    `json:"fps"`
	ApplyEdges         bool   `json:"applyEdges"`
	ApplyCrackOverlay  bool   `json:"applyCrackOverlay"`
	ApplyDepthColors   bool   `json:"applyDepthColors"`
}

// Validate проверяет, что заданы либо каталоги кадров, либо видеофайлы.
func (r DiffVideoRequest) Validate() error {
	hasFrames := r.ReferenceFramesDir != "" && r.DamagedFramesDir != ""
	hasVideos := r.ReferenceVideoPath != "" && r.DamagedVideoPath != ""
	if !hasFrames && !hasVideos {
		return errors.New("either frame dirs or video paths are required")
	}
	if r.OutputVideoPath == "" {
		return errors.New("output video path is required")
	}
	return nil
}

// EdgeVideoRequest входной контракт сборки контурного видео.
type EdgeVideoRequest struct {
	VideoPath       string `json:"videoPath"`
	OutputVideoPath string `json:"outputVideoPath"`
}

// Validate проверяет обязательные пути.
func (r EdgeVideoRequest) Validate() error {
	if r.VideoPath == "" {
		return errors.New("video path is required")
	}
	if r.OutputVideoPath == "" {
		return errors.New("output video path is required")
	}
	return nil
}

// AnalysisResult итоговая выдача конвейера по одной задаче.
type AnalysisResult struct {
	Preprocess struct {
		Reference *PreprocessResult `json:"reference,omitempty"`
		Damaged   *PreprocessResult `json:"damaged,omitempty"`
	} `json:"preprocess"`
	Cracks         *CrackAnalysis    `json:"cracks,omitempty"`
	Depth          *DepthAnalysis    `json:"depth,omitempty"`
	Damage         *DamageAnalysis   `json:"damage,omitempty"`
	Severity       *SeverityAnalysis `json:"severity,omitempty"`
	DiffVideoPath  string            `json:"diffVideoPath,omitempty"`
	DiffVideoError string            `json:"diffVideoError,omitempty"` // презентационная стадия не валит задачу
	MeshOutputPath string            `json:"meshOutputPath,omitempty"`
}

// Job контейнер жизненного цикла одной задачи анализа.
type Job struct {
	ID          string            `json:"jobId"`
	Kind        JobKind           `json:"kind"`
	Status      JobStatus         `json:"status"`
	Progress    float64           `json:"progress"` // 0.0-1.0
	Request     AnalysisRequest   `json:"request"`
	DiffRequest *DiffVideoRequest `json:"diffRequest,omitempty"`
	EdgeRequest *EdgeVideoRequest `json:"edgeRequest,omitempty"`
	Result      *AnalysisResult   `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// NewJob создаёт задачу анализа в начальном состоянии.
func NewJob(id string, req AnalysisRequest) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Kind:      JobKindAnalysis,
		Status:    JobQueued,
		Progress:  0,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewDiffVideoJob создаёт задачу сборки видео различий.
func NewDiffVideoJob(id string, req DiffVideoRequest) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		Kind:        JobKindDiffVideo,
		Status:      JobQueued,
		DiffRequest: &req,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewEdgeVideoJob создаёт задачу сборки контурного видео.
func NewEdgeVideoJob(id string, req EdgeVideoRequest) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		Kind:        JobKindEdgeVideo,
		Status:      JobQueued,
		EdgeRequest: &req,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Start переводит задачу в обработку.
func (j *Job) Start() {
	j.Status = JobProcessing
	j.UpdatedAt = time.Now()
}

// Complete фиксирует успешный результат.
func (j *Job) Complete(result *AnalysisResult) {
	j.Status = JobCompleted
	j.Progress = 1.0
	j.Result = result
	j.UpdatedAt = time.Now()
}

// Fail фиксирует ошибку задачи.
func (j *Job) Fail(err error) {
	j.Status = JobFailed
	j.Error = err.Error()
	j.UpdatedAt = time.Now()
}

// Done сообщает, завершена ли задача.
func (j *Job) Done() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

package port

import (
	"context"

	"tyre-vision/internal/domain/entity"
)

// Preprocessor стадия подготовки кадров: извлечение, поиск окружности,
// переориентация, стабилизация, нормализация яркости.
type Preprocessor interface {
	// ProcessVideo раскладывает видео на кадры и готовит их к анализу.
	ProcessVideo(ctx context.Context, videoPath, outputDir string, fps int) (*entity.PreprocessResult, error)

	// ProcessFramesDir готовит уже извлечённые кадры (без декодирования видео).
	ProcessFramesDir(ctx context.Context, framesDir, outputDir string) (*entity.PreprocessResult, error)
}

// CrackDetector стадия поиска трещин по парам эталон/повреждённый кадр.
type CrackDetector interface {
	// AnalyzeCracks строит покадровые маски трещин и сводную статистику.
	AnalyzeCracks(ctx context.Context, referenceDir, damagedDir, outputDir string) (*entity.CrackAnalysis, error)
}

// DepthEstimator стадия оценки глубины повреждений.
type DepthEstimator interface {
	// AnalyzeDepth строит покадровые карты глубины и сводную статистику.
	AnalyzeDepth(ctx context.Context, referenceDir, damagedDir, outputDir string) (*entity.DepthAnalysis, error)
}

// DamageClassifier стадия классификации типов повреждений.
type DamageClassifier interface {
	// ClassifyDamage прогоняет эвристические детекторы по кадрам и маскам трещин.
	ClassifyDamage(ctx context.Context, damagedDir, crackMapsDir, outputDir string) (*entity.DamageAnalysis, error)
}

// DiffVideoOptions настройки сборки видео различий.
type DiffVideoOptions struct {
	CrackMapsDir      string // бинарные маски трещин, опционально
	DepthMapsDir      string // карты глубины, опционально
	FPS               int
	ApplyEdges        bool // белая подсветка контуров
	ApplyCrackOverlay bool // красная подсветка трещин
	ApplyDepthColors  bool // сине-красный градиент глубины
}

// DiffVideoMetadata метаданные собранного видео.
type DiffVideoMetadata struct {
	OutputPath string `json:"outputPath"`
	NumFrames  int    `json:"numFrames"`
	FPS        int    `json:"fps"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	AppliedEffects struct {
		EdgeDetection bool `json:"edgeDetection"`
		CrackOverlay  bool `json:"crackOverlay"`
		DepthColors   bool `json:"depthColors"`
	} `json:"appliedEffects"`
}

// VideoSynthesizer презентационная стадия: видео различий и контурное видео.
type VideoSynthesizer interface {
	// SynthesizeFromFrames собирает видео различий из каталогов кадров.
	SynthesizeFromFrames(ctx context.Context, referenceDir, damagedDir, outputPath string, opts DiffVideoOptions) (*DiffVideoMetadata, error)

	// SynthesizeFromVideos собирает видео различий напрямую из видеофайлов.
	SynthesizeFromVideos(ctx context.Context, referencePath, damagedPath, outputPath string, opts DiffVideoOptions) (*DiffVideoMetadata, error)

	// SynthesizeEdgeVideo строит контурное видео (CLAHE + Canny) по одному видео.
	SynthesizeEdgeVideo(ctx context.Context, videoPath, outputPath string) (*DiffVideoMetadata, error)
}

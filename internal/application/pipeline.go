package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tyre-vision/internal/domain/entity"
	"tyre-vision/internal/domain/port"
)

// StageError ошибка стадии конвейера с контекстом для внешнего слоя.
type StageError struct {
	Stage string // имя стадии из entity.Stage*
	Frame int    // индекс кадра, -1 если неприменимо
	Err   error
}

func (e *StageError) Error() string {
	if e.Frame >= 0 {
		return fmt.Sprintf("stage %s failed at frame %d: %v", e.Stage, e.Frame, e.Err)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Frame: -1, Err: err}
}

// Pipeline оркестратор шести стадий анализа покрышки.
// Стадии с независимыми данными (трещины и глубина) выполняются параллельно,
// агрегатор серьёзности ждёт обе, видео различий не валит задачу при сбое.
type Pipeline struct {
	pre      port.Preprocessor
	cracks   port.CrackDetector
	depth    port.DepthEstimator
	damage   port.DamageClassifier
	synth    port.VideoSynthesizer
	severity *SeverityCalculator
	log      *logrus.Logger
}

// NewPipeline собирает конвейер из стадий.
func NewPipeline(
	pre port.Preprocessor,
	cracks port.CrackDetector,
	depth port.DepthEstimator,
	damage port.DamageClassifier,
	synth port.VideoSynthesizer,
	log *logrus.Logger,
) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{
		pre:      pre,
		cracks:   cracks,
		depth:    depth,
		damage:   damage,
		synth:    synth,
		severity: NewSeverityCalculator(),
		log:      log,
	}
}

// Доли прогресса, отведённые стадиям.
const (
	progressAfterReference = 0.20
	progressAfterDamaged   = 0.40
	progressAfterAnalysis  = 0.70
	progressAfterClassify  = 0.80
	progressAfterSeverity  = 0.85
)

// Run выполняет полный анализ по запросу и возвращает итоговый результат.
// Каждая стадия пишет свои артефакты в собственный подкаталог outputDir
// и не трогает выход предыдущих стадий.
func (p *Pipeline) Run(ctx context.Context, req entity.AnalysisRequest, progress port.ProgressSink) (*entity.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = port.NopProgress
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	result := &entity.AnalysisResult{MeshOutputPath: req.MeshOutputPath}

	// Стадия 1: препроцессинг обоих видео.
	refDir, err := p.preprocessSide(ctx, "reference", req.ReferenceVideoPath, req.ReferenceFramesDir, req, &result.Preprocess.Reference)
	if err != nil {
		return nil, err
	}
	progress.Report(progressAfterReference, entity.StagePreprocess)

	damDir, err := p.preprocessSide(ctx, "damaged", req.DamagedVideoPath, req.DamagedFramesDir, req, &result.Preprocess.Damaged)
	if err != nil {
		return nil, err
	}
	progress.Report(progressAfterDamaged, entity.StagePreprocess)

	// Стадии 2 и 3: трещины и глубина зависят только от препроцессинга
	// и выполняются параллельно.
	crackOut := filepath.Join(req.OutputDir, "cracks")
	depthOut := filepath.Join(req.OutputDir, "depth")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cracks, err := p.cracks.AnalyzeCracks(gctx, refDir, damDir, crackOut)
		if err != nil {
			return stageErr(entity.StageCrackDetect, err)
		}
		result.Cracks = cracks
		return nil
	})
	g.Go(func() error {
		depth, err := p.depth.AnalyzeDepth(gctx, refDir, damDir, depthOut)
		if err != nil {
			return stageErr(entity.StageDepthEstimate, err)
		}
		result.Depth = depth
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	progress.Report(progressAfterAnalysis, entity.StageCrackDetect)

	// Стадия 4: классификация по кадрам и маскам трещин.
	damage, err := p.damage.ClassifyDamage(ctx, damDir, filepath.Join(crackOut, "crack_binary"), filepath.Join(req.OutputDir, "damage"))
	if err != nil {
		return nil, stageErr(entity.StageClassify, err)
	}
	result.Damage = damage
	progress.Report(progressAfterClassify, entity.StageClassify)

	// Стадия 5: агрегатор серьёзности (точка соединения).
	result.Severity = p.severity.Aggregate(result.Cracks, result.Depth, result.Damage)
	if err := p.writeSeverityArtifact(req.OutputDir, result.Severity); err != nil {
		return nil, stageErr(entity.StageSeverity, err)
	}
	progress.Report(progressAfterSeverity, entity.StageSeverity)

	// Стадия 6: видео различий. Презентационный артефакт: его сбой
	// логируется, но не отменяет результаты оценки.
	diffPath := filepath.Join(req.OutputDir, "difference_video.mp4")
	opts := port.DiffVideoOptions{
		CrackMapsDir:      filepath.Join(crackOut, "crack_binary"),
		DepthMapsDir:      filepath.Join(depthOut, "depth_maps"),
		FPS:               req.FPS,
		ApplyEdges:        true,
		ApplyCrackOverlay: true,
		ApplyDepthColors:  true,
	}
	if _, err := p.synth.SynthesizeFromFrames(ctx, refDir, damDir, diffPath, opts); err != nil {
		p.log.WithError(err).WithField("stage", entity.StageDiffVideo).Warn("difference video synthesis failed")
		result.DiffVideoError = err.Error()
	} else {
		result.DiffVideoPath = diffPath
	}
	progress.Report(1.0, entity.StageDiffVideo)

	return result, nil
}

// preprocessSide готовит кадры одной стороны (эталон или повреждённая).
func (p *Pipeline) preprocessSide(ctx context.Context, side, videoPath, framesDir string, req entity.AnalysisRequest, out **entity.PreprocessResult) (string, error) {
	outDir := filepath.Join(req.OutputDir, side)

	var meta *entity.PreprocessResult
	var err error
	if videoPath != "" {
		meta, err = p.pre.ProcessVideo(ctx, videoPath, outDir, req.FPS)
	} else {
		meta, err = p.pre.ProcessFramesDir(ctx, framesDir, outDir)
	}
	if err != nil {
		return "", stageErr(entity.StagePreprocess, fmt.Errorf("%s: %w", side, err))
	}
	if meta.TotalFrames == 0 {
		// Пустой выход стадии фатален: дальше анализировать нечего.
		return "", stageErr(entity.StagePreprocess, fmt.Errorf("%s: %w", side, entity.ErrNoFrames))
	}
	*out = meta
	p.log.WithFields(logrus.Fields{
		"side":    side,
		"frames":  meta.TotalFrames,
		"skipped": meta.SkippedFrames,
	}).Info("preprocessing finished")
	return meta.ProcessedFramesDir, nil
}

// writeSeverityArtifact сохраняет результат агрегатора рядом с остальными артефактами.
func (p *Pipeline) writeSeverityArtifact(outputDir string, severity *entity.SeverityAnalysis) error {
	data, err := json.MarshalIndent(severity, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, "severity_analysis_results.json"), data, 0o644)
}

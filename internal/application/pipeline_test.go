package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tyre-vision/internal/domain/entity"
	"tyre-vision/internal/domain/port"
)

// Фейковые стадии для тестов оркестрации.

type fakePreprocessor struct {
	frames int
	err    error
}

func (f *fakePreprocessor) ProcessVideo(ctx context.Context, videoPath, outputDir string, fps int) (*entity.PreprocessResult, error) {
	return f.result(outputDir)
}

func (f *fakePreprocessor) ProcessFramesDir(ctx context.Context, framesDir, outputDir string) (*entity.PreprocessResult, error) {
	return f.result(outputDir)
}

func (f *fakePreprocessor) result(outputDir string) (*entity.PreprocessResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entity.PreprocessResult{
		TotalFrames:        f.frames,
		ProcessedFramesDir: filepath.Join(outputDir, "processed_frames"),
	}, nil
}

type fakeCrackDetector struct{ err error }

func (f *fakeCrackDetector) AnalyzeCracks(ctx context.Context, referenceDir, damagedDir, outputDir string) (*entity.CrackAnalysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entity.CrackAnalysis{
		TotalFramesAnalyzed: 2,
		TotalCracks:         3,
		AvgDensity:          1.5,
		FrameResults: []entity.FrameCrackResult{
			{CrackDensity: 1.0}, {CrackDensity: 2.0},
		},
	}, nil
}

type fakeDepthEstimator struct{ err error }

func (f *fakeDepthEstimator) AnalyzeDepth(ctx context.Context, referenceDir, damagedDir, outputDir string) (*entity.DepthAnalysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entity.DepthAnalysis{
		TotalFramesAnalyzed: 2,
		MaxDepthMm:          0.8,
		FrameResults: []entity.FrameDepthResult{
			{MaxDepthMm: 0.8}, {MaxDepthMm: 0.4},
		},
	}, nil
}

type fakeDamageClassifier struct{ err error }

func (f *fakeDamageClassifier) ClassifyDamage(ctx context.Context, damagedDir, crackMasksDir, outputDir string) (*entity.DamageAnalysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &entity.DamageAnalysis{
		TotalFramesAnalyzed: 2,
		DetectedDamageTypes: []entity.DamageType{entity.DamageCuts},
		FrameResults: []entity.FrameDamageResult{
			{DamageTypes: []entity.DamageType{entity.DamageCuts}}, {},
		},
	}, nil
}

type fakeSynthesizer struct {
	err   error
	calls int
}

func (f *fakeSynthesizer) SynthesizeFromFrames(ctx context.Context, referenceDir, damagedDir, outputPath string, opts port.DiffVideoOptions) (*port.DiffVideoMetadata, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &port.DiffVideoMetadata{OutputPath: outputPath, NumFrames: 2}, nil
}

func (f *fakeSynthesizer) SynthesizeFromVideos(ctx context.Context, referencePath, damagedPath, outputPath string, opts port.DiffVideoOptions) (*port.DiffVideoMetadata, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &port.DiffVideoMetadata{OutputPath: outputPath, NumFrames: 2}, nil
}

func (f *fakeSynthesizer) SynthesizeEdgeVideo(ctx context.Context, videoPath, outputPath string) (*port.DiffVideoMetadata, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &port.DiffVideoMetadata{OutputPath: outputPath, NumFrames: 2}, nil
}

func newTestPipeline(pre *fakePreprocessor, synth *fakeSynthesizer) *Pipeline {
	return NewPipeline(pre, &fakeCrackDetector{}, &fakeDepthEstimator{}, &fakeDamageClassifier{}, synth, nil)
}

func validRequest(t *testing.T) entity.AnalysisRequest {
	t.Helper()
	return entity.AnalysisRequest{
		ReferenceVideoPath: "ref.mp4",
		DamagedVideoPath:   "dam.mp4",
		OutputDir:          t.TempDir(),
		FPS:                5,
	}
}

func TestPipelineRun_Success(t *testing.T) {
	synth := &fakeSynthesizer{}
	p := newTestPipeline(&fakePreprocessor{frames: 2}, synth)
	req := validRequest(t)

	result, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Cracks)
	require.NotNil(t, result.Depth)
	require.NotNil(t, result.Damage)
	require.NotNil(t, result.Severity)
	require.NotEmpty(t, result.DiffVideoPath)
	require.Empty(t, result.DiffVideoError)
	require.Equal(t, 1, synth.calls)

	// Артефакт агрегатора лежит рядом с остальными результатами.
	_, err = os.Stat(filepath.Join(req.OutputDir, "severity_analysis_results.json"))
	require.NoError(t, err)
}

func TestPipelineRun_InvalidRequest(t *testing.T) {
	p := newTestPipeline(&fakePreprocessor{frames: 2}, &fakeSynthesizer{})
	_, err := p.Run(context.Background(), entity.AnalysisRequest{}, nil)
	require.Error(t, err)
}

func TestPipelineRun_EmptyPreprocessIsFatal(t *testing.T) {
	p := newTestPipeline(&fakePreprocessor{frames: 0}, &fakeSynthesizer{})
	_, err := p.Run(context.Background(), validRequest(t), nil)
	require.ErrorIs(t, err, entity.ErrNoFrames)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, entity.StagePreprocess, stageErr.Stage)
}

func TestPipelineRun_AnalysisFailurePropagates(t *testing.T) {
	boom := errors.New("crack stage exploded")
	p := NewPipeline(
		&fakePreprocessor{frames: 2},
		&fakeCrackDetector{err: boom},
		&fakeDepthEstimator{},
		&fakeDamageClassifier{},
		&fakeSynthesizer{},
		nil,
	)
	_, err := p.Run(context.Background(), validRequest(t), nil)
	require.ErrorIs(t, err, boom)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, entity.StageCrackDetect, stageErr.Stage)
}

func TestPipelineRun_DiffVideoFailureIsNotFatal(t *testing.T) {
	synth := &fakeSynthesizer{err: errors.New("codec unavailable")}
	p := newTestPipeline(&fakePreprocessor{frames: 2}, synth)

	result, err := p.Run(context.Background(), validRequest(t), nil)
	require.NoError(t, err)
	require.Empty(t, result.DiffVideoPath)
	require.Contains(t, result.DiffVideoError, "codec unavailable")
	require.NotNil(t, result.Severity)
}

func TestPipelineRun_ProgressReachesCompletion(t *testing.T) {
	p := newTestPipeline(&fakePreprocessor{frames: 2}, &fakeSynthesizer{})

	var last float64
	progress := port.ProgressFunc(func(v float64, stage string) { last = v })
	_, err := p.Run(context.Background(), validRequest(t), progress)
	require.NoError(t, err)
	require.Equal(t, 1.0, last)
}

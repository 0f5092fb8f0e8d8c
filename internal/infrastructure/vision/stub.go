//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"tyre-vision/internal/domain/entity"
	"tyre-vision/internal/domain/port"
)

var errNoGoCV = errors.New("gocv build tag is not enabled")

// Preprocessor заглушка без OpenCV.
type Preprocessor struct{}

// NewPreprocessor создаёт препроцессор-заглушку (без OpenCV).
func NewPreprocessor(log *logrus.Logger) *Preprocessor {
	_ = log
	return &Preprocessor{}
}

// ProcessVideo возвращает ошибку, если сборка без тега gocv.
func (p *Preprocessor) ProcessVideo(ctx context.Context, videoPath, outputDir string, fps int) (*entity.PreprocessResult, error) {
	return nil, errNoGoCV
}

// ProcessFramesDir возвращает ошибку, если сборка без тега gocv.
func (p *Preprocessor) ProcessFramesDir(ctx context.Context, framesDir, outputDir string) (*entity.PreprocessResult, error) {
	return nil, errNoGoCV
}

// CrackDetector заглушка без OpenCV.
type CrackDetector struct{}

// NewCrackDetector создаёт детектор-заглушку (без OpenCV).
func NewCrackDetector(log *logrus.Logger) *CrackDetector {
	_ = log
	return &CrackDetector{}
}

// AnalyzeCracks возвращает ошибку, если сборка без тега gocv.
func (d *CrackDetector) AnalyzeCracks(ctx context.Context, referenceDir, damagedDir, outputDir string) (*entity.CrackAnalysis, error) {
	return nil, errNoGoCV
}

// DepthEstimator заглушка без OpenCV.
type DepthEstimator struct{}

// NewDepthEstimator создаёт оценщик-заглушку (без OpenCV).
func NewDepthEstimator(mmPerIntensity float64, log *logrus.Logger) *DepthEstimator {
	_, _ = mmPerIntensity, log
	return &DepthEstimator{}
}

// AnalyzeDepth возвращает ошибку, если сборка без тега gocv.
func (d *DepthEstimator) AnalyzeDepth(ctx context.Context, referenceDir, damagedDir, outputDir string) (*entity.DepthAnalysis, error) {
	return nil, errNoGoCV
}

// DamageClassifier заглушка без OpenCV.
type DamageClassifier struct{}

// NewDamageClassifier создаёт классификатор-заглушку (без OpenCV).
func NewDamageClassifier(log *logrus.Logger) *DamageClassifier {
	_ = log
	return &DamageClassifier{}
}

// ClassifyDamage возвращает ошибку, если сборка без тега gocv.
func (c *DamageClassifier) ClassifyDamage(ctx context.Context, damagedDir, crackMasksDir, outputDir string) (*entity.DamageAnalysis, error) {
	return nil, errNoGoCV
}

// VideoSynthesizer заглушка без OpenCV.
type VideoSynthesizer struct{}

// NewVideoSynthesizer создаёт сборщик-заглушку (без OpenCV).
func NewVideoSynthesizer(log *logrus.Logger) *VideoSynthesizer {
	_ = log
	return &VideoSynthesizer{}
}

// SynthesizeFromFrames возвращает ошибку, если сборка без тега gocv.
func (v *VideoSynthesizer) SynthesizeFromFrames(ctx context.Context, referenceDir, damagedDir, outputPath string, opts port.DiffVideoOptions) (*port.DiffVideoMetadata, error) {
	return nil, errNoGoCV
}

// SynthesizeFromVideos возвращает ошибку, если сборка без тега gocv.
func (v *VideoSynthesizer) SynthesizeFromVideos(ctx context.Context, referencePath, damagedPath, outputPath string, opts port.DiffVideoOptions) (*port.DiffVideoMetadata, error) {
	return nil, errNoGoCV
}

// SynthesizeEdgeVideo возвращает ошибку, если сборка без тега gocv.
func (v *VideoSynthesizer) SynthesizeEdgeVideo(ctx context.Context, videoPath, outputPath string) (*port.DiffVideoMetadata, error) {
	return nil, errNoGoCV
}

var (
	_ port.Preprocessor     = (*Preprocessor)(nil)
	_ port.CrackDetector    = (*CrackDetector)(nil)
	_ port.DepthEstimator   = (*DepthEstimator)(nil)
	_ port.DamageClassifier = (*DamageClassifier)(nil)
	_ port.VideoSynthesizer = (*VideoSynthesizer)(nil)
)

//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// writeFrames сохраняет одинаковый набор кадров в каталог.
func writeFrames(t *testing.T, dir string, frames []gocv.Mat) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for i, f := range frames {
		path := filepath.Join(dir, fmt.Sprintf("processed_%04d.png", i))
		require.True(t, gocv.IMWrite(path, f))
	}
}

func uniformFrame(value float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), 256, 256, gocv.MatTypeCV8UC3)
}

func TestAnalyzeCracks_IdenticalFramesYieldNothing(t *testing.T) {
	frame := uniformFrame(180)
	defer frame.Close()

	tmp := t.TempDir()
	refDir := filepath.Join(tmp, "ref")
	damDir := filepath.Join(tmp, "dam")
	writeFrames(t, refDir, []gocv.Mat{frame, frame})
	writeFrames(t, damDir, []gocv.Mat{frame, frame})

	d := NewCrackDetector(nil)
	analysis, err := d.AnalyzeCracks(context.Background(), refDir, damDir, filepath.Join(tmp, "out"))
	require.NoError(t, err)
	require.Equal(t, 2, analysis.TotalFramesAnalyzed)
	require.Equal(t, 0, analysis.TotalCracks)
	require.Equal(t, 0.0, analysis.AvgDensity)
}

func TestAnalyzeCracks_InjectedCrackIsDetected(t *testing.T) {
	ref := uniformFrame(200)
	defer ref.Close()
	dam := uniformFrame(200)
	defer dam.Close()
	// Тёмная ломаная имитирует трещину на повреждённом кадре.
	black := color.RGBA{A: 255}
	gocv.Line(&dam, image.Pt(40, 40), image.Pt(200, 120), black, 3)
	gocv.Line(&dam, image.Pt(200, 120), image.Pt(120, 220), black, 3)

	tmp := t.TempDir()
	refDir := filepath.Join(tmp, "ref")
	damDir := filepath.Join(tmp, "dam")
	writeFrames(t, refDir, []gocv.Mat{ref})
	writeFrames(t, damDir, []gocv.Mat{dam})

	d := NewCrackDetector(nil)
	analysis, err := d.AnalyzeCracks(context.Background(), refDir, damDir, filepath.Join(tmp, "out"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, analysis.TotalCracks, 1)
	require.Greater(t, analysis.AvgDensity, 0.0)

	// Артефакты стадии записаны.
	require.FileExists(t, analysis.CompositeMapPath)
	require.FileExists(t, analysis.FrameResults[0].CrackMapPath)
	require.FileExists(t, analysis.FrameResults[0].CrackBinaryPath)
	require.FileExists(t, filepath.Join(tmp, "out", "crack_analysis_results.json"))
}

func TestAnalyzeCracks_DenserCracksDoNotLowerCount(t *testing.T) {
	ref := uniformFrame(200)
	defer ref.Close()
	black := color.RGBA{A: 255}

	sparse := uniformFrame(200)
	defer sparse.Close()
	gocv.Line(&sparse, image.Pt(30, 60), image.Pt(220, 60), black, 3)

	dense := uniformFrame(200)
	defer dense.Close()
	// Те же трещины плюс дополнительные, далеко друг от друга.
	gocv.Line(&dense, image.Pt(30, 60), image.Pt(220, 60), black, 3)
	gocv.Line(&dense, image.Pt(30, 130), image.Pt(220, 130), black, 3)
	gocv.Line(&dense, image.Pt(30, 200), image.Pt(220, 200), black, 3)

	tmp := t.TempDir()
	refDir := filepath.Join(tmp, "ref")
	sparseDir := filepath.Join(tmp, "sparse")
	denseDir := filepath.Join(tmp, "dense")
	writeFrames(t, refDir, []gocv.Mat{ref})
	writeFrames(t, sparseDir, []gocv.Mat{sparse})
	writeFrames(t, denseDir, []gocv.Mat{dense})

	d := NewCrackDetector(nil)
	sparseAnalysis, err := d.AnalyzeCracks(context.Background(), refDir, sparseDir, filepath.Join(tmp, "out_sparse"))
	require.NoError(t, err)
	denseAnalysis, err := d.AnalyzeCracks(context.Background(), refDir, denseDir, filepath.Join(tmp, "out_dense"))
	require.NoError(t, err)

	require.GreaterOrEqual(t, sparseAnalysis.TotalCracks, 1)
	require.GreaterOrEqual(t, denseAnalysis.TotalCracks, sparseAnalysis.TotalCracks)
	require.Greater(t, denseAnalysis.AvgDensity, sparseAnalysis.AvgDensity)
}

func TestAnalyzeCracks_EmptyDirs(t *testing.T) {
	tmp := t.TempDir()
	refDir := filepath.Join(tmp, "ref")
	damDir := filepath.Join(tmp, "dam")
	require.NoError(t, os.MkdirAll(refDir, 0o755))
	require.NoError(t, os.MkdirAll(damDir, 0o755))

	d := NewCrackDetector(nil)
	_, err := d.AnalyzeCracks(context.Background(), refDir, damDir, filepath.Join(tmp, "out"))
	require.Error(t, err)
}

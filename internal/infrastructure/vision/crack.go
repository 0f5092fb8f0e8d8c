//go:build gocv
// +build gocv

package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"tyre-vision/internal/domain/entity"
	"tyre-vision/internal/domain/port"
)

// CrackDetector находит трещины сравнением повреждённых кадров с эталонными.
// Контуры Canny пересекаются с маской попиксельных различий, так что
// засчитываются только контуры, которых нет на эталоне.
type CrackDetector struct {
	CannyLow      float32
	CannyHigh     float32
	DiffThreshold float32 // порог бинаризации попиксельной разницы
	MinArea       int     // минимальная площадь компоненты, пиксели
	log           *logrus.Logger
}

// NewCrackDetector создаёт детектор с порогами по умолчанию.
func NewCrackDetector(log *logrus.Logger) *CrackDetector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CrackDetector{
		CannyLow:      50,
		CannyHigh:     150,
		DiffThreshold: 30,
		MinArea:       entity.MinCrackArea,
		log:           log,
	}
}

// AnalyzeCracks обрабатывает пары кадров (по индексу) и пишет карты трещин,
// бинарные маски, композитную карту и сводный JSON в outputDir.
func (d *CrackDetector) AnalyzeCracks(ctx context.Context, refDir, damagedDir, outputDir string) (*entity.CrackAnalysis, error) {
	mapsDir := filepath.Join(outputDir, "crack_maps")
	binDir := filepath.Join(outputDir, "crack_binary")
	for _, dir := range []string{mapsDir, binDir} {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
	}

	refFrames, err := listFrames(refDir)
	if err != nil {
		return nil, err
	}
	damFrames, err := listFrames(damagedDir)
	if err != nil {
		return nil, err
	}
	pairs := minInt(len(refFrames), len(damFrames))
	if pairs == 0 {
		return nil, entity.ErrNoFrames
	}

	analysis := &entity.CrackAnalysis{}
	composite := gocv.NewMat()
	defer composite.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	for i := 0; i < pairs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := d.analyzeFrame(refFrames[i], damFrames[i], i, mapsDir, binDir, kernel, &composite)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		analysis.FrameResults = append(analysis.FrameResults, frame)
		analysis.TotalCracks += frame.CrackCount
		analysis.TotalFramesAnalyzed++
	}

	if analysis.TotalFramesAnalyzed > 0 {
		var sumDensity float64
		for _, f := range analysis.FrameResults {
			sumDensity += f.CrackDensity
		}
		analysis.AvgCracksPerFrame = float64(analysis.TotalCracks) / float64(analysis.TotalFramesAnalyzed)
		analysis.AvgDensity = sumDensity / float64(analysis.TotalFramesAnalyzed)
	}

	if !composite.Empty() {
		compositePath := filepath.Join(outputDir, "composite_crack_map.png")
		if err := writeImage(compositePath, composite); err != nil {
			return nil, err
		}
		analysis.CompositeMapPath = compositePath
	}

	if err := writeJSON(filepath.Join(outputDir, "crack_analysis_results.json"), analysis); err != nil {
		return nil, err
	}

	d.log.WithFields(logrus.Fields{
		"frames": analysis.TotalFramesAnalyzed,
		"cracks": analysis.TotalCracks,
	}).Info("crack analysis finished")
	return analysis, nil
}

func (d *CrackDetector) analyzeFrame(refPath, damPath string, index int, mapsDir, binDir string, kernel gocv.Mat, composite *gocv.Mat) (entity.FrameCrackResult, error) {
	result := entity.FrameCrackResult{FrameIndex: index}

	refGray, err := readGray(refPath)
	if err != nil {
		return result, err
	}
	defer refGray.Close()
	damImg, err := readImage(damPath)
	if err != nil {
		return result, err
	}
	defer damImg.Close()

	damGray := toGray(damImg)
	defer damGray.Close()
	matchSize(damGray, &refGray)

	refBlur := gocv.NewMat()
	defer refBlur.Close()
	damBlur := gocv.NewMat()
	defer damBlur.Close()
	gocv.GaussianBlur(refGray, &refBlur, image.Pt(5, 5), 1.4, 1.4, gocv.BorderDefault)
	gocv.GaussianBlur(damGray, &damBlur, image.Pt(5, 5), 1.4, 1.4, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(damBlur, &edges, d.CannyLow, d.CannyHigh)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(refBlur, damBlur, &diff)
	diffMask := gocv.NewMat()
	defer diffMask.Close()
	gocv.Threshold(diff, &diffMask, d.DiffThreshold, 255, gocv.ThresholdBinary)

	// Трещины = новые контуры: присутствуют на повреждённом кадре
	// и попадают в зону отличий от эталона.
	cracks := gocv.NewMat()
	defer cracks.Close()
	gocv.BitwiseAnd(edges, diffMask, &cracks)

	cleaned := d.cleanMask(cracks, kernel)
	defer cleaned.Close()

	result.CrackCount = countComponents(cleaned, d.MinArea)
	result.CrackDensity = maskRatio(cleaned) * 100.0

	binPath := filepath.Join(binDir, fmt.Sprintf("crack_binary_%04d.png", index))
	if err := writeImage(binPath, cleaned); err != nil {
		return result, err
	}
	result.CrackBinaryPath = binPath

	overlay := damImg.Clone()
	defer overlay.Close()
	red := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), overlay.Rows(), overlay.Cols(), overlay.Type())
	defer red.Close()
	red.CopyToWithMask(&overlay, cleaned)

	mapPath := filepath.Join(mapsDir, fmt.Sprintf("crack_map_%04d.png", index))
	if err := writeImage(mapPath, overlay); err != nil {
		return result, err
	}
	result.CrackMapPath = mapPath

	// Композитная карта — попиксельный максимум масок всех кадров.
	if composite.Empty() {
		*composite = cleaned.Clone()
	} else {
		matchSize(*composite, &cleaned)
		gocv.Max(*composite, cleaned, composite)
	}

	return result, nil
}

// cleanMask убирает шум морфологией: закрытие сращивает разрывы трещин,
// открытие удаляет одиночные пиксели, расширение делает трещины видимыми.
func (d *CrackDetector) cleanMask(mask gocv.Mat, kernel gocv.Mat) gocv.Mat {
	closed := gocv.NewMat()
	gocv.MorphologyExWithParams(mask, &closed, gocv.MorphClose, kernel, 1, gocv.BorderConstant)
	opened := gocv.NewMat()
	gocv.MorphologyExWithParams(closed, &opened, gocv.MorphOpen, kernel, 1, gocv.BorderConstant)
	closed.Close()
	dilated := gocv.NewMat()
	gocv.Dilate(opened, &dilated, kernel)
	opened.Close()
	return dilated
}

// countComponents считает связные компоненты (8-связность) площадью не
// меньше minArea. Фоновая компонента с меткой 0 не учитывается.
func countComponents(mask gocv.Mat, minArea int) int {
	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(mask, &labels, &stats, &centroids)
	count := 0
	for label := 1; label < n; label++ {
		if int(stats.GetIntAt(label, int(gocv.CCStatArea))) >= minArea {
			count++
		}
	}
	return count
}

// writeJSON сохраняет результат анализа с отступами для читаемости.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var _ port.CrackDetector = (*CrackDetector)(nil)

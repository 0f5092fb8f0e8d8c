//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"image"
	"math"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"tyre-vision/internal/domain/entity"
	"tyre-vision/internal/domain/port"
)

// DepthEstimator оценивает глубину повреждений по паре кадров.
// Две независимые оценки, попиксельная разница и блочное диспаритетное
// сопоставление, сшиваются взвешенной суммой; интенсивность результата
// переводится в миллиметры через калибровочный коэффициент.
type DepthEstimator struct {
	MmPerIntensity float64 // мм на единицу интенсивности 0-255
	PixelWeight    float64 // вес попиксельной оценки при сшивке
	StereoWeight   float64 // вес диспаритетной оценки при сшивке
	BlockSize      int     // сторона блока сопоставления
	MaxDisparity   int     // число проверяемых сдвигов
	log            *logrus.Logger
}

// NewDepthEstimator создаёт оценщик с калибровкой по умолчанию.
func NewDepthEstimator(mmPerIntensity float64, log *logrus.Logger) *DepthEstimator {
	if mmPerIntensity <= 0 {
		mmPerIntensity = entity.DefaultMmPerIntensity
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DepthEstimator{
		MmPerIntensity: mmPerIntensity,
		PixelWeight:    0.6,
		StereoWeight:   0.4,
		BlockSize:      15,
		MaxDisparity:   16,
		log:            log,
	}
}

// AnalyzeDepth обрабатывает пары кадров и пишет цветные карты глубины,
// композитную карту и сводный JSON в outputDir.
func (d *DepthEstimator) AnalyzeDepth(ctx context.Context, refDir, damagedDir, outputDir string) (*entity.DepthAnalysis, error) {
	mapsDir := filepath.Join(outputDir, "depth_maps")
	if err := ensureDir(mapsDir); err != nil {
		return nil, err
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

	analysis := &entity.DepthAnalysis{}
	composite := gocv.NewMat()
	defer composite.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(5, 5))
	defer kernel.Close()

	for i := 0; i < pairs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := d.analyzeFrame(refFrames[i], damFrames[i], i, mapsDir, kernel, &composite)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		analysis.FrameResults = append(analysis.FrameResults, frame)
		analysis.TotalFramesAnalyzed++
		if frame.MaxDepthMm > analysis.MaxDepthMm {
			analysis.MaxDepthMm = frame.MaxDepthMm
		}
	}

	if analysis.TotalFramesAnalyzed > 0 {
		var sum float64
		for _, f := range analysis.FrameResults {
			sum += f.MaxDepthMm
		}
		analysis.AvgMaxDepthMm = sum / float64(analysis.TotalFramesAnalyzed)
	}

	if !composite.Empty() {
		colored := gocv.NewMat()
		gocv.ApplyColorMap(composite, &colored, gocv.ColormapJet)
		compositePath := filepath.Join(outputDir, "composite_depth_map.png")
		err := writeImage(compositePath, colored)
		colored.Close()
		if err != nil {
			return nil, err
		}
		analysis.CompositeMapPath = compositePath
	}

	if err := writeJSON(filepath.Join(outputDir, "depth_analysis_results.json"), analysis); err != nil {
		return nil, err
	}

	d.log.WithFields(logrus.Fields{
		"frames":     analysis.TotalFramesAnalyzed,
		"maxDepthMm": analysis.MaxDepthMm,
	}).Info("depth analysis finished")
	return analysis, nil
}

func (d *DepthEstimator) analyzeFrame(refPath, damPath string, index int, mapsDir string, kernel gocv.Mat, composite *gocv.Mat) (entity.FrameDepthResult, error) {
	result := entity.FrameDepthResult{FrameIndex: index}

	refGray, err := readGray(refPath)
	if err != nil {
		return result, err
	}
	defer refGray.Close()
	damGray, err := readGray(damPath)
	if err != nil {
		return result, err
	}
	defer damGray.Close()
	matchSize(damGray, &refGray)

	refBlur := gocv.NewMat()
	defer refBlur.Close()
	damBlur := gocv.NewMat()
	defer damBlur.Close()
	gocv.GaussianBlur(refGray, &refBlur, image.Pt(5, 5), 1.0, 1.0, gocv.BorderDefault)
	gocv.GaussianBlur(damGray, &damBlur, image.Pt(5, 5), 1.0, 1.0, gocv.BorderDefault)

	pixelDiff := gocv.NewMat()
	defer pixelDiff.Close()
	gocv.AbsDiff(refBlur, damBlur, &pixelDiff)

	disparity := d.blockMatch(refBlur, damBlur)
	defer disparity.Close()

	fused := gocv.NewMat()
	defer fused.Close()
	gocv.AddWeighted(pixelDiff, d.PixelWeight, disparity, d.StereoWeight, 0, &fused)

	smoothed := gocv.NewMat()
	defer smoothed.Close()
	gocv.MorphologyExWithParams(fused, &smoothed, gocv.MorphClose, kernel, 1, gocv.BorderConstant)

	maxI, meanI, stdI := intensityStats(smoothed)
	result.MaxDepthMm = maxI * d.MmPerIntensity
	result.MeanDepthMm = meanI * d.MmPerIntensity
	result.StdDepth = stdI * d.MmPerIntensity

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.ApplyColorMap(smoothed, &colored, gocv.ColormapJet)

	mapPath := filepath.Join(mapsDir, fmt.Sprintf("depth_map_%04d.png", index))
	if err := writeImage(mapPath, colored); err != nil {
		return result, err
	}
	result.DepthMapPath = mapPath

	if composite.Empty() {
		*composite = smoothed.Clone()
	} else {
		matchSize(*composite, &smoothed)
		gocv.Max(*composite, smoothed, composite)
	}

	return result, nil
}

// blockMatch оценивает диспаритет блочным SAD-сопоставлением.
// Для каждого блока повреждённого кадра ищется горизонтальный сдвиг
// с минимальной суммой абсолютных разностей относительно эталона;
// блок целиком получает интенсивность, пропорциональную сдвигу.
func (d *DepthEstimator) blockMatch(ref, dam gocv.Mat) gocv.Mat {
	rows, cols := dam.Rows(), dam.Cols()
	disparity := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC1)

	scale := 255.0 / float64(d.MaxDisparity-1)
	for by := 0; by+d.BlockSize <= rows; by += d.BlockSize {
		for bx := 0; bx+d.BlockSize <= cols; bx += d.BlockSize {
			best := 0
			bestSAD := math.MaxInt64
			for disp := 0; disp < d.MaxDisparity && bx+disp+d.BlockSize <= cols; disp++ {
				sad := 0
				for y := by; y < by+d.BlockSize; y++ {
					for x := bx; x < bx+d.BlockSize; x++ {
						diff := int(dam.GetUCharAt(y, x)) - int(ref.GetUCharAt(y, x+disp))
						if diff < 0 {
							diff = -diff
						}
						sad += diff
					}
				}
				if sad < bestSAD {
					bestSAD = sad
					best = disp
				}
			}
			value := uint8(float64(best) * scale)
			for y := by; y < by+d.BlockSize; y++ {
				for x := bx; x < bx+d.BlockSize; x++ {
					disparity.SetUCharAt(y, x, value)
				}
			}
		}
	}
	return disparity
}

// intensityStats возвращает максимум, среднее и стандартное отклонение
// интенсивностей одноканального 8-битного изображения.
func intensityStats(mat gocv.Mat) (maxVal, mean, std float64) {
	rows, cols := mat.Rows(), mat.Cols()
	total := rows * cols
	if total == 0 {
		return 0, 0, 0
	}

	var sum, sumSq float64
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := float64(mat.GetUCharAt(y, x))
			sum += v
			sumSq += v * v
			if v > maxVal {
				maxVal = v
			}
		}
	}
	mean = sum / float64(total)
	variance := sumSq/float64(total) - mean*mean
	if variance > 0 {
		std = math.Sqrt(variance)
	}
	return maxVal, mean, std
}

var _ port.DepthEstimator = (*DepthEstimator)(nil)

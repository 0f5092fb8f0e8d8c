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

// DamageClassifier распознаёт тип повреждения набором эвристических
// детекторов по фиксированному словарю. Каждый детектор независим,
// кадру может быть приписано несколько типов сразу.
type DamageClassifier struct {
	log *logrus.Logger
}

// NewDamageClassifier создаёт классификатор.
func NewDamageClassifier(log *logrus.Logger) *DamageClassifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DamageClassifier{log: log}
}

// frameFeatures признаки одного кадра, общие для всех детекторов.
// Шероховатость и секторный разброс считаются по самому кадру,
// контурные и линейные признаки по маске трещин.
type frameFeatures struct {
	roughness   float64 // нормированная шероховатость поверхности, 0-1
	fineDensity float64 // доля пикселей тонких трещин после эрозии
	circles     []contourStat
	lines       []float64 // длины отрезков, найденных в маске трещин
	sectorScore float64   // неравномерность износа по угловым секторам, 0-1
}

type contourStat struct {
	area        float64
	circularity float64
}

// ClassifyDamage прогоняет детекторы по кадрам, применяет порог присутствия
// и пишет сводный JSON в outputDir.
func (c *DamageClassifier) ClassifyDamage(ctx context.Context, damagedDir, crackMasksDir, outputDir string) (*entity.DamageAnalysis, error) {
	if err := ensureDir(outputDir); err != nil {
		return nil, err
	}

	damFrames, err := listFrames(damagedDir)
	if err != nil {
		return nil, err
	}
	if len(damFrames) == 0 {
		return nil, entity.ErrNoFrames
	}
	crackMasks, err := listFrames(crackMasksDir)
	if err != nil {
		// Маски опциональны: без них детекторы тонких трещин дают ноль.
		crackMasks = nil
	}

	analysis := &entity.DamageAnalysis{
		PerTypeFrameCounts: make(map[entity.DamageType]int),
	}

	for i, framePath := range damFrames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		maskPath := ""
		if i < len(crackMasks) {
			maskPath = crackMasks[i]
		}
		features, err := c.extractFeatures(framePath, maskPath)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}

		types := c.detect(features)
		analysis.FrameResults = append(analysis.FrameResults, entity.FrameDamageResult{
			FrameIndex:  i,
			DamageTypes: types,
		})
		for _, t := range types {
			analysis.PerTypeFrameCounts[t]++
		}
		analysis.TotalFramesAnalyzed++
	}

	analysis.DetectedDamageTypes = entity.ConfirmDamageTypes(analysis.PerTypeFrameCounts, analysis.TotalFramesAnalyzed)

	if err := writeJSON(filepath.Join(outputDir, "damage_classification_results.json"), analysis); err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"frames":   analysis.TotalFramesAnalyzed,
		"detected": analysis.DetectedDamageTypes,
	}).Info("damage classification finished")
	return analysis, nil
}

// detect применяет эвристики к признакам кадра.
func (c *DamageClassifier) detect(f frameFeatures) []entity.DamageType {
	var types []entity.DamageType

	// Пузыри: несколько округлых контуров заметной площади.
	if round := roundContours(f.circles); len(round) >= 3 {
		var sum float64
		for _, ct := range round {
			sum += ct.circularity
		}
		if sum/float64(len(round)) > 0.75 {
			types = append(types, entity.DamageBlistering)
		}
	}

	// Сеть мелких трещин: высокая плотность тонких линий.
	if f.fineDensity > 0.02 {
		types = append(types, entity.DamageMicroCracks)
	}

	// Зернистость: шероховатая поверхность при умеренной плотности линий.
	if f.roughness > 0.6 && f.fineDensity > 0.01 {
		types = append(types, entity.DamageGrain)
	}

	// Порезы: несколько длинных прямых отрезков.
	if len(f.lines) >= 2 {
		var sum float64
		for _, l := range f.lines {
			sum += l
		}
		if sum/float64(len(f.lines))/100.0 > 0.5 {
			types = append(types, entity.DamageCuts)
		}
	}

	// Локальный износ: один угловой сектор сильно отличается от остальных.
	if f.sectorScore > 0.3 {
		types = append(types, entity.DamageFlatSpots)
	}

	// Вырванные куски: крупный контур неправильной формы.
	for _, ct := range f.circles {
		if ct.area > 500 && ct.circularity < 0.5 {
			types = append(types, entity.DamageChunking)
			break
		}
	}

	return types
}

func roundContours(stats []contourStat) []contourStat {
	round := stats[:0:0]
	for _, ct := range stats {
		if ct.area >= 50 && ct.circularity > 0.7 {
			round = append(round, ct)
		}
	}
	return round
}

func (c *DamageClassifier) extractFeatures(framePath, maskPath string) (frameFeatures, error) {
	var f frameFeatures

	gray, err := readGray(framePath)
	if err != nil {
		return f, err
	}
	defer gray.Close()

	f.roughness = surfaceRoughness(gray)
	f.sectorScore = sectorVarianceScore(gray)

	// Контуры и отрезки ищутся только в маске трещин. Рисунок протектора
	// даёт длинные прямые контуры на каждом кадре, включая эталонный,
	// и повреждением не является.
	if maskPath == "" {
		return f, nil
	}
	mask, err := readGray(maskPath)
	if err != nil {
		return f, err
	}
	defer mask.Close()

	f.fineDensity = fineCrackDensity(mask)
	f.circles = contourStats(mask)
	f.lines = lineSegments(mask)

	return f, nil
}

// surfaceRoughness оценивает шероховатость как стандартное отклонение
// модуля градиента Собеля, нормированное к 0-1.
func surfaceRoughness(gray gocv.Mat) float64 {
	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	gocv.Sobel(gray, &gx, gocv.MatTypeCV64F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gy, gocv.MatTypeCV64F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	mag := gocv.NewMat()
	defer mag.Close()
	gocv.Magnitude(gx, gy, &mag)

	rows, cols := mag.Rows(), mag.Cols()
	total := rows * cols
	if total == 0 {
		return 0
	}
	var sum, sumSq float64
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := mag.GetDoubleAt(y, x)
			sum += v
			sumSq += v * v
		}
	}
	mean := sum / float64(total)
	variance := sumSq/float64(total) - mean*mean
	if variance <= 0 {
		return 0
	}
	return math.Min(math.Sqrt(variance)/50.0, 1.0)
}

// contourStats собирает площадь и округлость внешних контуров бинарной маски.
// Округлость 4πA/P^2 равна единице для идеального круга.
func contourStats(mask gocv.Mat) []contourStat {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	stats := make([]contourStat, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		perimeter := gocv.ArcLength(contour, true)
		if perimeter <= 0 {
			continue
		}
		stats = append(stats, contourStat{
			area:        area,
			circularity: 4 * math.Pi * area / (perimeter * perimeter),
		})
	}
	return stats
}

// lineSegments возвращает длины отрезков, найденных вероятностным Хафом
// в бинарной маске.
func lineSegments(mask gocv.Mat) []float64 {
	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(mask, &lines, 1, math.Pi/180, 30, 20, 10)

	lengths := make([]float64, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		seg := lines.GetVeciAt(i, 0)
		dx := float64(seg[2] - seg[0])
		dy := float64(seg[3] - seg[1])
		lengths = append(lengths, math.Hypot(dx, dy))
	}
	return lengths
}

// fineCrackDensity доля пикселей, переживших эрозию 2x2: широкие
// области исчезают, остаются только тонкие линии.
func fineCrackDensity(mask gocv.Mat) float64 {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(2, 2))
	defer kernel.Close()
	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.Erode(mask, &eroded, kernel)
	return maskRatio(eroded)
}

// sectorVarianceScore делит эллиптическую зону протектора на 12 угловых
// секторов и сравнивает разброс яркости между ними. Сектор, выбивающийся
// из ряда, признак локального износа.
func sectorVarianceScore(gray gocv.Mat) float64 {
	const sectors = 12
	rows, cols := gray.Rows(), gray.Cols()
	if rows == 0 || cols == 0 {
		return 0
	}
	cx, cy := float64(cols)/2, float64(rows)/2
	a, b := float64(cols)/3, float64(rows)/3
	if a <= 0 || b <= 0 {
		return 0
	}

	var sum, sumSq [sectors]float64
	var count [sectors]int
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			if (dx*dx)/(a*a)+(dy*dy)/(b*b) > 1 {
				continue
			}
			angle := math.Atan2(dy, dx)
			if angle < 0 {
				angle += 2 * math.Pi
			}
			s := int(angle / (2 * math.Pi) * sectors)
			if s >= sectors {
				s = sectors - 1
			}
			v := float64(gray.GetUCharAt(y, x))
			sum[s] += v
			sumSq[s] += v * v
			count[s]++
		}
	}

	var variances []float64
	for s := 0; s < sectors; s++ {
		if count[s] == 0 {
			continue
		}
		mean := sum[s] / float64(count[s])
		variance := sumSq[s]/float64(count[s]) - mean*mean
		if variance < 0 {
			variance = 0
		}
		variances = append(variances, variance)
	}
	if len(variances) == 0 {
		return 0
	}

	var maxVar, avgVar float64
	for _, v := range variances {
		if v > maxVar {
			maxVar = v
		}
		avgVar += v
	}
	avgVar /= float64(len(variances))
	if avgVar <= 0 {
		return 0
	}
	return math.Min((maxVar/avgVar-1)/2, 1.0)
}

var _ port.DamageClassifier = (*DamageClassifier)(nil)

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

// Preprocessor готовит кадры видео к анализу: поиск окружности покрышки,
// кадрирование, стабилизация и выравнивание яркости.
type Preprocessor struct {
	FrameSize      int     // канонический размер итогового кадра
	CropPadding    float64 // запас кадрирования за радиусом
	CircleSamples  int     // число точек на окружности при голосовании
	CircleMinVotes float64 // доля совпадений с контуром для принятия кандидата
	CenterStep     int     // шаг перебора центров
	RadiusStep     int     // шаг перебора радиусов
	MinMatches     int     // минимум совпадений признаков для стабилизации
	CLAHEClipLimit float64
	log            *logrus.Logger
}

// NewPreprocessor создаёт препроцессор с параметрами по умолчанию.
func NewPreprocessor(log *logrus.Logger) *Preprocessor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Preprocessor{
		FrameSize:      entity.StandardFrameSize,
		CropPadding:    0.3,
		CircleSamples:  16,
		CircleMinVotes: 0.5,
		CenterStep:     8,
		RadiusStep:     4,
		MinMatches:     10,
		CLAHEClipLimit: 2.0,
		log:            log,
	}
}

// ProcessVideo раскладывает видео на кадры и прогоняет их через подготовку.
func (p *Preprocessor) ProcessVideo(ctx context.Context, videoPath, outputDir string, fps int) (*entity.PreprocessResult, error) {
	framesDir := filepath.Join(outputDir, "frames")
	if err := ensureDir(framesDir); err != nil {
		return nil, err
	}

	actualFPS, err := p.extractFrames(ctx, videoPath, framesDir, fps)
	if err != nil {
		return nil, err
	}

	result, err := p.ProcessFramesDir(ctx, framesDir, outputDir)
	if err != nil {
		return nil, err
	}
	result.VideoPath = videoPath
	result.FPS = actualFPS
	if err := p.writeMetadata(outputDir, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ProcessFramesDir готовит уже извлечённые кадры.
func (p *Preprocessor) ProcessFramesDir(ctx context.Context, framesDir, outputDir string) (*entity.PreprocessResult, error) {
	processedDir := filepath.Join(outputDir, "processed_frames")
	if err := ensureDir(processedDir); err != nil {
		return nil, err
	}

	framePaths, err := listFrames(framesDir)
	if err != nil {
		return nil, err
	}
	if len(framePaths) == 0 {
		return nil, entity.ErrNoFrames
	}

	result := &entity.PreprocessResult{ProcessedFramesDir: processedDir}

	// Шаг 1-2: поиск окружности и кадрирование. Кадры без окружности
	// получают бегущую среднюю по уже принятым; если принятых ещё нет,
	// кадр пропускается.
	var reoriented []gocv.Mat
	var accepted []entity.Circle
	defer func() {
		for i := range reoriented {
			reoriented[i].Close()
		}
	}()

	for _, path := range framePaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := readImage(path)
		if err != nil {
			p.log.WithError(err).Warn("skipping unreadable frame")
			result.SkippedFrames++
			continue
		}

		circle, found := p.DetectCircle(img)
		if !found {
			if len(accepted) == 0 {
				img.Close()
				result.SkippedFrames++
				continue
			}
			circle = entity.AverageCircle(accepted)
		} else {
			accepted = append(accepted, circle)
		}

		frame := p.reorient(img, circle)
		img.Close()
		reoriented = append(reoriented, frame)
	}

	if len(reoriented) == 0 {
		return nil, entity.ErrNoCircles
	}
	result.AverageCircle = entity.AverageCircle(accepted)

	// Шаг 3: стабилизация. Последовательная свёртка: кадр i выравнивается
	// по уже стабилизированному кадру i-1, поэтому распараллеливать нельзя.
	stabilized, unstabilized := p.stabilize(ctx, reoriented)
	defer func() {
		for i := range stabilized {
			stabilized[i].Close()
		}
	}()
	result.UnstabilizedFrames = unstabilized

	// Шаг 4: выравнивание яркости и запись итоговых кадров.
	clahe := gocv.NewCLAHEWithParams(p.CLAHEClipLimit, image.Pt(8, 8))
	defer clahe.Close()

	for i := range stabilized {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		normalized := p.normalize(stabilized[i], clahe)
		outPath := filepath.Join(processedDir, fmt.Sprintf("processed_%04d.png", i))
		err := writeImage(outPath, normalized)
		normalized.Close()
		if err != nil {
			return nil, err
		}
		result.TotalFrames++
	}

	if err := p.writeMetadata(outputDir, result); err != nil {
		return nil, err
	}
	return result, nil
}

// writeMetadata сохраняет итог препроцессинга рядом с кадрами.
func (p *Preprocessor) writeMetadata(outputDir string, result *entity.PreprocessResult) error {
	return writeJSON(filepath.Join(outputDir, "preprocessing_metadata.json"), result)
}

// extractFrames декодирует видео в PNG-кадры с заданной частотой.
func (p *Preprocessor) extractFrames(ctx context.Context, videoPath, framesDir string, fps int) (float64, error) {
	capture, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return 0, fmt.Errorf("open video %s: %w", videoPath, err)
	}
	defer capture.Close()

	sourceFPS := capture.Get(gocv.VideoCaptureFPS)
	if sourceFPS <= 0 {
		sourceFPS = 30
	}
	targetFPS := float64(fps)
	if targetFPS <= 0 || targetFPS > sourceFPS {
		targetFPS = sourceFPS
	}
	step := sourceFPS / targetFPS

	frame := gocv.NewMat()
	defer frame.Close()

	var read, written int
	next := 0.0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if ok := capture.Read(&frame); !ok || frame.Empty() {
			break
		}
		if float64(read) >= next {
			outPath := filepath.Join(framesDir, fmt.Sprintf("frame_%04d.png", written))
			if err := writeImage(outPath, frame); err != nil {
				return 0, err
			}
			written++
			next += step
		}
		read++
	}
	if written == 0 {
		return 0, fmt.Errorf("%s: %w", videoPath, entity.ErrNoFrames)
	}
	return targetFPS, nil
}

// DetectCircle ищет окружность покрышки голосованием по контурному изображению:
// кандидат принимается, если больше половины точек его окружности попадают
// на контур; из принятых выбирается кандидат с максимумом голосов.
func (p *Preprocessor) DetectCircle(img gocv.Mat) (entity.Circle, bool) {
	gray := toGray(img)
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(9, 9), 2, 2, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, 50, 150)

	// Утолщение контуров даёт допуск на неидеальную окружность.
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(edges, &dilated, kernel)

	width, height := img.Cols(), img.Rows()
	minSide := minInt(width, height)
	minRadius := int(float64(minSide) * entity.MinCircleRadiusRatio)
	maxRadius := int(float64(minSide) * entity.MaxCircleRadiusRatio)

	best := entity.Circle{}
	bestVotes := 0
	minVotes := int(math.Ceil(float64(p.CircleSamples) * p.CircleMinVotes))

	for r := minRadius; r <= maxRadius; r += p.RadiusStep {
		for cy := r; cy < height-r; cy += p.CenterStep {
			for cx := r; cx < width-r; cx += p.CenterStep {
				votes := p.countCircleVotes(dilated, cx, cy, r)
				if votes > minVotes && votes > bestVotes {
					bestVotes = votes
					best = entity.Circle{X: cx, Y: cy, Radius: r}
				}
			}
		}
	}

	if bestVotes == 0 || !best.ValidRadius(minSide) {
		return entity.Circle{}, false
	}
	return best, true
}

func (p *Preprocessor) countCircleVotes(edges gocv.Mat, cx, cy, r int) int {
	votes := 0
	for s := 0; s < p.CircleSamples; s++ {
		angle := 2 * math.Pi * float64(s) / float64(p.CircleSamples)
		x := cx + int(float64(r)*math.Cos(angle))
		y := cy + int(float64(r)*math.Sin(angle))
		if x < 0 || y < 0 || x >= edges.Cols() || y >= edges.Rows() {
			continue
		}
		if edges.GetUCharAt(y, x) > 0 {
			votes++
		}
	}
	return votes
}

// reorient кадрирует квадрат вокруг окружности с запасом и приводит
// его к каноническому размеру.
func (p *Preprocessor) reorient(img gocv.Mat, circle entity.Circle) gocv.Mat {
	padding := int(float64(circle.Radius) * p.CropPadding)
	x1 := maxInt(0, circle.X-circle.Radius-padding)
	y1 := maxInt(0, circle.Y-circle.Radius-padding)
	x2 := minInt(img.Cols(), circle.X+circle.Radius+padding)
	y2 := minInt(img.Rows(), circle.Y+circle.Radius+padding)

	region := img.Region(image.Rect(x1, y1, x2, y2))
	defer region.Close()

	resized := gocv.NewMat()
	gocv.Resize(region, &resized, image.Pt(p.FrameSize, p.FrameSize), 0, 0, gocv.InterpolationLinear)
	return resized
}

// stabilize убирает дрожание камеры: для каждого кадра оценивается
// аффинное преобразование к предыдущему стабилизированному кадру по
// совпадениям ORB-признаков. При нехватке совпадений кадр выпускается
// без стабилизации.
func (p *Preprocessor) stabilize(ctx context.Context, frames []gocv.Mat) ([]gocv.Mat, int) {
	if len(frames) == 0 {
		return nil, 0
	}

	orb := gocv.NewORB()
	defer orb.Close()
	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, true)
	defer matcher.Close()

	stabilized := make([]gocv.Mat, 0, len(frames))
	stabilized = append(stabilized, frames[0].Clone())
	unstabilized := 0

	for i := 1; i < len(frames); i++ {
		if ctx.Err() != nil {
			break
		}
		aligned, ok := p.alignFrame(orb, &matcher, stabilized[i-1], frames[i])
		if !ok {
			unstabilized++
		}
		stabilized = append(stabilized, aligned)
	}

	// Кадры, не обработанные из-за отмены, выпускаются как есть.
	for i := len(stabilized); i < len(frames); i++ {
		stabilized = append(stabilized, frames[i].Clone())
	}
	return stabilized, unstabilized
}

func (p *Preprocessor) alignFrame(orb gocv.ORB, matcher *gocv.BFMatcher, prev, curr gocv.Mat) (gocv.Mat, bool) {
	mask := gocv.NewMat()
	defer mask.Close()

	kpPrev, desPrev := orb.DetectAndCompute(prev, mask)
	defer desPrev.Close()
	kpCurr, desCurr := orb.DetectAndCompute(curr, mask)
	defer desCurr.Close()

	if desPrev.Empty() || desCurr.Empty() {
		return curr.Clone(), false
	}

	matches := matcher.Match(desPrev, desCurr)
	if len(matches) < p.MinMatches {
		return curr.Clone(), false
	}

	// Используются 50 лучших совпадений по дистанции дескрипторов.
	sortMatchesByDistance(matches)
	limit := minInt(len(matches), 50)

	prevPts := make([]gocv.Point2f, 0, limit)
	currPts := make([]gocv.Point2f, 0, limit)
	for _, m := range matches[:limit] {
		kp1 := kpPrev[m.QueryIdx]
		kp2 := kpCurr[m.TrainIdx]
		prevPts = append(prevPts, gocv.Point2f{X: float32(kp1.X), Y: float32(kp1.Y)})
		currPts = append(currPts, gocv.Point2f{X: float32(kp2.X), Y: float32(kp2.Y)})
	}

	from := gocv.NewPoint2fVectorFromPoints(currPts)
	defer from.Close()
	to := gocv.NewPoint2fVectorFromPoints(prevPts)
	defer to.Close()

	transform := gocv.EstimateAffinePartial2D(from, to)
	defer transform.Close()
	if transform.Empty() {
		return curr.Clone(), false
	}

	aligned := gocv.NewMat()
	gocv.WarpAffine(curr, &aligned, transform, image.Pt(curr.Cols(), curr.Rows()))
	return aligned, true
}

func sortMatchesByDistance(matches []gocv.DMatch) {
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Distance < matches[j-1].Distance; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
}

// normalize выравнивает яркость и контраст через CLAHE по каналу
// светлоты LAB.
func (p *Preprocessor) normalize(frame gocv.Mat, clahe gocv.CLAHE) gocv.Mat {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(frame, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()

	equalized := gocv.NewMat()
	defer equalized.Close()
	clahe.Apply(channels[0], &equalized)

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge([]gocv.Mat{equalized, channels[1], channels[2]}, &merged)

	normalized := gocv.NewMat()
	gocv.CvtColor(merged, &normalized, gocv.ColorLabToBGR)
	return normalized
}

var _ port.Preprocessor = (*Preprocessor)(nil)

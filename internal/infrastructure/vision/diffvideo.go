//go:build gocv
// +build gocv

package vision

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"tyre-vision/internal/domain/entity"
	"tyre-vision/internal/domain/port"
)

// VideoSynthesizer собирает презентационные видео: наложение различий
// между эталоном и повреждённой покрышкой и контурное видео.
type VideoSynthesizer struct {
	CrackAlpha float64 // прозрачность красной подсветки трещин
	DepthAlpha float64 // вес карты глубины при смешивании
	log        *logrus.Logger
}

// NewVideoSynthesizer создаёт сборщик видео.
func NewVideoSynthesizer(log *logrus.Logger) *VideoSynthesizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &VideoSynthesizer{
		CrackAlpha: 0.3,
		DepthAlpha: 0.4,
		log:        log,
	}
}

// SynthesizeFromFrames собирает видео различий из каталогов кадров.
// Слои накладываются в фиксированном порядке: белые контуры различий,
// цветовая карта глубины, красная подсветка трещин.
func (v *VideoSynthesizer) SynthesizeFromFrames(ctx context.Context, referenceDir, damagedDir, outputPath string, opts port.DiffVideoOptions) (*port.DiffVideoMetadata, error) {
	refFrames, err := listFrames(referenceDir)
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

	var crackMasks, depthMaps []string
	if opts.ApplyCrackOverlay && opts.CrackMapsDir != "" {
		crackMasks, _ = listFrames(opts.CrackMapsDir)
	}
	if opts.ApplyDepthColors && opts.DepthMapsDir != "" {
		depthMaps, _ = listFrames(opts.DepthMapsDir)
	}

	first, err := readImage(damFrames[0])
	if err != nil {
		return nil, err
	}
	width, height := first.Cols(), first.Rows()
	first.Close()

	fps := opts.FPS
	if fps <= 0 {
		fps = 30
	}
	if err := ensureDir(filepath.Dir(outputPath)); err != nil {
		return nil, err
	}
	writer, err := gocv.VideoWriterFile(outputPath, "mp4v", float64(fps), width, height, true)
	if err != nil {
		return nil, fmt.Errorf("open video writer %s: %w", outputPath, err)
	}
	defer writer.Close()

	meta := &port.DiffVideoMetadata{
		OutputPath: outputPath,
		FPS:        fps,
		Width:      width,
		Height:     height,
	}
	meta.AppliedEffects.EdgeDetection = opts.ApplyEdges
	meta.AppliedEffects.CrackOverlay = opts.ApplyCrackOverlay
	meta.AppliedEffects.DepthColors = opts.ApplyDepthColors

	for i := 0; i < pairs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		crackPath, depthPath := "", ""
		if i < len(crackMasks) {
			crackPath = crackMasks[i]
		}
		if i < len(depthMaps) {
			depthPath = depthMaps[i]
		}
		frame, err := v.composeFrame(refFrames[i], damFrames[i], crackPath, depthPath, opts)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		matchFrameSize(&frame, width, height)
		err = writer.Write(frame)
		frame.Close()
		if err != nil {
			return nil, fmt.Errorf("write frame %d: %w", i, err)
		}
		meta.NumFrames++
	}

	v.log.WithFields(logrus.Fields{
		"output": outputPath,
		"frames": meta.NumFrames,
	}).Info("difference video synthesized")
	return meta, nil
}

// SynthesizeFromVideos раскладывает оба видео во временные каталоги
// и собирает видео различий из кадров.
func (v *VideoSynthesizer) SynthesizeFromVideos(ctx context.Context, referencePath, damagedPath, outputPath string, opts port.DiffVideoOptions) (*port.DiffVideoMetadata, error) {
	tmpDir, err := os.MkdirTemp("", "diffvideo-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	refDir := filepath.Join(tmpDir, "reference")
	damDir := filepath.Join(tmpDir, "damaged")
	for _, pair := range []struct{ video, dir string }{
		{referencePath, refDir},
		{damagedPath, damDir},
	} {
		if err := ensureDir(pair.dir); err != nil {
			return nil, err
		}
		if err := extractAllFrames(ctx, pair.video, pair.dir); err != nil {
			return nil, err
		}
	}

	return v.SynthesizeFromFrames(ctx, refDir, damDir, outputPath, opts)
}

// SynthesizeEdgeVideo строит контурное видео: CLAHE для выравнивания
// контраста и Canny по каждому кадру.
func (v *VideoSynthesizer) SynthesizeEdgeVideo(ctx context.Context, videoPath, outputPath string) (*port.DiffVideoMetadata, error) {
	capture, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", videoPath, err)
	}
	defer capture.Close()

	fps := capture.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = 30
	}
	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))

	if err := ensureDir(filepath.Dir(outputPath)); err != nil {
		return nil, err
	}
	writer, err := gocv.VideoWriterFile(outputPath, "mp4v", fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("open video writer %s: %w", outputPath, err)
	}
	defer writer.Close()

	clahe := gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8))
	defer clahe.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	gray := gocv.NewMat()
	defer gray.Close()
	equalized := gocv.NewMat()
	defer equalized.Close()
	edges := gocv.NewMat()
	defer edges.Close()
	out := gocv.NewMat()
	defer out.Close()

	meta := &port.DiffVideoMetadata{
		OutputPath: outputPath,
		FPS:        int(fps),
		Width:      width,
		Height:     height,
	}
	meta.AppliedEffects.EdgeDetection = true

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ok := capture.Read(&frame); !ok || frame.Empty() {
			break
		}
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
		clahe.Apply(gray, &equalized)
		gocv.Canny(equalized, &edges, 50, 150)
		gocv.CvtColor(edges, &out, gocv.ColorGrayToBGR)
		if err := writer.Write(out); err != nil {
			return nil, fmt.Errorf("write frame %d: %w", meta.NumFrames, err)
		}
		meta.NumFrames++
	}
	if meta.NumFrames == 0 {
		return nil, fmt.Errorf("%s: %w", videoPath, entity.ErrNoFrames)
	}

	v.log.WithFields(logrus.Fields{
		"output": outputPath,
		"frames": meta.NumFrames,
	}).Info("edge video synthesized")
	return meta, nil
}

// composeFrame накладывает слои различий на повреждённый кадр.
func (v *VideoSynthesizer) composeFrame(refPath, damPath, crackPath, depthPath string, opts port.DiffVideoOptions) (gocv.Mat, error) {
	base, err := readImage(damPath)
	if err != nil {
		return gocv.NewMat(), err
	}

	if opts.ApplyEdges {
		if err := v.overlayEdges(refPath, &base); err != nil {
			base.Close()
			return gocv.NewMat(), err
		}
	}

	if opts.ApplyDepthColors && depthPath != "" {
		if err := v.blendDepth(depthPath, &base); err != nil {
			base.Close()
			return gocv.NewMat(), err
		}
	}

	if opts.ApplyCrackOverlay && crackPath != "" {
		if err := v.overlayCracks(crackPath, &base); err != nil {
			base.Close()
			return gocv.NewMat(), err
		}
	}

	return base, nil
}

// overlayEdges рисует белым контуры областей, отличающихся от эталона.
func (v *VideoSynthesizer) overlayEdges(refPath string, base *gocv.Mat) error {
	refGray, err := readGray(refPath)
	if err != nil {
		return err
	}
	defer refGray.Close()

	baseGray := toGray(*base)
	defer baseGray.Close()
	matchSize(baseGray, &refGray)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(refGray, baseGray, &diff)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(diff, &edges, 50, 150)

	white := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), base.Rows(), base.Cols(), base.Type())
	defer white.Close()
	white.CopyToWithMask(base, edges)
	return nil
}

// blendDepth смешивает кадр с цветовой картой глубины.
func (v *VideoSynthesizer) blendDepth(depthPath string, base *gocv.Mat) error {
	depthMap, err := readImage(depthPath)
	if err != nil {
		return err
	}
	defer depthMap.Close()
	matchSize(*base, &depthMap)

	blended := gocv.NewMat()
	gocv.AddWeighted(*base, 1.0-v.DepthAlpha, depthMap, v.DepthAlpha, 0, &blended)
	base.Close()
	*base = blended
	return nil
}

// overlayCracks подсвечивает трещины полупрозрачным красным по бинарной маске.
func (v *VideoSynthesizer) overlayCracks(maskPath string, base *gocv.Mat) error {
	mask, err := readGray(maskPath)
	if err != nil {
		return err
	}
	defer mask.Close()
	matchSize(*base, &mask)

	overlay := base.Clone()
	defer overlay.Close()
	red := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), base.Rows(), base.Cols(), base.Type())
	defer red.Close()
	red.CopyToWithMask(&overlay, mask)

	blended := gocv.NewMat()
	gocv.AddWeighted(*base, 1.0-v.CrackAlpha, overlay, v.CrackAlpha, 0, &blended)
	base.Close()
	*base = blended
	return nil
}

// extractAllFrames декодирует все кадры видео в PNG без прореживания.
func extractAllFrames(ctx context.Context, videoPath, outDir string) error {
	capture, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return fmt.Errorf("open video %s: %w", videoPath, err)
	}
	defer capture.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ok := capture.Read(&frame); !ok || frame.Empty() {
			break
		}
		outPath := filepath.Join(outDir, fmt.Sprintf("frame_%04d.png", count))
		if err := writeImage(outPath, frame); err != nil {
			return err
		}
		count++
	}
	if count == 0 {
		return fmt.Errorf("%s: %w", videoPath, entity.ErrNoFrames)
	}
	return nil
}

// matchFrameSize подгоняет кадр под размер видеопотока.
func matchFrameSize(frame *gocv.Mat, width, height int) {
	if frame.Cols() == width && frame.Rows() == height {
		return
	}
	resized := gocv.NewMat()
	gocv.Resize(*frame, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
	frame.Close()
	*frame = resized
}

var _ port.VideoSynthesizer = (*VideoSynthesizer)(nil)

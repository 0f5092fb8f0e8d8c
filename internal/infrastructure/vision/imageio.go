//go:build gocv
// +build gocv

package vision

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"
)

// listFrames возвращает отсортированные пути к кадрам в каталоге.
func listFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frames dir %s: %w", dir, err)
	}
	frames := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			frames = append(frames, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(frames)
	return frames, nil
}

// readImage читает цветное изображение; пустой Mat считается ошибкой.
func readImage(path string) (gocv.Mat, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("failed to read image %s", path)
	}
	return mat, nil
}

// readGray читает изображение в градациях серого.
func readGray(path string) (gocv.Mat, error) {
	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("failed to read image %s", path)
	}
	return mat, nil
}

// writeImage сохраняет изображение, PNG без потерь для масок и карт.
func writeImage(path string, mat gocv.Mat) error {
	if ok := gocv.IMWrite(path, mat); !ok {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}

// ensureDir создаёт каталог вместе с родителями.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	return nil
}

// toGray переводит изображение в градации серого; одноканальное клонируется.
func toGray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return gray
}

// maskRatio доля ненулевых пикселей одноканальной маски.
func maskRatio(mask gocv.Mat) float64 {
	total := mask.Cols() * mask.Rows()
	if total <= 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total)
}

// matchSize приводит b к размеру a, если они различаются.
func matchSize(a gocv.Mat, b *gocv.Mat) {
	if a.Cols() != b.Cols() || a.Rows() != b.Rows() {
		resized := gocv.NewMat()
		gocv.Resize(*b, &resized, image.Pt(a.Cols(), a.Rows()), 0, 0, gocv.InterpolationArea)
		b.Close()
		*b = resized
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

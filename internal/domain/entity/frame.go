package entity

// StandardFrameSize канонический размер кадра после препроцессинга (квадрат).
const StandardFrameSize = 512

// Границы радиуса покрышки относительно меньшей стороны кадра.
const (
	MinCircleRadiusRatio = 0.20
	MaxCircleRadiusRatio = 0.45
)

// Circle описывает найденную окружность покрышки в координатах исходного кадра.
type Circle struct {
	X      int `json:"x"`      // координата X центра
	Y      int `json:"y"`      // координата Y центра
	Radius int `json:"radius"` // радиус в пикселях
}

// ValidRadius проверяет, что радиус попадает в допустимый диапазон
// для кадра с меньшей стороной minSide.
func (c Circle) ValidRadius(minSide int) bool {
	r := float64(c.Radius)
	side := float64(minSide)
	return r >= side*MinCircleRadiusRatio && r <= side*MaxCircleRadiusRatio
}

// AverageCircle возвращает среднюю окружность по списку найденных.
func AverageCircle(circles []Circle) Circle {
	if len(circles) == 0 {
		return Circle{}
	}
	var sx, sy, sr int
	for _, c := range circles {
		sx += c.X
		sy += c.Y
		sr += c.Radius
	}
	n := len(circles)
	return Circle{X: sx / n, Y: sy / n, Radius: sr / n}
}

// PreprocessResult итог препроцессинга одного видео.
type PreprocessResult struct {
	VideoPath          string  `json:"videoPath"`          // исходное видео
	TotalFrames        int     `json:"totalFrames"`        // сколько кадров выпущено
	FPS                float64 `json:"fps"`                // частота извлечения кадров
	AverageCircle      Circle  `json:"averageCircle"`      // средняя окружность по видео
	ProcessedFramesDir string  `json:"processedFramesDir"` // каталог итоговых кадров
	SkippedFrames      int     `json:"skippedFrames"`      // кадры без окружности и без fallback
	UnstabilizedFrames int     `json:"unstabilizedFrames"` // кадры, выпущенные без стабилизации
}

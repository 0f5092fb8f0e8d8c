package entity

// DefaultMmPerIntensity приближённый коэффициент перевода интенсивности
// в миллиметры. Не оптическая калибровка, настраивается через конфиг.
const DefaultMmPerIntensity = 0.05

// FrameDepthResult результат оценки глубины для одной пары кадров.
type FrameDepthResult struct {
	FrameIndex   int     `json:"frameIndex"`   // позиция кадра в видео
	MaxDepthMm   float64 `json:"maxDepthMm"`   // максимальная глубина, мм
	MeanDepthMm  float64 `json:"meanDepthMm"`  // средняя глубина, мм
	StdDepth     float64 `json:"stdDepth"`     // стандартное отклонение глубины, мм
	DepthMapPath string  `json:"depthMapPath"` // цветная визуализация
}

// DepthAnalysis сводный результат оценщика глубины по всему видео.
type DepthAnalysis struct {
	TotalFramesAnalyzed int                `json:"totalFramesAnalyzed"`
	MaxDepthMm          float64            `json:"maxDepthMm"`
	AvgMaxDepthMm       float64            `json:"avgMaxDepthMm"`
	CompositeMapPath    string             `json:"compositeMapPath"`
	FrameResults        []FrameDepthResult `json:"frameResults"`
}

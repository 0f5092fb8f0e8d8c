package entity

// MinCrackArea минимальная площадь связной компоненты, считающейся трещиной.
const MinCrackArea = 20

// FrameCrackResult результат поиска трещин в одном кадре.
type FrameCrackResult struct {
	FrameIndex      int     `json:"frameIndex"`      // позиция кадра в видео
	CrackCount      int     `json:"crackCount"`      // число связных компонент >= MinCrackArea
	CrackDensity    float64 `json:"crackDensity"`    // доля пикселей-трещин в процентах
	CrackMapPath    string  `json:"crackMapPath"`    // визуализация с красной подсветкой
	CrackBinaryPath string  `json:"crackBinaryPath"` // бинарная маска
}

// CrackAnalysis сводный результат детектора трещин по всему видео.
type CrackAnalysis struct {
	TotalFramesAnalyzed int                `json:"totalFramesAnalyzed"`
	TotalCracks         int                `json:"totalCracks"`
	AvgCracksPerFrame   float64            `json:"avgCracksPerFrame"`
	AvgDensity          float64            `json:"avgDensity"`
	CompositeMapPath    string             `json:"compositeMapPath"`
	FrameResults        []FrameCrackResult `json:"frameResults"`
}

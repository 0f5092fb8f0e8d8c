package entity

// Весовые коэффициенты итоговой оценки серьёзности.
const (
	CrackDensityWeight = 0.40
	DepthWeight        = 0.30
	DamageTypeWeight   = 0.30
)

// Нормировочные максимумы компонент.
const (
	MaxExpectedCrackDensity = 10.0 // процентов площади кадра
	MaxExpectedDepthMm      = 5.0  // миллиметров, считается критическим
)

// RecommendedAction рекомендация по дальнейшему использованию покрышки.
type RecommendedAction string

const (
	ActionReplaceImmediately RecommendedAction = "replace-immediately"
	ActionMonitorNextStint   RecommendedAction = "monitor-next-stint"
	ActionSafeQualifyingOnly RecommendedAction = "safe-qualifying-only"
)

// ActionForScore возвращает рекомендацию по итоговой оценке 0-100.
func ActionForScore(score float64) RecommendedAction {
	switch {
	case score > 80:
		return ActionReplaceImmediately
	case score >= 50:
		return ActionMonitorNextStint
	default:
		return ActionSafeQualifyingOnly
	}
}

// SeverityRecord точка таймлайна: оценка для одного угла поворота.
type SeverityRecord struct {
	RotationAngle     float64 `json:"rotationAngle"`     // градусы, 0-360
	Severity          float64 `json:"severity"`          // итоговая оценка 0-100
	CrackDensityScore float64 `json:"crackDensityScore"` // компонента плотности трещин
	DepthScore        float64 `json:"depthScore"`        // компонента глубины
	DamageTypeScore   float64 `json:"damageTypeScore"`   // компонента типа повреждения
}

// TimelineStats сводная статистика по таймлайну.
type TimelineStats struct {
	MaxSeverity float64 `json:"maxSeverity"`
	MinSeverity float64 `json:"minSeverity"`
	AvgSeverity float64 `json:"avgSeverity"`
}

// SeverityAnalysis итог агрегатора серьёзности.
type SeverityAnalysis struct {
	OverallSeverityScore float64           `json:"overallSeverityScore"`
	RecommendedAction    RecommendedAction `json:"recommendedAction"`
	CrackDensityScore    float64           `json:"crackDensityScore"`
	DepthScore           float64           `json:"depthScore"`
	DamageTypeScore      float64           `json:"damageTypeScore"`
	Timeline             []SeverityRecord  `json:"severityTimeline"`
	TimelineStats        TimelineStats     `json:"timelineStats"`
}

// RotationAngle переводит индекс кадра в угол поворота: линейная развёртка
// полного оборота на все кадры видео.
func RotationAngle(frameIndex, totalFrames int) float64 {
	if totalFrames <= 0 {
		return 0
	}
	return float64(frameIndex) / float64(totalFrames) * 360.0
}

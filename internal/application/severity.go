package app

import (
	"tyre-vision/internal/domain/entity"
)

// SeverityCalculator агрегатор серьёзности: сводит плотность трещин,
// глубину и типы повреждений в одну оценку 0-100 и таймлайн по углу поворота.
type SeverityCalculator struct {
	MaxDensity float64 // нормировочный максимум плотности трещин, %
	MaxDepthMm float64 // нормировочный максимум глубины, мм
}

// NewSeverityCalculator создаёт агрегатор с нормировками по умолчанию.
func NewSeverityCalculator() *SeverityCalculator {
	return &SeverityCalculator{
		MaxDensity: entity.MaxExpectedCrackDensity,
		MaxDepthMm: entity.MaxExpectedDepthMm,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeDensity приводит плотность трещин (в процентах) к шкале 0-1.
func (c *SeverityCalculator) normalizeDensity(density float64) float64 {
	if c.MaxDensity <= 0 {
		return 0
	}
	return clamp01(density / c.MaxDensity)
}

// normalizeDepth приводит глубину в миллиметрах к шкале 0-1.
func (c *SeverityCalculator) normalizeDepth(depthMm float64) float64 {
	if c.MaxDepthMm <= 0 {
		return 0
	}
	return clamp01(depthMm / c.MaxDepthMm)
}

// damageTypeScore возвращает вес самого серьёзного из найденных типов (0-1).
func (c *SeverityCalculator) damageTypeScore(types []entity.DamageType) float64 {
	var maxWeight float64
	for _, t := range types {
		if w := t.SeverityWeight(); w > maxWeight {
			maxWeight = w
		}
	}
	return maxWeight
}

// FrameSeverity считает оценку и компоненты для одной точки таймлайна.
func (c *SeverityCalculator) FrameSeverity(crackDensity, depthMm float64, types []entity.DamageType) entity.SeverityRecord {
	crackScore := c.normalizeDensity(crackDensity)
	depthScore := c.normalizeDepth(depthMm)
	damageScore := c.damageTypeScore(types)

	severity := crackScore*entity.CrackDensityWeight +
		depthScore*entity.DepthWeight +
		damageScore*entity.DamageTypeWeight

	return entity.SeverityRecord{
		Severity:          clamp01(severity) * 100.0,
		CrackDensityScore: crackScore * 100.0,
		DepthScore:        depthScore * 100.0,
		DamageTypeScore:   damageScore * 100.0,
	}
}

// Aggregate сводит результаты трёх анализов в итоговую оценку и таймлайн.
// Итоговая оценка считается той же формулой по средним значениям за видео,
// а не усреднением покадровых оценок.
func (c *SeverityCalculator) Aggregate(
	cracks *entity.CrackAnalysis,
	depth *entity.DepthAnalysis,
	damage *entity.DamageAnalysis,
) *entity.SeverityAnalysis {
	overall := c.FrameSeverity(cracks.AvgDensity, depth.MaxDepthMm, damage.DetectedDamageTypes)

	timeline := c.buildTimeline(cracks, depth, damage)
	stats := timelineStats(timeline, overall.Severity)

	return &entity.SeverityAnalysis{
		OverallSeverityScore: overall.Severity,
		RecommendedAction:    entity.ActionForScore(overall.Severity),
		CrackDensityScore:    overall.CrackDensityScore,
		DepthScore:           overall.DepthScore,
		DamageTypeScore:      overall.DamageTypeScore,
		Timeline:             timeline,
		TimelineStats:        stats,
	}
}

// buildTimeline строит покадровый таймлайн, спроецированный на угол поворота.
func (c *SeverityCalculator) buildTimeline(
	cracks *entity.CrackAnalysis,
	depth *entity.DepthAnalysis,
	damage *entity.DamageAnalysis,
) []entity.SeverityRecord {
	numFrames := len(cracks.FrameResults)
	if n := len(depth.FrameResults); n < numFrames {
		numFrames = n
	}
	if n := len(damage.FrameResults); n < numFrames {
		numFrames = n
	}
	if numFrames == 0 {
		return nil
	}

	timeline := make([]entity.SeverityRecord, 0, numFrames)
	for i := 0; i < numFrames; i++ {
		rec := c.FrameSeverity(
			cracks.FrameResults[i].CrackDensity,
			depth.FrameResults[i].MaxDepthMm,
			damage.FrameResults[i].DamageTypes,
		)
		rec.RotationAngle = entity.RotationAngle(i, numFrames)
		timeline = append(timeline, rec)
	}
	return timeline
}

func timelineStats(timeline []entity.SeverityRecord, fallback float64) entity.TimelineStats {
	if len(timeline) == 0 {
		return entity.TimelineStats{MaxSeverity: fallback, MinSeverity: fallback, AvgSeverity: fallback}
	}
	stats := entity.TimelineStats{
		MaxSeverity: timeline[0].Severity,
		MinSeverity: timeline[0].Severity,
	}
	var sum float64
	for _, p := range timeline {
		if p.Severity > stats.MaxSeverity {
			stats.MaxSeverity = p.Severity
		}
		if p.Severity < stats.MinSeverity {
			stats.MinSeverity = p.Severity
		}
		sum += p.Severity
	}
	stats.AvgSeverity = sum / float64(len(timeline))
	return stats
}

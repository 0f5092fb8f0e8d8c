package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tyre-vision/internal/domain/entity"
)

func TestFrameSeverity_AllComponentsMaxed(t *testing.T) {
	calc := NewSeverityCalculator()
	rec := calc.FrameSeverity(10.0, 5.0, []entity.DamageType{entity.DamageChunking})
	require.InDelta(t, 100.0, rec.Severity, 1e-9)
	require.InDelta(t, 100.0, rec.CrackDensityScore, 1e-9)
	require.InDelta(t, 100.0, rec.DepthScore, 1e-9)
	require.InDelta(t, 100.0, rec.DamageTypeScore, 1e-9)
}

func TestFrameSeverity_WeightedFusion(t *testing.T) {
	calc := NewSeverityCalculator()
	// Половинная плотность и глубина, без типов повреждений:
	// 0.5*0.4 + 0.5*0.3 + 0*0.3 = 0.35.
	rec := calc.FrameSeverity(5.0, 2.5, nil)
	require.InDelta(t, 35.0, rec.Severity, 1e-9)
}

func TestFrameSeverity_ClampsAboveNormalization(t *testing.T) {
	calc := NewSeverityCalculator()
	rec := calc.FrameSeverity(50.0, 20.0, nil)
	require.InDelta(t, 100.0, rec.CrackDensityScore, 1e-9)
	require.InDelta(t, 100.0, rec.DepthScore, 1e-9)
	require.LessOrEqual(t, rec.Severity, 100.0)
}

func TestFrameSeverity_WorstDamageTypeWins(t *testing.T) {
	calc := NewSeverityCalculator()
	rec := calc.FrameSeverity(0, 0, []entity.DamageType{
		entity.DamageGrain,    // 0.4
		entity.DamageCuts,     // 0.8
		entity.DamageChunking, // 1.0
	})
	require.InDelta(t, 100.0, rec.DamageTypeScore, 1e-9)
	require.InDelta(t, 30.0, rec.Severity, 1e-9)
}

func TestAggregate_TimelineTruncatedToShortest(t *testing.T) {
	calc := NewSeverityCalculator()

	cracks := &entity.CrackAnalysis{
		AvgDensity: 2.0,
		FrameResults: []entity.FrameCrackResult{
			{CrackDensity: 1}, {CrackDensity: 2}, {CrackDensity: 3}, {CrackDensity: 4},
		},
	}
	depth := &entity.DepthAnalysis{
		MaxDepthMm: 1.0,
		FrameResults: []entity.FrameDepthResult{
			{MaxDepthMm: 0.5}, {MaxDepthMm: 1.0}, {MaxDepthMm: 0.7},
		},
	}
	damage := &entity.DamageAnalysis{
		FrameResults: []entity.FrameDamageResult{
			{}, {DamageTypes: []entity.DamageType{entity.DamageCuts}}, {},
		},
	}

	analysis := calc.Aggregate(cracks, depth, damage)
	require.Len(t, analysis.Timeline, 3)
	require.InDelta(t, 0.0, analysis.Timeline[0].RotationAngle, 1e-9)
	require.InDelta(t, 120.0, analysis.Timeline[1].RotationAngle, 1e-9)
	require.Equal(t, entity.ActionSafeQualifyingOnly, analysis.RecommendedAction)
	require.GreaterOrEqual(t, analysis.TimelineStats.MaxSeverity, analysis.TimelineStats.MinSeverity)
}

func TestAggregate_EmptyTimelineFallsBackToOverall(t *testing.T) {
	calc := NewSeverityCalculator()
	analysis := calc.Aggregate(
		&entity.CrackAnalysis{AvgDensity: 10},
		&entity.DepthAnalysis{MaxDepthMm: 5},
		&entity.DamageAnalysis{DetectedDamageTypes: []entity.DamageType{entity.DamageChunking}},
	)
	require.Empty(t, analysis.Timeline)
	require.InDelta(t, 100.0, analysis.OverallSeverityScore, 1e-9)
	require.InDelta(t, 100.0, analysis.TimelineStats.AvgSeverity, 1e-9)
	require.Equal(t, entity.ActionReplaceImmediately, analysis.RecommendedAction)
}

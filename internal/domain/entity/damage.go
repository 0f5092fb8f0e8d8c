package entity

// DamageType тип повреждения покрышки.
type DamageType string

const (
	DamageBlistering  DamageType = "blistering"   // пузыри на поверхности
	DamageMicroCracks DamageType = "micro-cracks" // сеть мелких трещин
	DamageGrain       DamageType = "grain"        // зернистость без круглых контуров
	DamageCuts        DamageType = "cuts"         // длинные прямые порезы
	DamageFlatSpots   DamageType = "flat-spots"   // локальный износ в одном секторе
	DamageChunking    DamageType = "chunking"     // вырванные куски резины
)

// AllDamageTypes фиксированный словарь типов повреждений.
var AllDamageTypes = []DamageType{
	DamageBlistering,
	DamageMicroCracks,
	DamageGrain,
	DamageCuts,
	DamageFlatSpots,
	DamageChunking,
}

// damageSeverity вес серьёзности типа повреждения (0-1).
var damageSeverity = map[DamageType]float64{
	DamageBlistering:  0.7,
	DamageMicroCracks: 0.5,
	DamageGrain:       0.4,
	DamageCuts:        0.8,
	DamageFlatSpots:   0.9,
	DamageChunking:    1.0,
}

// SeverityWeight возвращает вес серьёзности типа. Для неизвестного типа 0.5.
func (d DamageType) SeverityWeight() float64 {
	if w, ok := damageSeverity[d]; ok {
		return w
	}
	return 0.5
}

// DamagePresenceThreshold доля кадров, начиная с которой тип повреждения
// считается подтверждённым для всего видео.
const DamagePresenceThreshold = 0.2

// FrameDamageResult типы повреждений, найденные в одном кадре.
type FrameDamageResult struct {
	FrameIndex  int          `json:"frameIndex"`
	DamageTypes []DamageType `json:"damageTypes"`
}

// Has сообщает, найден ли тип в этом кадре.
func (f FrameDamageResult) Has(d DamageType) bool {
	for _, t := range f.DamageTypes {
		if t == d {
			return true
		}
	}
	return false
}

// DamageAnalysis сводный результат классификатора по всему видео.
type DamageAnalysis struct {
	TotalFramesAnalyzed int                 `json:"totalFramesAnalyzed"`
	DetectedDamageTypes []DamageType        `json:"detectedDamageTypes"`
	PerTypeFrameCounts  map[DamageType]int  `json:"perTypeFrameCounts"`
	FrameResults        []FrameDamageResult `json:"frameResults"`
}

// ConfirmDamageTypes применяет порог присутствия к покадровым счётчикам:
// тип входит в итоговый список только если встретился не менее чем в
// DamagePresenceThreshold доле проанализированных кадров.
func ConfirmDamageTypes(counts map[DamageType]int, totalFrames int) []DamageType {
	confirmed := make([]DamageType, 0, len(AllDamageTypes))
	if totalFrames == 0 {
		return confirmed
	}
	threshold := float64(totalFrames) * DamagePresenceThreshold
	for _, d := range AllDamageTypes {
		if float64(counts[d]) >= threshold {
			confirmed = append(confirmed, d)
		}
	}
	return confirmed
}

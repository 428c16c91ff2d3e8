package ml

import "smartcage-backend/internal/models"

// Rule thresholds used when no fitted model is loaded
const (
	GasDangerTemp     = 55.0
	LightBrightMax    = 1365
	LightDimMax       = 2730
	RuleConfidence    = 100.0
	NoModelConfidence = 0.0
)

// FallbackRule classifies a reading without a fitted model
type FallbackRule func(r models.Reading) (label string, confidence float64)

// GasRule flags detected gas as dangerous once the cage is above GasDangerTemp
func GasRule(r models.Reading) (string, float64) {
	switch {
	case !r.GasDetected:
		return models.LabelAman, RuleConfidence
	case r.Temp > GasDangerTemp:
		return models.LabelBahaya, RuleConfidence
	default:
		return models.LabelWaspada, RuleConfidence
	}
}

// LightRule splits the 12-bit LDR range into thirds
func LightRule(r models.Reading) (string, float64) {
	switch {
	case r.LDRValue <= LightBrightMax:
		return models.LabelTerang, RuleConfidence
	case r.LDRValue <= LightDimMax:
		return models.LabelRedup, RuleConfidence
	default:
		return models.LabelGelap, RuleConfidence
	}
}

// NoModelRule is used where no deterministic rule exists
func NoModelRule(models.Reading) (string, float64) {
	return models.LabelNoModel, NoModelConfidence
}

// DefaultFallbacks returns the fallback rule for every channel
func DefaultFallbacks() map[models.Channel]FallbackRule {
	return map[models.Channel]FallbackRule{
		models.ChannelTempHumidity: NoModelRule,
		models.ChannelGas:          GasRule,
		models.ChannelLight:        LightRule,
	}
}

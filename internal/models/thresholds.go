package models

// Thresholds are the confidence and tolerance bars the pipeline gates on.
type Thresholds struct {
	Critical            float64 `yaml:"critical"`             // critical fields (totals, identifiers)
	Important           float64 `yaml:"important"`            // non-critical fields, warning only
	Overall             float64 `yaml:"overall"`              // review gate minimum
	ValidatorOverall    float64 `yaml:"validator_overall"`    // validator's own pass/warn bar
	ArithmeticTolerance float64 `yaml:"arithmetic_tolerance"` // currency units
}

// DefaultThresholds returns the production bars.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical:            0.995,
		Important:           0.98,
		Overall:             0.90,
		ValidatorOverall:    0.99,
		ArithmeticTolerance: 0.01,
	}
}

// WithDefaults fills zero values from DefaultThresholds.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	if t.Critical <= 0 {
		t.Critical = d.Critical
	}
	if t.Important <= 0 {
		t.Important = d.Important
	}
	if t.Overall <= 0 {
		t.Overall = d.Overall
	}
	if t.ValidatorOverall <= 0 {
		t.ValidatorOverall = d.ValidatorOverall
	}
	if t.ArithmeticTolerance <= 0 {
		t.ArithmeticTolerance = d.ArithmeticTolerance
	}
	return t
}

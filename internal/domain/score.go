package domain

// Verdict is the final categorical recommendation for a token.
type Verdict string

const (
	VerdictHot     Verdict = "HOT"
	VerdictCaution Verdict = "CAUTION"
	VerdictAvoid   Verdict = "AVOID"
)

// String returns the string representation of Verdict.
func (v Verdict) String() string {
	return string(v)
}

// IsValid checks if the verdict is a valid value.
func (v Verdict) IsValid() bool {
	return v == VerdictHot || v == VerdictCaution || v == VerdictAvoid
}

// Factor is one contributing component of a score.
type Factor struct {
	Name         string  // component name, e.g. "mint_authority"
	Weight       float64 // configured weight of the component
	Contribution float64 // points contributed to the final score
	Detail       string  // human-readable explanation
}

// ScoreResult is the derived judgment for one snapshot. Immutable.
type ScoreResult struct {
	SafetyScore float64 // [0, 100]
	HypeScore   float64 // [0, 100]
	Verdict     Verdict
	Confidence  float64 // [0, 1], reduced by missing fields and divergence

	SafetyFactors []Factor
	HypeFactors   []Factor
	RiskFactors   []string // human-readable red flags
}

// AlertType selects the message template for a formatted alert.
type AlertType string

const (
	AlertNewDetection     AlertType = "new_detection"
	AlertPriceMove        AlertType = "price_move"
	AlertMomentumShift    AlertType = "momentum_shift"
	AlertLargeTransaction AlertType = "large_transaction"
)

// String returns the string representation of AlertType.
func (a AlertType) String() string {
	return string(a)
}

// IsValid checks if the alert type is a valid value.
func (a AlertType) IsValid() bool {
	switch a {
	case AlertNewDetection, AlertPriceMove, AlertMomentumShift, AlertLargeTransaction:
		return true
	}
	return false
}

package moderation

// RiskLevel is the four-tier aggregate severity used by the validation and
// sanitization stages. Within one evaluation it only ever escalates.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "low"
	}
}

// Escalate returns the higher of the two levels. Risk never decreases within
// a validation or sanitization call chain.
func (r RiskLevel) Escalate(other RiskLevel) RiskLevel {
	if other > r {
		return other
	}
	return r
}

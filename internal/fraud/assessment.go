package fraud

import "time"

// RiskLevel buckets a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Action is the engine's recommendation to the settlement pipeline.
type Action string

const (
	ActionAllow      Action = "ALLOW"
	ActionReview     Action = "REVIEW"
	ActionBlock      Action = "BLOCK"
	ActionRequire2FA Action = "REQUIRE_2FA"
)

// Score-to-level thresholds. The mapping is a fixed policy: identical scores
// always yield identical levels and actions.
const (
	mediumThreshold   = 0.3
	highThreshold     = 0.6
	criticalThreshold = 0.8
)

// LevelForScore maps a risk score in [0,1] to its risk level.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score < mediumThreshold:
		return RiskLow
	case score < highThreshold:
		return RiskMedium
	case score < criticalThreshold:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// ActionForLevel maps a risk level to the recommended action.
func ActionForLevel(level RiskLevel) Action {
	switch level {
	case RiskLow:
		return ActionAllow
	case RiskMedium:
		return ActionReview
	case RiskHigh:
		return ActionRequire2FA
	default:
		return ActionBlock
	}
}

// Assessment is the verdict produced once per transaction and consumed
// exactly once by the coordinator. It is handed by value and never persisted
// as an aggregate, only logged.
type Assessment struct {
	TransactionID     string        `json:"transactionId"`
	RiskScore         float64       `json:"riskScore"`
	RiskLevel         RiskLevel     `json:"riskLevel"`
	RiskFactors       []string      `json:"riskFactors"`
	RecommendedAction Action        `json:"recommendedAction"`
	InferenceTimeMs   int64         `json:"inferenceTimeMs"`
	// Degraded marks an assessment produced by the local fallback after the
	// scoring backend was unavailable. It routes verdicts identically but is
	// logged distinctly for audit.
	Degraded  bool      `json:"degraded"`
	CheckedAt time.Time `json:"checkedAt"`
}

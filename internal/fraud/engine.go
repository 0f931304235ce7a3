package fraud

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Engine produces one Assessment per transaction. The scoring backend is a
// blocking dependency bounded by an explicit timeout; when it is unreachable
// or returns malformed output the engine scores locally and marks the
// assessment degraded instead of failing the transfer.
type Engine struct {
	primary  Scorer
	fallback LocalScorer
	velocity VelocityTracker
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine constructs the fraud risk engine. primary may be nil, in which
// case the local heuristic scores directly (not considered degraded).
func NewEngine(primary Scorer, velocity VelocityTracker, timeout time.Duration, logger *slog.Logger) *Engine {
	if velocity == nil {
		velocity = NewMemoryVelocityTracker()
	}
	return &Engine{
		primary:  primary,
		velocity: velocity,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Score assesses a pending transfer. It never returns an error for backend
// unavailability; the returned assessment is always usable for verdict
// routing.
func (e *Engine) Score(ctx context.Context, input ScoreInput) Assessment {
	started := e.now()
	input.At = started

	// Velocity is keyed by the source account. Source-less transactions
	// (deposits) skip it entirely; sharing one bucket across all of them
	// would flag unrelated customers as HIGH_VELOCITY.
	if input.SourceAccountID != "" {
		snap, err := e.velocity.Snapshot(ctx, input.SourceAccountID)
		if err != nil {
			// Velocity is an enrichment signal; score without it rather than stall.
			e.logger.Warn("velocity lookup failed", "account_id", input.SourceAccountID, "error", err)
		} else {
			input.HourlyCount = snap.HourlyCount
			input.DailyAmount = snap.DailyAmount
		}
	}

	score, degraded := e.scoreWithFallback(ctx, input)

	level := LevelForScore(score)
	assessment := Assessment{
		TransactionID:     input.TransactionID,
		RiskScore:         score,
		RiskLevel:         level,
		RiskFactors:       riskFactors(input, score),
		RecommendedAction: ActionForLevel(level),
		InferenceTimeMs:   e.now().Sub(started).Milliseconds(),
		Degraded:          degraded,
		CheckedAt:         started,
	}

	attrs := []any{
		"transaction_id", assessment.TransactionID,
		"risk_score", assessment.RiskScore,
		"risk_level", string(assessment.RiskLevel),
		"action", string(assessment.RecommendedAction),
		"factors", strings.Join(assessment.RiskFactors, ","),
		"inference_ms", assessment.InferenceTimeMs,
	}
	if degraded {
		// Degraded assessments route verdicts identically but must be
		// distinguishable in the audit trail.
		e.logger.Warn("transaction scored (degraded fallback)", append(attrs, "degraded", true)...)
	} else {
		e.logger.Info("transaction scored", attrs...)
	}

	if input.SourceAccountID != "" {
		if err := e.velocity.Record(ctx, input.SourceAccountID, input.Amount); err != nil {
			e.logger.Warn("velocity update failed", "account_id", input.SourceAccountID, "error", err)
		}
	}

	return assessment
}

func (e *Engine) scoreWithFallback(ctx context.Context, input ScoreInput) (float64, bool) {
	if e.primary == nil {
		score, _ := e.fallback.Score(ctx, input)
		return score, false
	}

	scoreCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	score, err := e.primary.Score(scoreCtx, input)
	if err == nil {
		return score, false
	}

	e.logger.Warn("primary scorer failed, using local heuristic", "transaction_id", input.TransactionID, "error", err)
	score, _ = e.fallback.Score(ctx, input)
	return score, true
}

// riskFactors lists the contributing signals in a fixed order so identical
// inputs produce identical factor lists.
func riskFactors(input ScoreInput, score float64) []string {
	factors := []string{}

	if input.Amount.GreaterThan(veryHighAmount) {
		factors = append(factors, "VERY_HIGH_AMOUNT")
	} else if input.Amount.GreaterThan(highAmount) {
		factors = append(factors, "HIGH_AMOUNT")
	}

	if input.TransactionType == "EXTERNAL_TRANSFER" {
		factors = append(factors, "EXTERNAL_TRANSFER")
	}

	hour := input.At.Hour()
	if hour >= unusualHourStart && hour <= unusualHourEnd {
		factors = append(factors, "UNUSUAL_TIME")
	}
	if wd := input.At.Weekday(); wd == time.Saturday || wd == time.Sunday {
		factors = append(factors, "WEEKEND_TRANSACTION")
	}

	if input.SourceIP != "" && isHighRiskIP(input.SourceIP) {
		factors = append(factors, "HIGH_RISK_IP")
	}
	if input.DeviceID == "" {
		factors = append(factors, "UNKNOWN_DEVICE")
	}
	if input.HourlyCount > velocityCountLimit || input.DailyAmount.GreaterThan(velocityAmountLimit) {
		factors = append(factors, "HIGH_VELOCITY")
	}
	if score > 0.5 {
		factors = append(factors, "MODEL_FLAG")
	}

	return factors
}

// isHighRiskIP screens against known bad ranges. A production deployment
// would consult an IP reputation service here.
func isHighRiskIP(ip string) bool {
	return strings.HasPrefix(ip, "10.") || strings.HasPrefix(ip, "192.168.")
}

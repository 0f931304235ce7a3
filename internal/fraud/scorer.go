package fraud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ErrScorerUnavailable indicates the scoring backend could not produce a
// usable score. The engine recovers from it via the local fallback; it never
// reaches the settlement caller.
var ErrScorerUnavailable = errors.New("risk scorer unavailable")

// ScoreInput carries the features a scorer consumes.
type ScoreInput struct {
	TransactionID   string
	SourceAccountID string
	TargetAccountID string
	TransactionType string
	Amount          decimal.Decimal
	Currency        string
	// Enrichment signals, all optional.
	SourceIP  string
	DeviceID  string
	Latitude  *float64
	Longitude *float64
	// Velocity snapshot for the source account, filled in by the engine.
	HourlyCount int64
	DailyAmount decimal.Decimal
	// At is the evaluation time; the engine pins it so scoring is reproducible.
	At time.Time
}

// Scorer computes a raw risk score in [0,1].
type Scorer interface {
	Score(ctx context.Context, input ScoreInput) (float64, error)
}

// Local heuristic policy constants.
var (
	highAmount     = decimal.NewFromInt(10_000)
	veryHighAmount = decimal.NewFromInt(50_000)
)

const (
	velocityCountLimit = 10
	unusualHourStart   = 1
	unusualHourEnd     = 5
)

var velocityAmountLimit = decimal.NewFromInt(100_000)

// LocalScorer is the deterministic fallback heuristic: conservative scoring
// from amount thresholds plus velocity and timing signals.
type LocalScorer struct{}

// Score derives a score purely from the input, never failing.
func (LocalScorer) Score(_ context.Context, input ScoreInput) (float64, error) {
	score := 0.1
	switch {
	case input.Amount.GreaterThan(veryHighAmount):
		score = 0.85
	case input.Amount.GreaterThan(highAmount):
		score = 0.55
	}
	if input.TransactionType == "EXTERNAL_TRANSFER" {
		score += 0.1
	}
	if input.HourlyCount > velocityCountLimit || input.DailyAmount.GreaterThan(velocityAmountLimit) {
		score += 0.2
	}
	hour := input.At.Hour()
	if hour >= unusualHourStart && hour <= unusualHourEnd {
		score += 0.05
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

// RemoteScorer calls an external risk model over HTTP.
type RemoteScorer struct {
	url    string
	client *http.Client
}

// NewRemoteScorer builds a scorer against the given model endpoint. The
// request deadline comes from the caller's context; the client timeout is a
// backstop only.
func NewRemoteScorer(url string, timeout time.Duration) *RemoteScorer {
	return &RemoteScorer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type remoteScoreRequest struct {
	TransactionID   string   `json:"transaction_id"`
	SourceAccountID string   `json:"source_account_id"`
	TargetAccountID string   `json:"target_account_id"`
	TransactionType string   `json:"transaction_type"`
	Amount          string   `json:"amount"`
	Currency        string   `json:"currency"`
	SourceIP        string   `json:"source_ip,omitempty"`
	DeviceID        string   `json:"device_id,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	HourlyCount     int64    `json:"hourly_count"`
	DailyAmount     string   `json:"daily_amount"`
}

type remoteScoreResponse struct {
	RiskScore *float64 `json:"risk_score"`
}

// Score posts the features and parses the model response. Any transport
// failure, non-200 status, or out-of-range score maps to ErrScorerUnavailable.
func (s *RemoteScorer) Score(ctx context.Context, input ScoreInput) (float64, error) {
	payload, err := json.Marshal(remoteScoreRequest{
		TransactionID:   input.TransactionID,
		SourceAccountID: input.SourceAccountID,
		TargetAccountID: input.TargetAccountID,
		TransactionType: input.TransactionType,
		Amount:          input.Amount.String(),
		Currency:        input.Currency,
		SourceIP:        input.SourceIP,
		DeviceID:        input.DeviceID,
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		HourlyCount:     input.HourlyCount,
		DailyAmount:     input.DailyAmount.String(),
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrScorerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrScorerUnavailable, resp.StatusCode)
	}

	var decoded remoteScoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("%w: malformed response: %v", ErrScorerUnavailable, err)
	}
	if decoded.RiskScore == nil || *decoded.RiskScore < 0 || *decoded.RiskScore > 1 {
		return 0, fmt.Errorf("%w: score out of range", ErrScorerUnavailable)
	}
	return *decoded.RiskScore, nil
}

package analytics

import (
	"github.com/shopspring/decimal"
)

// HoldingDelta is one institution's quarter-over-quarter position change in
// a company. SharesChange is nil for new positions (no prior quarter row).
type HoldingDelta struct {
	InstitutionName string           `json:"institution_name"`
	SharesChange    *decimal.Decimal `json:"shares_change,omitempty"`
	IsNewPosition   bool             `json:"is_new_position"`
}

// Flow summarizes institutional net flow for one company and report date.
type Flow struct {
	Buyers       int     `json:"buyers"`
	Sellers      int     `json:"sellers"`
	NewPositions int     `json:"new_positions"`
	Score        float64 `json:"score"`
	Sentiment    string  `json:"sentiment"`
}

const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)

// ComputeFlow partitions holdings into buyers (positive delta), sellers
// (negative delta) and new positions, and derives a bounded sentiment score
// (buyers-sellers)/(buyers+sellers), 0 when there is no activity.
//
// The label thresholds are exclusive: a score of exactly 0.2 or -0.2 stays
// neutral.
func ComputeFlow(holdings []HoldingDelta) Flow {
	var flow Flow
	for _, h := range holdings {
		switch {
		case h.IsNewPosition:
			flow.NewPositions++
		case h.SharesChange == nil:
			// unchanged or unknown; contributes to neither side
		case h.SharesChange.IsPositive():
			flow.Buyers++
		case h.SharesChange.IsNegative():
			flow.Sellers++
		}
	}

	total := flow.Buyers + flow.Sellers
	if total > 0 {
		flow.Score = float64(flow.Buyers-flow.Sellers) / float64(total)
	}

	switch {
	case flow.Score > 0.2:
		flow.Sentiment = SentimentBullish
	case flow.Score < -0.2:
		flow.Sentiment = SentimentBearish
	default:
		flow.Sentiment = SentimentNeutral
	}
	return flow
}

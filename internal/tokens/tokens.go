// Package tokens implements token cost estimation and plan limits.
//
// Costs are approximations: one token per ~4 characters, scaled by a
// per-model multiplier. The same formula is applied everywhere cost is
// estimated (chat input, chat output, document ingestion) so that quota
// accounting stays consistent.
package tokens

import (
	"math"
	"strings"
	"time"
)

// CharsPerToken is the base estimate of characters per token.
const CharsPerToken = 4

// EmbeddingDimensions is the vector size produced by the embedder and
// expected by the pgvector schema.
const EmbeddingDimensions = 1536

// CostPerChunk is the flat ingestion estimate for one chunk of text
// (chunk size 1000 chars / 4 chars per token).
const CostPerChunk = 250

// AvatarCost is the flat token charge for one avatar generation.
const AvatarCost = 10000

// modelMultipliers scales the base estimate per model. Premium models
// cost more per character of input.
var modelMultipliers = map[string]float64{
	"gpt-4o-mini":       1.0,
	"gpt-4o":            3.0,
	"claude-3.5-sonnet": 2.0,
	"claude-3.7-sonnet": 2.5,
}

// Multiplier returns the cost multiplier for a model.
// Unknown models fall back to 1.0.
func Multiplier(model string) float64 {
	if m, ok := modelMultipliers[model]; ok {
		return m
	}
	return 1.0
}

// Estimate returns the approximate token cost of text under the given
// model. Blank text (empty or whitespace only) costs nothing.
func Estimate(text, model string) int64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	base := math.Ceil(float64(len(text)) / CharsPerToken)
	return int64(math.Ceil(base * Multiplier(model)))
}

// Plan identifiers.
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// PlanLimits holds the monthly budget for one plan tier.
type PlanLimits struct {
	Tokens  int64
	Avatars int
}

var planLimits = map[string]PlanLimits{
	PlanFree: {Tokens: 250000, Avatars: 5},
	PlanPro:  {Tokens: 10000000, Avatars: 50},
}

// LimitsFor returns the limits for a plan. Unknown plans get the free tier.
func LimitsFor(plan string) PlanLimits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// PeriodWindow returns the calendar-month quota window containing now:
// the first of the month through the first of the next month. Quotas
// reset on month boundaries no matter when the period was created.
func PeriodWindow(now time.Time) (start, end time.Time) {
	year, month, _ := now.Date()
	start = time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}

// Remaining returns the unconsumed portion of a budget, never negative.
func Remaining(used, limit int64) int64 {
	if used >= limit {
		return 0
	}
	return limit - used
}

// PercentUsed returns consumption as a 0–100 percentage, capped at 100.
func PercentUsed(used, limit int64) float64 {
	if limit <= 0 {
		return 100
	}
	pct := float64(used) / float64(limit) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

package crm

import (
	"math"

	"github.com/shopspring/decimal"
)

// Summary holds the aggregate pipeline state a rule evaluation works from.
type Summary struct {
	ClosedRevenue decimal.Decimal
	OpenPipeline  decimal.Decimal
	ValidCount    int
}

// Aggregate folds a list of opportunities into a Summary. Malformed records
// (NaN/Inf/negative values) are skipped rather than surfaced; a nil slice
// yields a zero summary.
func Aggregate(opps []Opportunity) Summary {
	summary := Summary{
		ClosedRevenue: decimal.Zero,
		OpenPipeline:  decimal.Zero,
	}

	for _, opp := range opps {
		if math.IsNaN(opp.Value) || math.IsInf(opp.Value, 0) || opp.Value < 0 {
			continue
		}
		summary.ValidCount++

		value := decimal.NewFromFloat(opp.Value)
		switch {
		case opp.Stage.Won():
			summary.ClosedRevenue = summary.ClosedRevenue.Add(value)
		case opp.Stage != StageLost:
			summary.OpenPipeline = summary.OpenPipeline.Add(value)
		}
	}

	return summary
}

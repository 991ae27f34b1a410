package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"crm-alerts/internal/alerting"
	"crm-alerts/internal/crm"
)

// Input carries everything a rule evaluation reads. Rules are pure: the same
// input always yields the same alerts.
type Input struct {
	Summary       crm.Summary
	Opportunities []crm.Opportunity
	Existing      []alerting.Alert
	Now           time.Time
}

// Rule derives zero or more new alerts from aggregate state. Dedup keys are
// scoped to the rule's alert type, so rules evaluate independently and their
// outputs concatenate in any order.
type Rule interface {
	Evaluate(in Input) []alerting.Alert
}

func covered(alerts []alerting.Alert, t alerting.Type, key string) bool {
	for _, a := range alerts {
		if a.Covers(t, key) {
			return true
		}
	}
	return false
}

// MilestoneRule emits one success alert per revenue milestone crossed.
// Thresholds are ascending.
type MilestoneRule struct {
	Thresholds []decimal.Decimal
}

func (r MilestoneRule) Evaluate(in Input) []alerting.Alert {
	var out []alerting.Alert
	for _, threshold := range r.Thresholds {
		if in.Summary.ClosedRevenue.LessThan(threshold) {
			continue
		}
		key := threshold.StringFixed(0)
		if covered(in.Existing, alerting.TypeRevenueMilestone, key) {
			continue
		}
		out = append(out, alerting.New(
			alerting.TypeRevenueMilestone,
			key,
			"Revenue milestone reached",
			fmt.Sprintf("Closed revenue passed $%s with $%s booked", key, in.Summary.ClosedRevenue.StringFixed(0)),
			alerting.SeveritySuccess,
			in.Now,
		))
	}
	return out
}

// DealRiskRule flags material deals in closing stages whose expected close
// date falls within the risk window. Candidates are taken in input order so
// a pass does bounded, deterministic work.
type DealRiskRule struct {
	Floor         decimal.Decimal
	Stages        []crm.Stage
	WindowDays    int
	MaxCandidates int
}

func (r DealRiskRule) Evaluate(in Input) []alerting.Alert {
	var out []alerting.Alert
	considered := 0
	for _, opp := range in.Opportunities {
		if r.MaxCandidates > 0 && considered >= r.MaxCandidates {
			break
		}
		if !r.closingStage(opp.Stage) {
			continue
		}
		if math.IsNaN(opp.Value) || math.IsInf(opp.Value, 0) {
			continue
		}
		if !decimal.NewFromFloat(opp.Value).GreaterThan(r.Floor) {
			continue
		}
		considered++

		closeAt, err := opp.CloseDate()
		if err != nil {
			// Unparseable dates are skipped silently.
			continue
		}

		days := daysUntil(in.Now, closeAt)
		if days <= 0 || days > r.WindowDays {
			continue
		}
		if covered(in.Existing, alerting.TypeDealRisk, opp.ID) {
			continue
		}

		out = append(out, alerting.New(
			alerting.TypeDealRisk,
			opp.ID,
			"Deal closing soon",
			fmt.Sprintf("%s (%s) worth $%.0f is expected to close in %d day(s)", opp.Title, opp.ID, opp.Value, days),
			alerting.SeverityWarning,
			in.Now,
		))
	}
	return out
}

func (r DealRiskRule) closingStage(stage crm.Stage) bool {
	for _, s := range r.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

func daysUntil(now, closeAt time.Time) int {
	return int(math.Ceil(closeAt.Sub(now).Hours() / 24))
}

// TargetProgressRule emits one alert per percentage step crossed towards the
// configured revenue target. The final step reads as a success, steps on the
// way as info.
type TargetProgressRule struct {
	Target   decimal.Decimal
	StepsPct []int
}

func (r TargetProgressRule) Evaluate(in Input) []alerting.Alert {
	if !r.Target.IsPositive() {
		return nil
	}

	progress := in.Summary.ClosedRevenue.Div(r.Target).Mul(decimal.NewFromInt(100))

	var out []alerting.Alert
	for _, step := range r.StepsPct {
		if progress.LessThan(decimal.NewFromInt(int64(step))) {
			continue
		}
		key := fmt.Sprintf("%d%%", step)
		if covered(in.Existing, alerting.TypeTargetProgress, key) {
			continue
		}

		severity := alerting.SeverityInfo
		if step >= 100 {
			severity = alerting.SeveritySuccess
		}
		out = append(out, alerting.New(
			alerting.TypeTargetProgress,
			key,
			"Target progress",
			fmt.Sprintf("Closed revenue is at %s of the $%s target", key, r.Target.StringFixed(0)),
			severity,
			in.Now,
		))
	}
	return out
}

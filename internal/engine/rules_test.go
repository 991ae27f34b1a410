package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crm-alerts/internal/alerting"
	"crm-alerts/internal/crm"
)

func milestones(values ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		out = append(out, decimal.NewFromInt(v))
	}
	return out
}

func TestMilestoneRuleEmitsCrossedThreshold(t *testing.T) {
	rule := MilestoneRule{Thresholds: milestones(100000, 500000, 1000000)}
	opps := []crm.Opportunity{{ID: "o1", Title: "Acme", Value: 150000, Stage: crm.StageKeep}}

	in := Input{Summary: crm.Aggregate(opps), Opportunities: opps, Now: time.Now()}
	alerts := rule.Evaluate(in)

	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerts))
	}
	alert := alerts[0]
	if alert.Type != alerting.TypeRevenueMilestone {
		t.Fatalf("unexpected type %s", alert.Type)
	}
	if alert.Severity != alerting.SeveritySuccess {
		t.Fatalf("milestone alerts are success severity, got %s", alert.Severity)
	}
	if !strings.Contains(alert.Message, "100000") {
		t.Fatalf("message must reference the threshold: %q", alert.Message)
	}
}

func TestMilestoneRuleDoesNotRepeat(t *testing.T) {
	rule := MilestoneRule{Thresholds: milestones(100000, 500000, 1000000)}
	opps := []crm.Opportunity{{ID: "o1", Value: 150000, Stage: crm.StageKeep}}

	in := Input{Summary: crm.Aggregate(opps), Opportunities: opps, Now: time.Now()}
	first := rule.Evaluate(in)
	if len(first) != 1 {
		t.Fatalf("expected one alert on first run, got %d", len(first))
	}

	in.Existing = first
	second := rule.Evaluate(in)
	if len(second) != 0 {
		t.Fatalf("unchanged revenue must not re-emit the milestone, got %d alerts", len(second))
	}
}

func TestMilestoneRuleMatchesLegacyAlerts(t *testing.T) {
	rule := MilestoneRule{Thresholds: milestones(100000)}
	opps := []crm.Opportunity{{ID: "o1", Value: 150000, Stage: crm.StageKeep}}

	// Alerts written before structured keys existed carry the threshold only
	// inside the message text.
	legacy := alerting.Alert{
		Type:    alerting.TypeRevenueMilestone,
		Message: "Congratulations! Closed revenue passed $100000",
	}

	in := Input{Summary: crm.Aggregate(opps), Existing: []alerting.Alert{legacy}, Now: time.Now()}
	if alerts := rule.Evaluate(in); len(alerts) != 0 {
		t.Fatalf("substring match should suppress the milestone, got %d alerts", len(alerts))
	}
}

func dealRiskRule() DealRiskRule {
	return DealRiskRule{
		Floor:         decimal.NewFromInt(50000),
		Stages:        []crm.Stage{crm.StageAcquire, crm.StageProposal},
		WindowDays:    7,
		MaxCandidates: 4,
	}
}

func TestDealRiskRuleFlagsClosingDeal(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	opps := []crm.Opportunity{{
		ID:                "o1",
		Title:             "Acme renewal",
		Value:             80000,
		Stage:             crm.StageAcquire,
		ExpectedCloseDate: now.AddDate(0, 0, 3).Format("2006-01-02"),
	}}

	alerts := dealRiskRule().Evaluate(Input{Opportunities: opps, Now: now})
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one deal risk alert, got %d", len(alerts))
	}
	alert := alerts[0]
	if alert.Severity != alerting.SeverityWarning {
		t.Fatalf("deal risk alerts are warnings, got %s", alert.Severity)
	}
	if !strings.Contains(alert.Message, "o1") {
		t.Fatalf("message must reference the opportunity id: %q", alert.Message)
	}
}

func TestDealRiskRuleSkipsBadDate(t *testing.T) {
	now := time.Now()
	opps := []crm.Opportunity{{
		ID:                "o1",
		Value:             80000,
		Stage:             crm.StageAcquire,
		ExpectedCloseDate: "not-a-date",
	}}

	if alerts := dealRiskRule().Evaluate(Input{Opportunities: opps, Now: now}); len(alerts) != 0 {
		t.Fatalf("unparseable dates must be skipped silently, got %d alerts", len(alerts))
	}
}

func TestDealRiskRuleIgnoresImmaterialAndClosedDeals(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	closeSoon := now.AddDate(0, 0, 2).Format("2006-01-02")
	opps := []crm.Opportunity{
		{ID: "small", Value: 10000, Stage: crm.StageAcquire, ExpectedCloseDate: closeSoon},
		{ID: "won", Value: 90000, Stage: crm.StageKeep, ExpectedCloseDate: closeSoon},
		{ID: "late", Value: 90000, Stage: crm.StageAcquire, ExpectedCloseDate: now.AddDate(0, 0, 30).Format("2006-01-02")},
		{ID: "past", Value: 90000, Stage: crm.StageAcquire, ExpectedCloseDate: now.AddDate(0, 0, -1).Format("2006-01-02")},
	}

	if alerts := dealRiskRule().Evaluate(Input{Opportunities: opps, Now: now}); len(alerts) != 0 {
		t.Fatalf("no alert expected, got %d", len(alerts))
	}
}

func TestDealRiskRuleCandidateCap(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	closeSoon := now.AddDate(0, 0, 2).Format("2006-01-02")

	rule := dealRiskRule()
	rule.MaxCandidates = 2

	opps := []crm.Opportunity{
		{ID: "o1", Value: 90000, Stage: crm.StageAcquire, ExpectedCloseDate: closeSoon},
		{ID: "o2", Value: 90000, Stage: crm.StageAcquire, ExpectedCloseDate: closeSoon},
		{ID: "o3", Value: 90000, Stage: crm.StageAcquire, ExpectedCloseDate: closeSoon},
	}

	alerts := rule.Evaluate(Input{Opportunities: opps, Now: now})
	if len(alerts) != 2 {
		t.Fatalf("cap of 2 candidates should yield 2 alerts, got %d", len(alerts))
	}
	if alerts[0].RuleKey != "o1" || alerts[1].RuleKey != "o2" {
		t.Fatalf("candidates must be taken in input order, got %s, %s", alerts[0].RuleKey, alerts[1].RuleKey)
	}
}

func TestDealRiskRuleDedupsByOpportunity(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	opps := []crm.Opportunity{{
		ID:                "o1",
		Value:             80000,
		Stage:             crm.StageAcquire,
		ExpectedCloseDate: now.AddDate(0, 0, 3).Format("2006-01-02"),
	}}

	rule := dealRiskRule()
	first := rule.Evaluate(Input{Opportunities: opps, Now: now})
	if len(first) != 1 {
		t.Fatalf("expected one alert on first run, got %d", len(first))
	}

	second := rule.Evaluate(Input{Opportunities: opps, Existing: first, Now: now})
	if len(second) != 0 {
		t.Fatalf("an open alert for the opportunity must suppress re-emission, got %d", len(second))
	}
}

func TestTargetProgressLadder(t *testing.T) {
	rule := TargetProgressRule{
		Target:   decimal.NewFromInt(2000000),
		StepsPct: []int{25, 50, 75, 90, 100},
	}
	opps := []crm.Opportunity{{ID: "o1", Value: 1100000, Stage: crm.StageKeep}}

	in := Input{Summary: crm.Aggregate(opps), Now: time.Now()}
	alerts := rule.Evaluate(in)
	if len(alerts) != 2 {
		t.Fatalf("55%% progress should cross the 25%% and 50%% steps, got %d alerts", len(alerts))
	}
	if alerts[0].RuleKey != "25%" || alerts[1].RuleKey != "50%" {
		t.Fatalf("unexpected keys %s, %s", alerts[0].RuleKey, alerts[1].RuleKey)
	}

	// Crossing the final step reads as success.
	in.Summary.ClosedRevenue = decimal.NewFromInt(2000000)
	in.Existing = alerts
	final := rule.Evaluate(in)
	last := final[len(final)-1]
	if last.RuleKey != "100%" || last.Severity != alerting.SeveritySuccess {
		t.Fatalf("final step should be a success alert, got %s/%s", last.RuleKey, last.Severity)
	}
}

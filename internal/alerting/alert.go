package alerting

import (
	"fmt"
	"strings"
	"time"
)

// Type discriminates which rule produced an alert.
type Type string

const (
	TypeRevenueMilestone Type = "revenue_milestone"
	TypeDealRisk         Type = "deal_risk"
	TypeTargetProgress   Type = "target_progress"
	TypeGrowthSpike      Type = "growth_spike"
)

// Severity drives notification sink routing.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
)

// Alert is one retained notification. RuleKey carries the structured dedup
// key; the message still embeds the key text so alert sets written by older
// builds keep matching by substring.
type Alert struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	RuleKey      string    `json:"ruleKey,omitempty"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	Severity     Severity  `json:"severity"`
	Acknowledged bool      `json:"acknowledged"`
}

// New derives an alert whose ID encodes rule type, dedup key, and creation
// time.
func New(t Type, key, title, message string, severity Severity, now time.Time) Alert {
	return Alert{
		ID:        fmt.Sprintf("%s-%s-%d", t, key, now.UnixMilli()),
		Type:      t,
		RuleKey:   key,
		Title:     title,
		Message:   message,
		Timestamp: now,
		Severity:  severity,
	}
}

// Covers reports whether this alert deduplicates the given rule-scoped key.
// Alerts without a structured key fall back to substring matching against
// the message text.
func (a Alert) Covers(t Type, key string) bool {
	if a.Type != t || key == "" {
		return false
	}
	if a.RuleKey != "" {
		return a.RuleKey == key
	}
	return strings.Contains(a.Message, key)
}

package crm

import (
	"fmt"
	"time"
)

// Stage identifies where an opportunity sits in the pipeline.
type Stage string

const (
	StageProspect Stage = "prospect"
	StageQualify  Stage = "qualify"
	StageProposal Stage = "proposal"
	StageAcquire  Stage = "acquire"
	StageKeep     Stage = "keep"
	StageLost     Stage = "lost"
)

// Won reports whether the stage denotes closed, kept revenue.
func (s Stage) Won() bool {
	return s == StageKeep
}

// Opportunity is a sales opportunity as delivered by the CRM feed. Records
// may arrive malformed; consumers guard Value and the close date explicitly.
type Opportunity struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Value             float64 `json:"value"`
	Stage             Stage   `json:"stage"`
	ExpectedCloseDate string  `json:"expectedCloseDate"`
}

var closeDateLayouts = []string{time.RFC3339, "2006-01-02"}

// CloseDate parses the expected close date. Feeds deliver either RFC3339
// timestamps or bare dates.
func (o Opportunity) CloseDate() (time.Time, error) {
	for _, layout := range closeDateLayouts {
		if t, err := time.Parse(layout, o.ExpectedCloseDate); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse expected close date %q", o.ExpectedCloseDate)
}

package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// State keys shared with whatever front end owns the same store. The names
// are part of the on-disk contract and must not change.
const (
	AlertsKey    = "financial-alerts"
	LastCheckKey = "last-alert-check"
)

// PipelineSnapshot records the aggregate outcome of one evaluation pass.
type PipelineSnapshot struct {
	CheckedAt     time.Time
	ClosedRevenue decimal.Decimal
	OpenPipeline  decimal.Decimal
	ValidCount    int
	AlertCount    int
	CreatedAt     time.Time
}

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crm-alerts/internal/alerting"
	"crm-alerts/internal/crm"
	"crm-alerts/internal/ratelimit"
	"crm-alerts/internal/storage"
)

// passRateKey identifies this engine's operation class to the rate limiter.
const passRateKey = "alert-engine-pass"

// Config collapses the tunables of the evaluation pass into one place.
type Config struct {
	MinInterval           time.Duration
	MaxAlerts             int
	MaxDealRiskCandidates int
	MaxPassesPerWindow    int
	RevenueMilestones     []float64
	RevenueTarget         float64
	TargetStepsPct        []int
	MaterialityFloor      float64
	RiskWindowDays        int
	RiskStages            []string
}

// PassResult reports what one evaluation pass did.
type PassResult struct {
	Skipped    bool
	SkipReason string
	Summary    crm.Summary
	NewAlerts  []alerting.Alert
	Retained   []alerting.Alert
}

// Engine runs gated evaluation passes over CRM opportunities, persisting the
// retained alert set and the last-check timestamp through the KV store.
type Engine struct {
	cfg     Config
	rules   []Rule
	kv      storage.KV
	limiter ratelimit.Limiter
	sink    alerting.Sink
	logger  zerolog.Logger

	// lastRun mirrors the persisted timestamp so the min-interval gate holds
	// even when every Set fails.
	lastRun time.Time
	now     func() time.Time
}

// New assembles an engine from configuration and collaborators.
func New(cfg Config, kv storage.KV, limiter ratelimit.Limiter, sink alerting.Sink, logger zerolog.Logger) *Engine {
	rules := []Rule{
		MilestoneRule{Thresholds: toDecimals(cfg.RevenueMilestones)},
		DealRiskRule{
			Floor:         decimal.NewFromFloat(cfg.MaterialityFloor),
			Stages:        toStages(cfg.RiskStages),
			WindowDays:    cfg.RiskWindowDays,
			MaxCandidates: cfg.MaxDealRiskCandidates,
		},
	}
	if cfg.RevenueTarget > 0 && len(cfg.TargetStepsPct) > 0 {
		rules = append(rules, TargetProgressRule{
			Target:   decimal.NewFromFloat(cfg.RevenueTarget),
			StepsPct: cfg.TargetStepsPct,
		})
	}

	return &Engine{
		cfg:     cfg,
		rules:   rules,
		kv:      kv,
		limiter: limiter,
		sink:    sink,
		logger:  logger.With().Str("component", "engine").Logger(),
		now:     time.Now,
	}
}

// Pass runs one gated evaluation over the given opportunities. Gate skips
// mutate no state. Once a pass starts, the last-check timestamp is advanced
// before returning regardless of how the pass ends, so a persistent failure
// can never cause tight-loop retries.
func (e *Engine) Pass(ctx context.Context, opps []crm.Opportunity) (result PassResult, err error) {
	now := e.now()

	last := e.lastChecked(ctx)
	if !last.IsZero() && now.Sub(last) < e.cfg.MinInterval {
		result.Skipped = true
		result.SkipReason = "min interval not elapsed"
		return result, nil
	}

	if e.limiter != nil && !e.limiter.Allow(passRateKey, e.cfg.MaxPassesPerWindow) {
		e.logger.Warn().Str("key", passRateKey).Msg("evaluation pass rate limited")
		result.Skipped = true
		result.SkipReason = "rate limited"
		return result, nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("evaluation pass panicked")
			err = fmt.Errorf("evaluation pass panicked: %v", r)
		}
		e.advanceLastChecked(ctx, now)
	}()

	existing := e.loadAlerts(ctx)
	result.Summary = crm.Aggregate(opps)

	in := Input{
		Summary:       result.Summary,
		Opportunities: opps,
		Existing:      existing,
		Now:           now,
	}
	for _, rule := range e.rules {
		result.NewAlerts = append(result.NewAlerts, rule.Evaluate(in)...)
	}

	result.Retained = Retain(existing, result.NewAlerts, e.cfg.MaxAlerts)

	if len(result.NewAlerts) > 0 {
		if saveErr := e.saveAlerts(ctx, result.Retained); saveErr != nil {
			e.logger.Warn().Err(saveErr).Msg("failed to persist alert set; continuing in memory")
		}
		for _, alert := range result.NewAlerts {
			alerting.Dispatch(ctx, e.sink, alert)
		}
	}

	e.logger.Debug().
		Int("existing", len(existing)).
		Int("new", len(result.NewAlerts)).
		Int("retained", len(result.Retained)).
		Msg("evaluation pass complete")

	return result, nil
}

// Alerts returns the currently retained alert set.
func (e *Engine) Alerts(ctx context.Context) ([]alerting.Alert, error) {
	raw, err := e.kv.Get(ctx, storage.AlertsKey)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var alerts []alerting.Alert
	if err := json.Unmarshal(raw, &alerts); err != nil {
		return nil, fmt.Errorf("decode alerts: %w", err)
	}
	return alerts, nil
}

// Acknowledge flips the acknowledged flag on the alert with the given ID.
func (e *Engine) Acknowledge(ctx context.Context, id string) error {
	alerts, err := e.Alerts(ctx)
	if err != nil {
		return err
	}
	for i := range alerts {
		if alerts[i].ID == id {
			alerts[i].Acknowledged = true
			return e.saveAlerts(ctx, alerts)
		}
	}
	return fmt.Errorf("alert %q not found", id)
}

func (e *Engine) loadAlerts(ctx context.Context) []alerting.Alert {
	alerts, err := e.Alerts(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("failed to load existing alerts; evaluating against empty set")
		return nil
	}
	return alerts
}

func (e *Engine) saveAlerts(ctx context.Context, alerts []alerting.Alert) error {
	raw, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("encode alerts: %w", err)
	}
	return e.kv.Set(ctx, storage.AlertsKey, raw)
}

// lastChecked reads the persisted pass timestamp, falling back to the
// in-memory mirror when the store read fails or lags behind.
func (e *Engine) lastChecked(ctx context.Context) time.Time {
	persisted := time.Time{}
	raw, err := e.kv.Get(ctx, storage.LastCheckKey)
	if err != nil {
		e.logger.Warn().Err(err).Msg("failed to read last-check timestamp")
	} else if len(raw) > 0 {
		millis, parseErr := strconv.ParseInt(string(raw), 10, 64)
		if parseErr != nil {
			e.logger.Warn().Err(parseErr).Msg("malformed last-check timestamp; ignoring")
		} else if millis > 0 {
			persisted = time.UnixMilli(millis)
		}
	}

	if e.lastRun.After(persisted) {
		return e.lastRun
	}
	return persisted
}

func (e *Engine) advanceLastChecked(ctx context.Context, now time.Time) {
	e.lastRun = now
	raw := strconv.AppendInt(nil, now.UnixMilli(), 10)
	if err := e.kv.Set(ctx, storage.LastCheckKey, raw); err != nil {
		e.logger.Warn().Err(err).Msg("failed to persist last-check timestamp")
	}
}

func toDecimals(values []float64) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(values))
	for _, v := range values {
		out = append(out, decimal.NewFromFloat(v))
	}
	return out
}

func toStages(values []string) []crm.Stage {
	out := make([]crm.Stage, 0, len(values))
	for _, v := range values {
		out = append(out, crm.Stage(v))
	}
	return out
}

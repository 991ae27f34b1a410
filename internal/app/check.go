package app

import (
	"context"
	"fmt"
	"os"

	"crm-alerts/internal/fetcher"
	"crm-alerts/internal/storage"
)

// Check runs a single evaluation pass outside the scheduler and prints the
// outcome. With Force the minimum-interval gate is bypassed.
func (a *App) Check(ctx context.Context, opts CheckOptions) error {
	var f fetcher.OpportunityFetcher
	var err error
	if opts.File != "" {
		f = fetcher.NewFile(opts.File, a.Logger)
	} else {
		f, err = a.newFetcher()
		if err != nil {
			return err
		}
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var kv storage.KV
	if store != nil {
		kv = store
	} else {
		kv = storage.NewMemoryKV()
	}

	cfg := a.engineConfig()
	if opts.Force {
		cfg.MinInterval = 0
	}

	opps, err := f.FetchOpportunities(ctx)
	if err != nil {
		return err
	}
	if len(opps) == 0 {
		fmt.Fprintln(os.Stdout, "no opportunities to evaluate")
		return nil
	}

	result, err := a.newEngine(cfg, kv).Pass(ctx, opps)
	if err != nil {
		return err
	}
	if result.Skipped {
		fmt.Fprintf(os.Stdout, "pass skipped: %s\n", result.SkipReason)
		return nil
	}

	fmt.Fprintf(os.Stdout, "closed revenue: $%s\n", result.Summary.ClosedRevenue.StringFixed(0))
	fmt.Fprintf(os.Stdout, "open pipeline:  $%s\n", result.Summary.OpenPipeline.StringFixed(0))
	fmt.Fprintf(os.Stdout, "valid records:  %d\n", result.Summary.ValidCount)
	fmt.Fprintf(os.Stdout, "new alerts:     %d\n", len(result.NewAlerts))
	for _, alert := range result.NewAlerts {
		fmt.Fprintf(os.Stdout, "  [%s] %s: %s\n", alert.Severity, alert.Title, alert.Message)
	}
	return nil
}

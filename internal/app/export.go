package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"crm-alerts/internal/storage"
)

// Export renders historical pipeline snapshots as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	snapshots, err := store.ListSnapshotsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		a.Logger.Info().Msg("no snapshots found for export window")
		return nil
	}

	downsampled := downsampleSnapshots(snapshots, opts.MaxPoints)
	a.Logger.Info().Int("total", len(snapshots)).Int("exported", len(downsampled)).Msg("exporting snapshots")

	if opts.CSVPath != "" {
		if err := writeSnapshotsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSnapshotsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSnapshots(snapshots []storage.PipelineSnapshot, max int) []storage.PipelineSnapshot {
	if max <= 0 || len(snapshots) <= max {
		return snapshots
	}

	result := make([]storage.PipelineSnapshot, 0, max)
	step := float64(len(snapshots)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(snapshots) {
			idx = len(snapshots) - 1
		}
		result = append(result, snapshots[idx])
	}
	return result
}

func writeSnapshotsCSV(path string, snapshots []storage.PipelineSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"checked_at", "closed_revenue", "open_pipeline", "valid_count", "alert_count"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, snapshot := range snapshots {
		record := []string{
			snapshot.CheckedAt.Format(time.RFC3339),
			snapshot.ClosedRevenue.String(),
			snapshot.OpenPipeline.String(),
			strconv.Itoa(snapshot.ValidCount),
			strconv.Itoa(snapshot.AlertCount),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSnapshotsPNG(path string, snapshots []storage.PipelineSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(snapshots))
	closed := make([]float64, len(snapshots))
	open := make([]float64, len(snapshots))
	alerts := make([]float64, len(snapshots))

	for i, snapshot := range snapshots {
		x[i] = snapshot.CheckedAt
		closed[i] = snapshot.ClosedRevenue.InexactFloat64()
		open[i] = snapshot.OpenPipeline.InexactFloat64()
		alerts[i] = float64(snapshot.AlertCount)
	}

	revenueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Revenue (USD)",
			ValueFormatter: revenueFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Alerts",
			ValueFormatter: revenueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Closed revenue",
				XValues: x,
				YValues: closed,
			},
			chart.TimeSeries{
				Name:    "Open pipeline",
				XValues: x,
				YValues: open,
			},
			chart.TimeSeries{
				Name:    "Retained alerts",
				XValues: x,
				YValues: alerts,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Prune removes pipeline snapshots older than the retention horizon.
func (a *App) Prune(ctx context.Context, opts PruneOptions) error {
	if opts.KeepDays <= 0 {
		return errors.New("--keep-days must be greater than zero")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot prune")
	}
	if closeStore != nil {
		defer closeStore()
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -opts.KeepDays)
	deleted, err := store.DeleteSnapshotsBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "deleted %d snapshot(s) older than %s\n", deleted, cutoff.Format(time.RFC3339))
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Show prints the retained alert set and recent pipeline snapshots.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show state")
	}
	if closeStore != nil {
		defer closeStore()
	}

	alerts, err := a.newEngine(a.engineConfig(), store).Alerts(ctx)
	if err != nil {
		return err
	}

	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts retained")
	} else {
		writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Time (UTC)\tType\tSeverity\tAck\tID\tMessage")
		for _, alert := range alerts {
			ack := ""
			if alert.Acknowledged {
				ack = "yes"
			}
			fmt.Fprintf(
				writer,
				"%s\t%s\t%s\t%s\t%s\t%s\n",
				alert.Timestamp.UTC().Format(time.RFC3339),
				alert.Type,
				alert.Severity,
				ack,
				alert.ID,
				sanitizeInline(alert.Message),
			)
		}
		writer.Flush()
	}

	snapshots, err := store.ListRecentSnapshots(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(os.Stdout, "no snapshots found")
		return nil
	}

	fmt.Fprintln(os.Stdout)
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Checked (UTC)\tClosed\tOpen\tValid\tAlerts")
	for _, snapshot := range snapshots {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%d\t%d\n",
			snapshot.CheckedAt.UTC().Format(time.RFC3339),
			snapshot.ClosedRevenue.StringFixed(0),
			snapshot.OpenPipeline.StringFixed(0),
			snapshot.ValidCount,
			snapshot.AlertCount,
		)
	}
	writer.Flush()
	return nil
}

// Ack flips the acknowledged flag on the alert with the given ID.
func (a *App) Ack(ctx context.Context, id string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot acknowledge alerts")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if err := a.newEngine(a.engineConfig(), store).Acknowledge(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "acknowledged %s\n", id)
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

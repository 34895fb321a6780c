package maintenance

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"dronesim/pkg/db"
)

// Run executes startup maintenance. Failures are logged, never fatal.
// It blocks until completion.
func Run(ctx context.Context, d *db.DB, retention time.Duration) error {
	if retention <= 0 {
		return nil
	}
	slog.Info("Starting flight log maintenance...")

	n, err := d.PruneFlights(retention)
	if err != nil {
		slog.Error("Flight pruning failed", "error", err)
		return nil
	}
	if n > 0 {
		slog.Info("Pruned old flights", "count", n, "older_than", humanize.RelTime(time.Now().Add(-retention), time.Now(), "ago", ""))
	} else {
		slog.Debug("No flights to prune")
	}
	return nil
}

var csvHeader = []string{
	"timestamp", "latitude", "longitude", "altitude_m", "speed_ms",
	"battery_percent", "heading_deg", "gps_fix_type", "satellites_visible",
}

// ExportCSV writes the recorded telemetry of one run as CSV and returns the
// number of rows written.
func ExportCSV(ctx context.Context, d *db.DB, runID string, w io.Writer) (int, error) {
	rows, err := d.QueryContext(ctx, `
		SELECT ts, lat, lon, alt, speed, battery, heading, gps_fix, sats
		FROM telemetry WHERE run_id = ? ORDER BY ts, id`, runID)
	if err != nil {
		return 0, fmt.Errorf("failed to query telemetry: %w", err)
	}
	defer rows.Close()

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}

	count := 0
	for rows.Next() {
		var ts string
		var lat, lon, alt, speed, battery, heading float64
		var fix, sats int
		if err := rows.Scan(&ts, &lat, &lon, &alt, &speed, &battery, &heading, &fix, &sats); err != nil {
			return count, err
		}
		record := []string{
			ts,
			strconv.FormatFloat(lat, 'f', 8, 64),
			strconv.FormatFloat(lon, 'f', 8, 64),
			strconv.FormatFloat(alt, 'f', 2, 64),
			strconv.FormatFloat(speed, 'f', 2, 64),
			strconv.FormatFloat(battery, 'f', 1, 64),
			strconv.FormatFloat(heading, 'f', 1, 64),
			strconv.Itoa(fix),
			strconv.Itoa(sats),
		}
		if err := cw.Write(record); err != nil {
			return count, err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, err
	}

	cw.Flush()
	return count, cw.Error()
}

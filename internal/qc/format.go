package qc

import (
	"encoding/json"
	"fmt"
	"io"
)

// OutputFormat specifies how to format the QC report output.
type OutputFormat string

const (
	// OutputFormatDefault uses a human-readable table
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs one summary JSON object per line
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FormatTable writes summaries as a formatted table to the provided writer.
// Flagged outliers are listed under each metric row.
func FormatTable(w io.Writer, summaries []Summary, study string) {
	if len(summaries) == 0 {
		fmt.Fprintf(w, "No QC metrics recorded for study '%s'\n", study)
		return
	}

	fmt.Fprintf(w, "QC metrics for study '%s':\n\n", study)

	fmt.Fprintf(w, "%-28s %6s %12s %12s %9s\n", "METRIC", "N", "MEAN", "STDDEV", "OUTLIERS")
	fmt.Fprintf(w, "%-28s %6s %12s %12s %9s\n",
		"----------------------------", "------", "------------", "------------", "---------")

	for _, s := range summaries {
		fmt.Fprintf(w, "%-28s %6d %12.4f %12.4f %9d\n",
			truncateMetric(s.Metric), s.N, s.Mean, s.Stddev, len(s.Outliers))

		for _, o := range s.Outliers {
			fmt.Fprintf(w, "    ! %s series %s: %.4f (z=%+.2f)\n", o.Subject, o.Series, o.Value, o.Z)
		}
	}

	countMsg := "metric"
	if len(summaries) != 1 {
		countMsg = "metrics"
	}
	fmt.Fprintf(w, "\n%d %s reported\n", len(summaries), countMsg)
}

// FormatJSONL writes summaries as line-delimited JSON to the provided writer.
// Each summary is a single JSON object on its own line, for piping into jq.
func FormatJSONL(w io.Writer, summaries []Summary) error {
	for _, s := range summaries {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal QC summary: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// truncateMetric shortens long metric names for the table column.
func truncateMetric(name string) string {
	if len(name) > 28 {
		return name[:25] + "..."
	}
	return name
}

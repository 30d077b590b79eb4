package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/sulcuslab/sulcus/internal/printer"
	"github.com/sulcuslab/sulcus/pkg/ledger"
)

var (
	listJSON bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded pipeline jobs",
	Long: `List jobs recorded in the study's run ledger, oldest first.

For each job, displays subject, status, exit code and when it was
queued. Use --json for machine-readable output.

Requires a ledger (set ledger.addr in study.yml).`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, _, err := loadStudy()
	if err != nil {
		return err
	}

	led, err := requireLedger(cfg)
	if err != nil {
		return err
	}
	defer led.Close()

	jobs, warnings, err := led.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	for _, w := range warnings {
		printer.Warning("%s", w)
	}

	if len(jobs) == 0 {
		if listJSON {
			fmt.Println("[]")
		} else {
			printer.Println("No jobs recorded.")
			printer.Println()
			printer.Println("Run 'sulcus run' to execute queued scripts.")
		}
		return nil
	}

	if listJSON {
		data, err := json.MarshalIndent(jobs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal jobs: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%-24s %-10s %-6s %s\n", "SUBJECT", "STATUS", "EXIT", "QUEUED")
	for _, job := range jobs {
		fmt.Printf("%-24s %-10s %-6d %s\n", job.Subject, job.Status, job.ExitCode, formatQueuedAt(job))
	}
	return nil
}

func formatQueuedAt(job *ledger.Job) string {
	if job.QueuedAtMs == 0 {
		return "-"
	}
	return time.UnixMilli(job.QueuedAtMs).Format("2006-01-02 15:04:05")
}

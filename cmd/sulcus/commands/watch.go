package commands

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/sulcuslab/sulcus/internal/printer"
	"github.com/sulcuslab/sulcus/pkg/ledger"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream job events from the run ledger",
	Long: `Stream job status changes live from the study's run ledger.

Every job created or updated by 'sulcus run' (in this or any other
process) is printed as it happens. Press Ctrl+C to stop.

Requires a ledger (set ledger.addr in study.yml).`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, _, err := loadStudy()
	if err != nil {
		return err
	}

	led, err := requireLedger(cfg)
	if err != nil {
		return err
	}
	defer led.Close()

	sub, err := led.SubscribeJobEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	printer.Info("Watching job events for study %s (Ctrl+C to stop)", cfg.Study)

	for {
		select {
		case <-ctx.Done():
			printer.Println()
			printer.Info("Stopped.")
			return nil
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("subscription error: %v", err)
		case job, ok := <-sub.Events():
			if !ok {
				return nil
			}
			printJobEvent(job)
		}
	}
}

func printJobEvent(job *ledger.Job) {
	stamp := time.Now().Format("15:04:05")
	switch job.Status {
	case ledger.JobStatusFailed:
		printer.Warning("[%s] %s %s (exit %d)", stamp, job.Subject, job.Status, job.ExitCode)
	case ledger.JobStatusComplete:
		printer.Success("[%s] %s %s", stamp, job.Subject, job.Status)
	default:
		printer.Step("[%s] %s %s", stamp, job.Subject, job.Status)
	}
}

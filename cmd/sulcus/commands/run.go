package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/sulcuslab/sulcus/internal/config"
	"github.com/sulcuslab/sulcus/internal/pipeline"
	"github.com/sulcuslab/sulcus/internal/printer"
	"github.com/sulcuslab/sulcus/internal/queue"
	"github.com/sulcuslab/sulcus/internal/runner"
	"github.com/sulcuslab/sulcus/pkg/ledger"
)

var (
	runSubject string
	runTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute queued pipeline scripts",
	Long: `Execute pipeline scripts and record each run in the study's ledger
(when one is configured).

By default, drains the queue file and runs every queued script in order.
A failing script does not stop the batch.

With --subject, runs that subject's stages directly instead: each stage
is skipped when its output file already exists, and the run stops at the
first failing stage.

Examples:
  # Drain and run the queue
  sulcus run

  # Run one subject's stages directly, without a script
  sulcus run --subject SPINS_CMH_0001_01`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSubject, "subject", "", "Run one subject's stages directly instead of the queue")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Per-script timeout (default 24h)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, env, err := loadStudy()
	if err != nil {
		return err
	}

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}
	if led != nil {
		defer led.Close()
	}

	r := runner.New(led)
	if runTimeout > 0 {
		r.SetTimeout(runTimeout)
	}

	if runSubject != "" {
		return runOneSubject(ctx, r, cfg, env, runSubject)
	}

	q := queue.New(cfg.Queue.File)
	result, err := r.RunQueue(ctx, q)
	if err != nil {
		return err
	}

	if len(result.Jobs) == 0 {
		printer.Println("Queue is empty; nothing to run.")
		return nil
	}

	for _, job := range result.Jobs {
		if job.Status == ledger.JobStatusFailed {
			printer.Warning("%s: %s (exit %d)", job.Subject, job.Status, job.ExitCode)
		} else {
			printer.Step("%s: %s", job.Subject, job.Status)
		}
	}
	printer.Success("%d script(s): %d complete, %d failed", len(result.Jobs), result.Complete, result.Failed)

	if result.Failed > 0 {
		return fmt.Errorf("%d script(s) failed", result.Failed)
	}
	return nil
}

func runOneSubject(ctx context.Context, r *runner.Runner, cfg *config.StudyConfig, env *config.Environment, subject string) error {
	gen := pipeline.NewGenerator(cfg, env)

	result, err := r.RunSubject(ctx, cfg, gen, subject)
	if err != nil {
		return err
	}

	for _, st := range result.Stages {
		if st.Skipped {
			printer.Step("%s: skipped (%s exists)", st.Name, st.Output)
			continue
		}
		if st.ExitCode != 0 {
			printer.Warning("%s: failed (exit %d)", st.Name, st.ExitCode)
			continue
		}
		printer.Step("%s: complete", st.Name)
	}

	if result.Job != nil && result.Job.Status == ledger.JobStatusFailed {
		return fmt.Errorf("subject %s failed", subject)
	}
	printer.Success("Subject %s done", subject)
	return nil
}

package commands

import (
	"github.com/spf13/cobra"
	"github.com/sulcuslab/sulcus/internal/pipeline"
	"github.com/sulcuslab/sulcus/internal/printer"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate per-subject pipeline scripts and queue them",
	Long: `Generate a pipeline script for every session directory under the study's
nii root and append each new script to the study's queue file.

Each script runs the study's stages in order, skipping any stage whose
output file already exists. Re-planning is idempotent: scripts are
rewritten (the stage list may have changed) but queue entries are never
duplicated.

Examples:
  # Plan the study in the current directory
  sulcus plan

  # Plan a study elsewhere
  sulcus plan --study /archive/SPINS/study.yml`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, env, err := loadStudy()
	if err != nil {
		return err
	}

	gen := pipeline.NewGenerator(cfg, env)
	result, err := gen.Plan()
	if err != nil {
		return err
	}

	if len(result.Subjects) == 0 {
		printer.Warning("No session directories found under %s", cfg.Paths.Nii)
		printer.Println("Session directories are named {study}_{site}_{subject}_{session}.")
		return nil
	}

	for _, script := range result.Written {
		printer.Step("wrote %s", script)
	}
	printer.Success("%d subject(s), %d script(s) written, %d newly queued", len(result.Subjects), len(result.Written), len(result.Queued))
	if len(result.Queued) > 0 {
		printer.Info("Run 'sulcus run' to execute the queue")
	}
	return nil
}

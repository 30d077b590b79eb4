package commands

import (
	"github.com/spf13/cobra"
	"github.com/sulcuslab/sulcus/internal/printer"
	"github.com/sulcuslab/sulcus/internal/queue"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show the pending script queue",
	Long: `Show the scripts currently queued for execution.

The queue is a plain text file (one script path per line) so it can be
inspected or edited by hand. 'sulcus run' drains it.`,
	RunE: runQueue,
}

func init() {
	rootCmd.AddCommand(queueCmd)
}

func runQueue(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadStudy()
	if err != nil {
		return err
	}

	q := queue.New(cfg.Queue.File)
	scripts, err := q.List()
	if err != nil {
		return err
	}

	if len(scripts) == 0 {
		printer.Println("Queue is empty.")
		printer.Println()
		printer.Println("Run 'sulcus plan' to generate and queue scripts.")
		return nil
	}

	for _, s := range scripts {
		printer.Println(s)
	}
	printer.Info("%d script(s) queued in %s", len(scripts), q.Path())
	return nil
}

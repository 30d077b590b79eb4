package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sulcuslab/sulcus/internal/scaffold"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new study workspace",
	Long: `Initialize a new study workspace in the current directory.

Creates:
  • study.yml - Study configuration with a worked example stage list
  • data/nii/, data/dcm/, qc/, logs/, pipelines/ - directory roots

Use --force to replace an existing study.yml.`,
	RunE: runInitCmd,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Replace an existing study.yml")
	rootCmd.AddCommand(initCmd)
}

func runInitCmd(cmd *cobra.Command, args []string) error {
	if err := scaffold.Initialize(forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess()
	return nil
}

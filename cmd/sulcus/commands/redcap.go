package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/sulcuslab/sulcus/internal/printer"
	"github.com/sulcuslab/sulcus/internal/redcap"
)

var (
	redcapURL string
	redcapOut string
)

var redcapCmd = &cobra.Command{
	Use:   "redcap",
	Short: "Interact with a REDCap project",
}

var redcapExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export REDCap records as CSV",
	Long: `Export all records of a REDCap project as CSV.

The API token is read from the REDCAP_TOKEN environment variable.
Records are written to stdout unless --out names a file.

Examples:
  sulcus redcap export --url https://redcap.example.org/api/
  sulcus redcap export --url https://redcap.example.org/api/ --out records.csv`,
	RunE: runRedcapExport,
}

func init() {
	redcapExportCmd.Flags().StringVar(&redcapURL, "url", "", "REDCap API URL (required)")
	redcapExportCmd.Flags().StringVarP(&redcapOut, "out", "o", "", "Write records to this file instead of stdout")
	redcapExportCmd.MarkFlagRequired("url")
	redcapCmd.AddCommand(redcapExportCmd)
	rootCmd.AddCommand(redcapCmd)
}

func runRedcapExport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, env, err := loadStudy()
	if err != nil {
		return err
	}

	if err := env.RequireRedcap(); err != nil {
		return err
	}

	client, err := redcap.NewClient(redcapURL, env.RedcapToken)
	if err != nil {
		return err
	}

	out := os.Stdout
	if redcapOut != "" {
		f, err := os.Create(redcapOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", redcapOut, err)
		}
		defer f.Close()
		out = f
	}

	n, err := client.ExportRecords(ctx, out)
	if err != nil {
		return err
	}

	if redcapOut != "" {
		printer.Success("Wrote %d byte(s) to %s", n, redcapOut)
	}
	return nil
}

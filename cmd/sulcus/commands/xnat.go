package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/sulcuslab/sulcus/internal/printer"
	"github.com/sulcuslab/sulcus/internal/xnat"
)

var (
	xnatURL     string
	xnatProject string
)

var xnatCmd = &cobra.Command{
	Use:   "xnat",
	Short: "Interact with an XNAT server",
}

var xnatPullCmd = &cobra.Command{
	Use:   "pull [SESSION_LABEL]",
	Short: "List or download imaging sessions from XNAT",
	Long: `List the imaging sessions of an XNAT project, or download one session's
scan archive into the study's dcm root.

Credentials are read from the XNAT_USER and XNAT_PASS environment
variables. The project defaults to the study code.

Examples:
  # List sessions available on the server
  sulcus xnat pull --url https://xnat.example.org

  # Download one session's archive
  sulcus xnat pull --url https://xnat.example.org SPINS_CMH_0001_01`,
	Args: cobra.MaximumNArgs(1),
	RunE: runXNATPull,
}

func init() {
	xnatPullCmd.Flags().StringVar(&xnatURL, "url", "", "XNAT server base URL (required)")
	xnatPullCmd.Flags().StringVar(&xnatProject, "project", "", "XNAT project ID (default: study code)")
	xnatPullCmd.MarkFlagRequired("url")
	xnatCmd.AddCommand(xnatPullCmd)
	rootCmd.AddCommand(xnatCmd)
}

func runXNATPull(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, env, err := loadStudy()
	if err != nil {
		return err
	}

	if err := env.RequireXNAT(); err != nil {
		return err
	}

	client, err := xnat.NewClient(xnatURL, env.XNATUser, env.XNATPass)
	if err != nil {
		return err
	}

	project := xnatProject
	if project == "" {
		project = cfg.Study
	}

	if len(args) == 0 {
		experiments, err := client.ListExperiments(ctx, project)
		if err != nil {
			return err
		}
		if len(experiments) == 0 {
			printer.Println("No sessions found in project", project)
			return nil
		}
		fmt.Printf("%-20s %-28s %s\n", "ID", "LABEL", "DATE")
		for _, e := range experiments {
			fmt.Printf("%-20s %-28s %s\n", e.ID, e.Label, e.Date)
		}
		return nil
	}

	label := args[0]
	printer.Step("downloading %s from project %s", label, project)
	path, err := client.DownloadSession(ctx, project, label, cfg.Paths.Dcm)
	if err != nil {
		return err
	}
	printer.Success("Saved %s", path)
	return nil
}

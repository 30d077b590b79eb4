package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/sulcuslab/sulcus/internal/config"
	"github.com/sulcuslab/sulcus/internal/ident"
	"github.com/sulcuslab/sulcus/internal/printer"
	"github.com/sulcuslab/sulcus/internal/qc"
)

var (
	qcSubject   string
	qcSeries    string
	qcThreshold float64
	qcOutput    string
)

var qcCmd = &cobra.Command{
	Use:   "qc",
	Short: "Track quality-control metrics",
	Long: `Track per-subject quality-control metrics produced by external QC tools.

'qc import' ingests metric CSVs into the study's QC store;
'qc report' aggregates them across subjects and flags outliers.`,
}

var qcImportCmd = &cobra.Command{
	Use:   "import CSV_FILE...",
	Short: "Import QC metric CSVs into the study's QC store",
	Long: `Import one or more QC metric CSV files (metric,value rows) into the
study's QC store.

The subject and series default to the fields parsed from each file name
({study}_{site}_{subject}_{session}_{series}_{description}); use
--subject and --series to override for files named otherwise.

Examples:
  sulcus qc import qc/SPINS_CMH_0001_01_06_T1_stats.csv
  sulcus qc import --subject SPINS_CMH_0001_01 --series 06 stats.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQCImport,
}

var qcReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report QC metrics across subjects and flag outliers",
	Long: `Aggregate every metric in the study's QC store across subjects and flag
outliers.

For each metric, reports n, mean and standard deviation; subjects whose
value deviates from the mean by at least the threshold (in standard
deviations) are flagged.

Output Formats:
  default - Human-readable table with flagged outliers listed per metric
  jsonl   - One JSON object per metric, for scripting`,
	RunE: runQCReport,
}

func init() {
	qcImportCmd.Flags().StringVar(&qcSubject, "subject", "", "Subject session label (default: parsed from file name)")
	qcImportCmd.Flags().StringVar(&qcSeries, "series", "", "Series number (default: parsed from file name)")
	qcReportCmd.Flags().Float64Var(&qcThreshold, "threshold", qc.DefaultOutlierThreshold, "Outlier threshold in standard deviations")
	qcReportCmd.Flags().StringVarP(&qcOutput, "output", "o", "default", "Output format: default or jsonl")
	qcCmd.AddCommand(qcImportCmd)
	qcCmd.AddCommand(qcReportCmd)
	rootCmd.AddCommand(qcCmd)
}

// qcStorePath is the SQLite store location inside the study's qc root.
func qcStorePath(cfg *config.StudyConfig) string {
	return filepath.Join(cfg.Paths.QC, "metrics.db")
}

func runQCImport(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadStudy()
	if err != nil {
		return err
	}

	store, err := qc.Open(qcStorePath(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	total := 0
	for _, path := range args {
		subject, series := qcSubject, qcSeries
		if subject == "" || series == "" {
			sid, err := ident.Parse(filepath.Base(path))
			if err != nil {
				return fmt.Errorf("cannot determine subject for %s (use --subject and --series): %w", path, err)
			}
			if subject == "" {
				subject = sid.SessionLabel()
			}
			if series == "" {
				series = sid.Series
			}
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		n, err := store.ImportCSV(subject, series, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", path, err)
		}

		printer.Step("%s: %d metric(s) for %s series %s", filepath.Base(path), n, subject, series)
		total += n
	}

	printer.Success("Imported %d metric(s) from %d file(s)", total, len(args))
	return nil
}

func runQCReport(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadStudy()
	if err != nil {
		return err
	}

	store, err := qc.Open(qcStorePath(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := qc.BuildReport(store, qcThreshold)
	if err != nil {
		return err
	}

	switch qcOutput {
	case "default":
		qc.FormatTable(os.Stdout, summaries, cfg.Study)
	case "jsonl":
		if err := qc.FormatJSONL(os.Stdout, summaries); err != nil {
			return err
		}
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", qcOutput),
			[]string{"Valid formats: default, jsonl"},
		)
	}
	return nil
}

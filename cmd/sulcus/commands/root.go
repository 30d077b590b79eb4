package commands

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/sulcuslab/sulcus/internal/config"
	"github.com/sulcuslab/sulcus/pkg/ledger"
)

var (
	version string
	commit  string
	date    string
)

const defaultStudyFile = "study.yml"

var studyFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sulcus",
	Short: "Sulcus - neuroimaging study data management",
	Long: `Sulcus organizes raw MRI data into a standard study layout, generates
per-subject pipeline scripts that drive external neuroimaging tools,
runs them in batches, and tracks quality-control metrics.

Each study is described by a study.yml file; scan files follow the
{study}_{site}_{subject}_{session}_{series}_{description} naming
convention throughout.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&studyFile, "study", "s", defaultStudyFile, "Path to the study configuration file")
}

// loadStudy loads the study config named by --study, falling back to
// DM_CONFIG when the flag is at its default and no local study.yml exists.
func loadStudy() (*config.StudyConfig, *config.Environment, error) {
	env, err := config.LoadEnvironment()
	if err != nil {
		return nil, nil, err
	}

	path := studyFile
	if path == defaultStudyFile && env.ConfigPath != "" {
		if _, statErr := os.Stat(path); statErr != nil {
			path = env.ConfigPath
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, env, nil
}

// openLedger connects to the study's run ledger. Returns (nil, nil) when the
// study has no ledger configured; callers treat a nil client as "no ledger".
func openLedger(cfg *config.StudyConfig) (*ledger.Client, error) {
	if cfg.Ledger == nil || cfg.Ledger.Addr == "" {
		return nil, nil
	}
	led, err := ledger.NewClient(&redis.Options{Addr: cfg.Ledger.Addr}, cfg.Study)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to run ledger: %w", err)
	}
	return led, nil
}

// requireLedger is openLedger for commands that cannot work without one.
func requireLedger(cfg *config.StudyConfig) (*ledger.Client, error) {
	led, err := openLedger(cfg)
	if err != nil {
		return nil, err
	}
	if led == nil {
		return nil, fmt.Errorf("study %q has no ledger configured (set ledger.addr in %s)", cfg.Study, studyFile)
	}
	return led, nil
}

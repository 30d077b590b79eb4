package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sulcuslab/sulcus/internal/ci"
	"github.com/sulcuslab/sulcus/internal/printer"
)

var (
	creditsFile string
	zenodoFile  string
)

var ciCmd = &cobra.Command{
	Use:   "ci",
	Short: "Repository CI helpers",
	Long: `Helpers meant to run inside CI jobs: pull-request title linting and
contributor credit aggregation. Neither needs a study.yml.`,
}

var ciLintTitleCmd = &cobra.Command{
	Use:   "lint-title TITLE",
	Short: "Check a pull-request title against the tag convention",
	Long: `Check that a pull-request title starts with one of the accepted tags:
` + "[" + strings.Join(ci.TitleTags, "] [") + "]" + `
(case-insensitive, optional /scope suffix, e.g. [fix/queue]).

On a violation, prints the review comment to post and exits non-zero.

Examples:
  sulcus ci lint-title "[fix] handle empty queue files"
  sulcus ci lint-title "$PR_TITLE" || gh pr comment ...`,
	Args: cobra.ExactArgs(1),
	RunE: runCILintTitle,
}

var ciCreditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Aggregate contributor credits into .zenodo.json",
	Long: `Read a contributors file (one "name<TAB>orcid<TAB>lines" record per
line), merge duplicate authors, order by contribution size, and replace
the creators block of a .zenodo.json citation file.

Examples:
  git ls-files | xargs -n1 git blame --line-porcelain | ... > contributors.tsv
  sulcus ci credits --contributors contributors.tsv --zenodo .zenodo.json`,
	RunE: runCICredits,
}

func init() {
	ciCreditsCmd.Flags().StringVar(&creditsFile, "contributors", "contributors.tsv", "Contributors file (name<TAB>orcid<TAB>lines per line)")
	ciCreditsCmd.Flags().StringVar(&zenodoFile, "zenodo", ".zenodo.json", "Citation file to update")
	ciCmd.AddCommand(ciLintTitleCmd)
	ciCmd.AddCommand(ciCreditsCmd)
	rootCmd.AddCommand(ciCmd)
}

func runCILintTitle(cmd *cobra.Command, args []string) error {
	result := ci.LintTitle(args[0])
	if result.OK {
		printer.Success("Title ok (tag: %s)", result.Tag)
		return nil
	}

	// The comment goes to stdout so CI can pipe it straight into a review.
	fmt.Println(result.Comment)
	return fmt.Errorf("malformed pull request title")
}

func runCICredits(cmd *cobra.Command, args []string) error {
	f, err := os.Open(creditsFile)
	if err != nil {
		return fmt.Errorf("failed to open contributors file: %w", err)
	}
	defer f.Close()

	contributors, err := ci.ParseContributors(f)
	if err != nil {
		return err
	}
	if len(contributors) == 0 {
		return fmt.Errorf("no contributors found in %s", creditsFile)
	}

	if err := ci.UpdateZenodo(zenodoFile, contributors); err != nil {
		return err
	}

	printer.Success("Updated %s with %d creator(s)", zenodoFile, len(contributors))
	return nil
}

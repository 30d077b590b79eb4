// Package ci holds the logic behind the repository's CI automation: pull
// request title linting and contributor-credit aggregation for the citation
// file. The GitHub workflows are thin wrappers that call these through the
// CLI.
package ci

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// TitleTags are the accepted PR title prefixes, matched case-insensitively.
var TitleTags = []string{"feature", "fix", "docs", "refactor", "test", "ci", "chore"}

// titlePattern matches "[tag] summary" with an optional scope, e.g.
// "[fix/qc] handle empty metric files".
var titlePattern = regexp.MustCompile(`(?i)^\[(feature|fix|docs|refactor|test|ci|chore)(/[a-z0-9-]+)?\]\s+\S`)

// LintResult is the outcome of linting one PR title.
// When OK is false, Comment holds the canned reply the labeling bot posts.
type LintResult struct {
	OK      bool
	Tag     string // Lowercased tag when OK
	Comment string // Malformed-title comment when not OK
}

// LintTitle checks a PR title against the accepted tag patterns.
// A matching title never produces a comment.
func LintTitle(title string) LintResult {
	m := titlePattern.FindStringSubmatch(strings.TrimSpace(title))
	if m != nil {
		return LintResult{OK: true, Tag: strings.ToLower(m[1])}
	}

	return LintResult{
		OK:      false,
		Comment: malformedComment(title),
	}
}

// malformedComment builds the reply posted on PRs with unrecognized titles.
func malformedComment(title string) string {
	tags := make([]string, len(TitleTags))
	for i, t := range TitleTags {
		tags[i] = "[" + t + "]"
	}
	sort.Strings(tags)

	var b strings.Builder
	fmt.Fprintf(&b, "The PR title %q does not follow the naming convention.\n\n", title)
	fmt.Fprintf(&b, "Please start the title with one of the following tags:\n\n")
	fmt.Fprintf(&b, "    %s\n\n", strings.Join(tags, " "))
	fmt.Fprintf(&b, "An optional scope may follow the tag, e.g. [fix/qc] handle empty metric files.")
	return b.String()
}

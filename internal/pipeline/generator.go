// Package pipeline generates per-subject shell scripts from a study's stage
// list. Each script is a fixed, ordered sequence of external tool invocations
// (AFNI, FSL, FreeSurfer, dcm2niix, HCP pipelines) with file-existence guards
// so already-completed stages are skipped on re-run. Generated script paths
// are appended to the study's queue file for later batch execution.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/sulcuslab/sulcus/internal/config"
	"github.com/sulcuslab/sulcus/internal/ident"
	"github.com/sulcuslab/sulcus/internal/queue"
)

// TemplateData is the field set available to stage argument and output
// templates.
type TemplateData struct {
	Study      string // Study code, e.g. SPINS
	Site       string // Site code parsed from the session label
	Subject    string // Full session label, e.g. SPINS_CMH_0001_01
	SubjectDir string // Session directory under the nii root
	NiiDir     string // Study nii root
	DcmDir     string // Study dcm root
	QCDir      string // Study qc root
	LogsDir    string // Study logs root
	Assets     string // Shared reference assets directory (DATMAN_ASSETS)
}

// Generator renders and writes per-subject pipeline scripts.
type Generator struct {
	cfg *config.StudyConfig
	env *config.Environment
}

// NewGenerator creates a Generator for the given study config and environment.
func NewGenerator(cfg *config.StudyConfig, env *config.Environment) *Generator {
	return &Generator{cfg: cfg, env: env}
}

// Subjects lists the session labels found under the study's nii root.
// Only directories whose names parse as session labels for this study are
// returned; anything else (hidden dirs, stray files, other studies) is
// ignored. The result is sorted for stable script and queue ordering.
func (g *Generator) Subjects() ([]string, error) {
	entries, err := os.ReadDir(g.cfg.Paths.Nii)
	if err != nil {
		return nil, fmt.Errorf("failed to read nii root %s: %w", g.cfg.Paths.Nii, err)
	}

	var subjects []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id, err := ident.ParseSession(entry.Name())
		if err != nil {
			continue
		}
		if id.Study != g.cfg.Study {
			continue
		}

		subjects = append(subjects, entry.Name())
	}

	sort.Strings(subjects)
	return subjects, nil
}

// Render produces the shell script text for one subject.
// The script starts with set -e so the first failing stage aborts the run,
// and every stage is wrapped in an if [ ! -f output ] guard so completed
// stages are skipped.
func (g *Generator) Render(sessionLabel string) (string, error) {
	data, err := g.templateData(sessionLabel)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "#!/bin/bash\n")
	fmt.Fprintf(&b, "# Pipeline for %s (study %s)\n", sessionLabel, g.cfg.Study)
	fmt.Fprintf(&b, "# Generated by sulcus. Safe to re-run: completed stages are skipped.\n")
	fmt.Fprintf(&b, "set -e\n")

	for _, stage := range g.cfg.Stages {
		output, err := expand(stage.Name+"/output", stage.Output, data)
		if err != nil {
			return "", err
		}

		args := make([]string, len(stage.Args))
		for i, arg := range stage.Args {
			expanded, err := expand(fmt.Sprintf("%s/args[%d]", stage.Name, i), arg, data)
			if err != nil {
				return "", err
			}
			args[i] = expanded
		}

		fmt.Fprintf(&b, "\n# stage: %s\n", stage.Name)
		fmt.Fprintf(&b, "if [ ! -f %s ]; then\n", shellWord(output))
		fmt.Fprintf(&b, "  %s\n", commandLine(stage, args, data))
		fmt.Fprintf(&b, "fi\n")
	}

	return b.String(), nil
}

// Write renders the subject's script and writes it to
// {pipelines}/{session}.sh with the executable bit set.
// Returns the script path.
func (g *Generator) Write(sessionLabel string) (string, error) {
	script, err := g.Render(sessionLabel)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(g.cfg.Paths.Pipelines, 0755); err != nil {
		return "", fmt.Errorf("failed to create pipelines directory: %w", err)
	}

	path := filepath.Join(g.cfg.Paths.Pipelines, sessionLabel+".sh")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		return "", fmt.Errorf("failed to write script %s: %w", path, err)
	}

	return path, nil
}

// PlanResult summarizes one Plan run.
type PlanResult struct {
	Subjects []string // Session labels found
	Written  []string // Script paths written
	Queued   []string // Script paths newly appended to the queue
}

// Plan generates a script for every subject under the nii root and appends
// each new script path to the study's queue file. Re-planning is idempotent:
// scripts are rewritten (the stage list may have changed) but queue entries
// are never duplicated.
func (g *Generator) Plan() (*PlanResult, error) {
	subjects, err := g.Subjects()
	if err != nil {
		return nil, err
	}

	q := queue.New(g.cfg.Queue.File)
	result := &PlanResult{Subjects: subjects}

	for _, subject := range subjects {
		path, err := g.Write(subject)
		if err != nil {
			return nil, fmt.Errorf("subject %s: %w", subject, err)
		}
		result.Written = append(result.Written, path)

		added, err := q.Append(path)
		if err != nil {
			return nil, fmt.Errorf("subject %s: %w", subject, err)
		}
		if added {
			result.Queued = append(result.Queued, path)
		}
	}

	return result, nil
}

// templateData builds the per-subject template field set.
func (g *Generator) templateData(sessionLabel string) (TemplateData, error) {
	id, err := ident.ParseSession(sessionLabel)
	if err != nil {
		return TemplateData{}, err
	}

	assets := ""
	if g.env != nil {
		assets = g.env.AssetsDir
	}

	return TemplateData{
		Study:      g.cfg.Study,
		Site:       id.Site,
		Subject:    sessionLabel,
		SubjectDir: filepath.Join(g.cfg.Paths.Nii, sessionLabel),
		NiiDir:     g.cfg.Paths.Nii,
		DcmDir:     g.cfg.Paths.Dcm,
		QCDir:      g.cfg.Paths.QC,
		LogsDir:    g.cfg.Paths.Logs,
		Assets:     assets,
	}, nil
}

// ExpandStage expands a stage's output and argument templates for one
// subject. Exposed for the runner's structured execution path.
func (g *Generator) ExpandStage(stage config.Stage, sessionLabel string) (output string, args []string, err error) {
	data, err := g.templateData(sessionLabel)
	if err != nil {
		return "", nil, err
	}

	output, err = expand(stage.Name+"/output", stage.Output, data)
	if err != nil {
		return "", nil, err
	}

	args = make([]string, len(stage.Args))
	for i, arg := range stage.Args {
		expanded, err := expand(fmt.Sprintf("%s/args[%d]", stage.Name, i), arg, data)
		if err != nil {
			return "", nil, err
		}
		args[i] = expanded
	}

	return output, args, nil
}

// commandLine renders the stage invocation. Stages with a container image
// are emitted as docker run commands with the nii root bind-mounted at the
// same path, so templated paths resolve identically inside the container.
func commandLine(stage config.Stage, args []string, data TemplateData) string {
	words := make([]string, 0, len(args)+8)

	if stage.Image != "" {
		words = append(words, "docker", "run", "--rm",
			"-v", fmt.Sprintf("%s:%s", data.NiiDir, data.NiiDir),
			stage.Image)
	}

	words = append(words, stage.Tool)
	for _, arg := range args {
		words = append(words, shellWord(arg))
	}

	return strings.Join(words, " ")
}

// expand renders a single template string with missing-field errors enabled.
func expand(name, tmpl string, data TemplateData) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("bad template in %s: %w", name, err)
	}

	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", name, err)
	}

	return b.String(), nil
}

// shellWord quotes a word for the generated script when it contains
// whitespace or shell metacharacters. Inside double quotes, backslash,
// dollar, backtick and the quote itself must be escaped or bash still
// interprets them.
func shellWord(s string) string {
	if s == "" {
		return `""`
	}
	if !strings.ContainsAny(s, " \t\n\"'$&|;<>()*?[]`\\") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "`", "\\`")
	return `"` + r.Replace(s) + `"`
}

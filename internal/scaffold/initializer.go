// Package scaffold creates the starting layout for a new study:
// a study.yml with a worked example stage list and the directory roots it
// refers to.
package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*
var templatesFS embed.FS

// studyDirs are the directory roots created relative to the workspace.
var studyDirs = []string{
	filepath.Join("data", "nii"),
	filepath.Join("data", "dcm"),
	"qc",
	"logs",
	"pipelines",
}

// Initialize creates the study skeleton in the current directory.
// If force is true, an existing study.yml is replaced.
func Initialize(force bool) error {
	if !force {
		if _, err := os.Stat("study.yml"); err == nil {
			return fmt.Errorf("study.yml already exists (use --force to replace it)")
		}
	}

	content, err := templatesFS.ReadFile("templates/study.yml.tmpl")
	if err != nil {
		return fmt.Errorf("failed to read study.yml template: %w", err)
	}

	for _, dir := range studyDirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile("study.yml", content, 0644); err != nil {
		return fmt.Errorf("failed to write study.yml: %w", err)
	}

	// The template must stay valid YAML; catch drift immediately.
	var parsed interface{}
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		return fmt.Errorf("created study.yml is not valid YAML: %w", err)
	}

	return nil
}

// PrintSuccess prints the post-init summary and next steps.
func PrintSuccess() {
	fmt.Println("\n✅ Initialized study workspace")
	fmt.Println("\nCreated:")
	fmt.Println("  ✓ study.yml")
	fmt.Println("  ✓ data/nii/  data/dcm/  qc/  logs/  pipelines/")
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit study.yml: set your study code, sites, and stages")
	fmt.Println("  2. Place session directories under data/nii/")
	fmt.Println("  3. Run 'sulcus plan' to generate per-subject scripts")
}

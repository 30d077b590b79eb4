package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StudyConfig represents the top-level study.yml configuration.
// One study.yml describes one study: where its data lives, which pipeline
// stages its subjects go through, and where runs are recorded.
type StudyConfig struct {
	Version string        `yaml:"version"`
	Study   string        `yaml:"study"`            // Study code, e.g. SPINS
	Sites   []string      `yaml:"sites"`            // Acquisition site codes, e.g. [CMH, MRC]
	Paths   PathsConfig   `yaml:"paths"`            // Directory roots, relative paths resolved against the config file
	Queue   QueueConfig   `yaml:"queue"`            // Queue file settings
	Ledger  *LedgerConfig `yaml:"ledger,omitempty"` // Run ledger (Redis) settings
	Stages  []Stage       `yaml:"stages"`           // Ordered pipeline stages
}

// PathsConfig specifies the directory roots for a study.
type PathsConfig struct {
	Nii       string `yaml:"nii"`       // NIFTI session directories
	Dcm       string `yaml:"dcm"`       // Raw DICOM downloads
	QC        string `yaml:"qc"`        // QC tool outputs (per-subject metric CSVs)
	Logs      string `yaml:"logs"`      // Run logs
	Pipelines string `yaml:"pipelines"` // Generated per-subject scripts
}

// QueueConfig specifies where generated scripts are queued for batch execution.
type QueueConfig struct {
	File string `yaml:"file"` // One script path per line, append-only
}

// LedgerConfig specifies the Redis-backed run ledger.
type LedgerConfig struct {
	Addr string `yaml:"addr"` // host:port of the Redis server
}

// Stage represents a single pipeline step: one external tool invocation.
// Args and Output are text/template strings expanded per subject (see the
// pipeline package for the available fields).
type Stage struct {
	Name   string   `yaml:"name"`            // Short stage name, e.g. resample
	Tool   string   `yaml:"tool"`            // External binary, e.g. 3dresample, fslroi, recon-all
	Args   []string `yaml:"args"`            // Argument templates
	Output string   `yaml:"output"`          // Expected output path template; existing output skips the stage
	Image  string   `yaml:"image,omitempty"` // Optional container image to run the tool in
}

// Validate performs strict validation on the configuration.
func (c *StudyConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Study == "" {
		return fmt.Errorf("study code is required")
	}

	if len(c.Sites) == 0 {
		return fmt.Errorf("at least one site is required")
	}

	if c.Paths.Nii == "" {
		return fmt.Errorf("paths.nii is required")
	}

	if c.Paths.Pipelines == "" {
		return fmt.Errorf("paths.pipelines is required")
	}

	if c.Queue.File == "" {
		return fmt.Errorf("queue.file is required")
	}

	if len(c.Stages) == 0 {
		return fmt.Errorf("no stages defined")
	}

	seen := make(map[string]bool, len(c.Stages))
	for i, stage := range c.Stages {
		if err := stage.Validate(); err != nil {
			return fmt.Errorf("stage %d: %w", i, err)
		}
		if seen[stage.Name] {
			return fmt.Errorf("duplicate stage name '%s': stage names must be unique", stage.Name)
		}
		seen[stage.Name] = true
	}

	return nil
}

// Validate performs validation on a single stage.
func (s *Stage) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Tool == "" {
		return fmt.Errorf("stage '%s': tool is required", s.Name)
	}

	if s.Output == "" {
		return fmt.Errorf("stage '%s': output is required", s.Name)
	}

	return nil
}

// Load reads and validates study.yml from the specified path.
// Relative directory roots are resolved against the config file's directory
// so a study checkout works from anywhere.
func Load(path string) (*StudyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config StudyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}
	config.resolvePaths(base)

	return &config, nil
}

// resolvePaths makes every relative path root absolute, anchored at base.
func (c *StudyConfig) resolvePaths(base string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	c.Paths.Nii = resolve(c.Paths.Nii)
	c.Paths.Dcm = resolve(c.Paths.Dcm)
	c.Paths.QC = resolve(c.Paths.QC)
	c.Paths.Logs = resolve(c.Paths.Logs)
	c.Paths.Pipelines = resolve(c.Paths.Pipelines)
	c.Queue.File = resolve(c.Queue.File)
}

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Environment holds the process-level settings read from environment
// variables. These configure path and credential lookup only; no further
// parsing happens here.
type Environment struct {
	ConfigPath  string `env:"DM_CONFIG"`     // Path to the system-wide config file
	System      string `env:"DM_SYSTEM"`     // Name of the system this process runs on
	XNATUser    string `env:"XNAT_USER"`     // XNAT username
	XNATPass    string `env:"XNAT_PASS"`     // XNAT password
	RedcapToken string `env:"REDCAP_TOKEN"`  // REDCap API token
	AssetsDir   string `env:"DATMAN_ASSETS"` // Directory of shared reference assets
}

// LoadEnvironment reads the process environment into an Environment struct.
// Missing variables are left empty; commands that need a credential check for
// it at the point of use so unrelated commands still work.
func LoadEnvironment() (*Environment, error) {
	var e Environment
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &e, nil
}

// RequireXNAT returns an error unless both XNAT credentials are set.
func (e *Environment) RequireXNAT() error {
	if e.XNATUser == "" || e.XNATPass == "" {
		return fmt.Errorf("XNAT_USER and XNAT_PASS must be set")
	}
	return nil
}

// RequireRedcap returns an error unless the REDCap token is set.
func (e *Environment) RequireRedcap() error {
	if e.RedcapToken == "" {
		return fmt.Errorf("REDCAP_TOKEN must be set")
	}
	return nil
}

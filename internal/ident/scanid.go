// Package ident implements the canonical scan naming convention used across
// the archive:
//
//	{study}_{site}_{subject}_{session}_{series}_{description}
//
// e.g. SPINS_CMH_0001_01_02_T1-weighted.nii.gz. Every file under the nii
// root is expected to follow this form; everything else in the toolkit keys
// off it, so parsing is strict.
package ident

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Recognized imaging file suffixes, stripped before parsing.
var suffixes = []string{".nii.gz", ".nii", ".json", ".bvec", ".bval", ".csv"}

var (
	fieldPattern   = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	numericPattern = regexp.MustCompile(`^[0-9]+$`)
)

// ScanID is the parsed form of a canonical scan name.
// Study, site, subject, session, and series identify the acquisition;
// Description is the free-form tail (may itself contain underscores).
type ScanID struct {
	Study       string
	Site        string
	Subject     string
	Session     string
	Series      string
	Description string
}

// Parse splits a scan file name (or bare scan name) into its fields.
// A trailing imaging suffix (.nii.gz, .nii, .json, .bvec, .bval, .csv) is
// stripped first. The description is the greedy tail: all content after the
// fifth underscore, so descriptions containing underscores survive.
func Parse(name string) (ScanID, error) {
	base := filepath.Base(name)
	base = stripSuffix(base)

	parts := strings.SplitN(base, "_", 6)
	if len(parts) < 6 {
		return ScanID{}, fmt.Errorf("malformed scan name %q: expected study_site_subject_session_series_description, got %d fields", base, len(parts))
	}

	id := ScanID{
		Study:       parts[0],
		Site:        parts[1],
		Subject:     parts[2],
		Session:     parts[3],
		Series:      parts[4],
		Description: parts[5],
	}

	if err := id.Validate(); err != nil {
		return ScanID{}, fmt.Errorf("malformed scan name %q: %w", base, err)
	}

	return id, nil
}

// ParseSession splits a session label ({study}_{site}_{subject}_{session})
// into a ScanID with empty series and description.
func ParseSession(label string) (ScanID, error) {
	parts := strings.Split(label, "_")
	if len(parts) != 4 {
		return ScanID{}, fmt.Errorf("malformed session label %q: expected study_site_subject_session, got %d fields", label, len(parts))
	}

	id := ScanID{
		Study:   parts[0],
		Site:    parts[1],
		Subject: parts[2],
		Session: parts[3],
	}

	if err := id.validateSessionFields(); err != nil {
		return ScanID{}, fmt.Errorf("malformed session label %q: %w", label, err)
	}

	return id, nil
}

// Validate checks each field of a full scan name.
// Reports the first offending field by name.
func (id ScanID) Validate() error {
	if err := id.validateSessionFields(); err != nil {
		return err
	}

	if !numericPattern.MatchString(id.Series) {
		return fmt.Errorf("series must be numeric, got %q", id.Series)
	}

	if id.Description == "" {
		return fmt.Errorf("description cannot be empty")
	}

	return nil
}

// validateSessionFields checks the four fields shared by scan names and
// session labels.
func (id ScanID) validateSessionFields() error {
	if !fieldPattern.MatchString(id.Study) {
		return fmt.Errorf("invalid study %q", id.Study)
	}
	if !fieldPattern.MatchString(id.Site) {
		return fmt.Errorf("invalid site %q", id.Site)
	}
	if !fieldPattern.MatchString(id.Subject) {
		return fmt.Errorf("invalid subject %q", id.Subject)
	}
	if !numericPattern.MatchString(id.Session) {
		return fmt.Errorf("session must be numeric, got %q", id.Session)
	}
	return nil
}

// String returns the canonical scan name without a file suffix.
func (id ScanID) String() string {
	return strings.Join([]string{id.Study, id.Site, id.Subject, id.Session, id.Series, id.Description}, "_")
}

// SessionLabel returns the session identifier portion of the name:
// {study}_{site}_{subject}_{session}. This is the directory name each
// session's files live under.
func (id ScanID) SessionLabel() string {
	return strings.Join([]string{id.Study, id.Site, id.Subject, id.Session}, "_")
}

// FileGlob returns a glob pattern matching all files for this session label,
// any series and description, with any suffix.
func FileGlob(sessionLabel string) string {
	return sessionLabel + "_*_*"
}

// stripSuffix removes a recognized imaging suffix if present.
func stripSuffix(name string) string {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return strings.TrimSuffix(name, s)
		}
	}
	return name
}

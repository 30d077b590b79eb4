// Package containers runs single pipeline stages inside Docker containers.
// Stages that name an image (containerized AFNI/FSL/FreeSurfer distributions,
// fmriprep, and the like) execute here; everything else runs as a plain
// subprocess in the runner package.
package containers

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
)

// Label keys applied to stage containers so stray containers can be traced
// back to the study and stage that launched them.
const (
	LabelProject = "sulcus.project"
	LabelStudy   = "sulcus.study"
	LabelStage   = "sulcus.stage"
	LabelSubject = "sulcus.subject"
)

// NewClient creates a Docker client and validates the daemon is accessible.
// Returns an error if the Docker daemon is not running or not accessible.
func NewClient(ctx context.Context) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf(`Docker daemon not accessible: %w

Ensure Docker is running before using containerized stages`, err)
	}

	return cli, nil
}

// BuildLabels creates the standard label set for a stage container.
func BuildLabels(study, stage, subject string) map[string]string {
	return map[string]string{
		LabelProject: "true",
		LabelStudy:   study,
		LabelStage:   stage,
		LabelSubject: subject,
	}
}

// ContainerName returns the container name for one stage run.
func ContainerName(study, stage, subject string) string {
	return fmt.Sprintf("sulcus-%s-%s-%s", study, stage, subject)
}

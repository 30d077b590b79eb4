package containers

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
)

// StageRun describes one containerized stage invocation.
type StageRun struct {
	Study   string   // Study code, used for labels and the container name
	Stage   string   // Stage name
	Subject string   // Session label
	Image   string   // Container image to run
	Command []string // Tool and arguments, passed as the container command
	DataDir string   // Host directory bind-mounted read-write at the same path
}

// Run executes one stage in a container and blocks until it exits.
// The data directory is mounted at the identical path inside the container so
// templated file arguments resolve the same way they would on the host.
// Returns the container's exit code and its combined output; the container is
// always removed afterwards.
func Run(ctx context.Context, cli *client.Client, run StageRun) (int, string, error) {
	name := ContainerName(run.Study, run.Stage, run.Subject)

	containerConfig := &container.Config{
		Image:  run.Image,
		Cmd:    run.Command,
		Labels: BuildLabels(run.Study, run.Stage, run.Subject),
	}

	hostConfig := &container.HostConfig{
		AutoRemove: false, // removed explicitly after logs are collected
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: run.DataDir,
			Target: run.DataDir,
		}},
	}

	resp, err := cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	if err != nil {
		return -1, "", fmt.Errorf("failed to create stage container: %w", err)
	}
	defer func() {
		if err := cli.ContainerRemove(context.Background(), resp.ID, types.ContainerRemoveOptions{Force: true}); err != nil {
			log.Printf("[WARN] Failed to remove stage container %s: %v", name, err)
		}
	}()

	if err := cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return -1, "", fmt.Errorf("failed to start stage container: %w", err)
	}

	statusCh, errCh := cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)

	var exitCode int
	select {
	case err := <-errCh:
		return -1, "", fmt.Errorf("failed waiting for stage container: %w", err)
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	}

	logs := containerLogs(ctx, cli, resp.ID)
	return exitCode, logs, nil
}

// containerLogs retrieves the container's combined stdout/stderr tail.
func containerLogs(ctx context.Context, cli *client.Client, containerID string) string {
	options := types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "100",
	}

	reader, err := cli.ContainerLogs(ctx, containerID, options)
	if err != nil {
		return fmt.Sprintf("(failed to retrieve logs: %v)", err)
	}
	defer reader.Close()

	logs, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Sprintf("(failed to read logs: %v)", err)
	}

	return string(logs)
}

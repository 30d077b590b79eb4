// Package runner executes queued pipeline scripts and individual stages,
// recording every run in the study's ledger. Scripts carry their own set -e
// and skip guards; the runner's job is process control (timeouts, bounded
// output capture, exit codes) and bookkeeping.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sulcuslab/sulcus/internal/config"
	"github.com/sulcuslab/sulcus/internal/containers"
	"github.com/sulcuslab/sulcus/internal/pipeline"
	"github.com/sulcuslab/sulcus/internal/queue"
	"github.com/sulcuslab/sulcus/pkg/ledger"
)

const (
	// defaultScriptTimeout is the maximum time one subject's script can run.
	// Long enough for recon-all on a slow node.
	defaultScriptTimeout = 24 * time.Hour

	// maxOutputSize is the capture limit for stdout/stderr (1MB).
	maxOutputSize = 1024 * 1024

	// stderrTailLen is how much stderr the ledger keeps for diagnosis.
	stderrTailLen = 4000
)

// containerRunFunc runs a stage in a container; swapped out in tests.
type containerRunFunc func(ctx context.Context, run containers.StageRun) (int, string, error)

// Runner drives script and stage execution for one study.
// The ledger client may be nil, in which case runs are not recorded.
type Runner struct {
	led     *ledger.Client
	timeout time.Duration

	containerRun containerRunFunc
}

// New creates a Runner recording into led (may be nil for unrecorded runs).
func New(led *ledger.Client) *Runner {
	return &Runner{
		led:          led,
		timeout:      defaultScriptTimeout,
		containerRun: dockerRun,
	}
}

// SetTimeout overrides the per-script timeout.
func (r *Runner) SetTimeout(d time.Duration) {
	r.timeout = d
}

// RunScript executes one generated pipeline script with bash.
// The returned job reflects the outcome; a failing script is a failed job,
// not an error. Errors are reserved for bookkeeping problems (the ledger
// being unreachable).
func (r *Runner) RunScript(ctx context.Context, subject, scriptPath string) (*ledger.Job, error) {
	job := &ledger.Job{
		ID:         uuid.New().String(),
		Subject:    subject,
		Script:     scriptPath,
		Status:     ledger.JobStatusQueued,
		QueuedAtMs: time.Now().UnixMilli(),
	}

	if err := r.record(ctx, job, false); err != nil {
		return nil, err
	}

	job.Status = ledger.JobStatusRunning
	job.StartedAtMs = time.Now().UnixMilli()
	if err := r.record(ctx, job, true); err != nil {
		return nil, err
	}

	log.Printf("[INFO] Running script: subject=%s script=%s", subject, scriptPath)
	exitCode, stderr, runErr := r.execScript(ctx, scriptPath)

	job.FinishedAtMs = time.Now().UnixMilli()
	job.ExitCode = exitCode
	job.StderrTail = tail(stderr, stderrTailLen)

	if runErr != nil || exitCode != 0 {
		job.Status = ledger.JobStatusFailed
		if runErr != nil && job.StderrTail == "" {
			job.StderrTail = runErr.Error()
		}
		log.Printf("[ERROR] Script failed: subject=%s exit_code=%d", subject, exitCode)
	} else {
		job.Status = ledger.JobStatusComplete
		log.Printf("[INFO] Script complete: subject=%s duration=%dms", subject, job.FinishedAtMs-job.StartedAtMs)
	}

	if err := r.record(ctx, job, true); err != nil {
		return nil, err
	}

	return job, nil
}

// BatchResult summarizes one queue drain.
type BatchResult struct {
	Jobs     []*ledger.Job
	Complete int
	Failed   int
}

// RunQueue drains the queue file and executes every script in order.
// A failing script does not stop the batch; the summary reports both counts.
// The subject for each job is derived from the script file name.
// On a bookkeeping error (the ledger becoming unreachable) the current and
// remaining scripts are put back on the queue so nothing is lost; the
// scripts' own skip guards make a partial re-run harmless.
func (r *Runner) RunQueue(ctx context.Context, q *queue.File) (*BatchResult, error) {
	scripts, err := q.Drain()
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for i, script := range scripts {
		subject := strings.TrimSuffix(filepath.Base(script), ".sh")

		job, err := r.RunScript(ctx, subject, script)
		if err != nil {
			if qerr := requeue(q, scripts[i:]); qerr != nil {
				log.Printf("[ERROR] Failed to re-queue %d script(s) after ledger error: %v", len(scripts[i:]), qerr)
			}
			return result, err
		}

		result.Jobs = append(result.Jobs, job)
		if job.Status == ledger.JobStatusComplete {
			result.Complete++
		} else {
			result.Failed++
		}
	}

	return result, nil
}

// requeue puts scripts back on the queue file after an aborted batch.
func requeue(q *queue.File, scripts []string) error {
	for _, script := range scripts {
		if _, err := q.Append(script); err != nil {
			return err
		}
	}
	return nil
}

// StageResult records the outcome of one stage in a direct subject run.
type StageResult struct {
	Name     string
	Skipped  bool
	ExitCode int
	Output   string // expanded output path
}

// SubjectResult summarizes a direct (scriptless) run of one subject.
type SubjectResult struct {
	Subject string
	Stages  []StageResult
	Job     *ledger.Job
}

// RunSubject executes a subject's stages directly, without a generated
// script. Each stage is skipped when its expected output already exists;
// otherwise the tool runs as a subprocess, or in a container when the stage
// names an image. Execution stops at the first failing stage.
func (r *Runner) RunSubject(ctx context.Context, cfg *config.StudyConfig, gen *pipeline.Generator, subject string) (*SubjectResult, error) {
	job := &ledger.Job{
		ID:         uuid.New().String(),
		Subject:    subject,
		Script:     "direct:" + subject,
		Status:     ledger.JobStatusRunning,
		QueuedAtMs: time.Now().UnixMilli(),
	}
	job.StartedAtMs = job.QueuedAtMs
	if err := r.record(ctx, job, false); err != nil {
		return nil, err
	}

	result := &SubjectResult{Subject: subject, Job: job}
	ran := false
	failed := false

	for _, stage := range cfg.Stages {
		output, args, err := gen.ExpandStage(stage, subject)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", stage.Name, err)
		}

		// Existence check is the only gate: a present output means the
		// stage already completed on an earlier run.
		if _, statErr := os.Stat(output); statErr == nil {
			log.Printf("[INFO] Skipping stage: subject=%s stage=%s (output exists)", subject, stage.Name)
			result.Stages = append(result.Stages, StageResult{Name: stage.Name, Skipped: true, Output: output})
			continue
		}

		ran = true
		log.Printf("[INFO] Running stage: subject=%s stage=%s tool=%s", subject, stage.Name, stage.Tool)

		exitCode, stderr, err := r.execStage(ctx, cfg, stage, subject, args)
		result.Stages = append(result.Stages, StageResult{Name: stage.Name, ExitCode: exitCode, Output: output})

		if err != nil || exitCode != 0 {
			failed = true
			job.ExitCode = exitCode
			job.StderrTail = tail(stderr, stderrTailLen)
			if err != nil && job.StderrTail == "" {
				job.StderrTail = err.Error()
			}
			log.Printf("[ERROR] Stage failed: subject=%s stage=%s exit_code=%d", subject, stage.Name, exitCode)
			break
		}
	}

	job.FinishedAtMs = time.Now().UnixMilli()
	switch {
	case failed:
		job.Status = ledger.JobStatusFailed
	case !ran:
		job.Status = ledger.JobStatusSkipped
	default:
		job.Status = ledger.JobStatusComplete
	}

	if err := r.record(ctx, job, true); err != nil {
		return nil, err
	}

	return result, nil
}

// execStage runs a single stage, in a container when an image is configured.
func (r *Runner) execStage(ctx context.Context, cfg *config.StudyConfig, stage config.Stage, subject string, args []string) (int, string, error) {
	if stage.Image != "" {
		return r.containerRun(ctx, containers.StageRun{
			Study:   cfg.Study,
			Stage:   stage.Name,
			Subject: subject,
			Image:   stage.Image,
			Command: append([]string{stage.Tool}, args...),
			DataDir: cfg.Paths.Nii,
		})
	}

	return r.execCommand(ctx, stage.Tool, args)
}

// execScript runs a generated script with bash under the configured timeout.
// Returns (exitCode, stderr, error); -1 means the process never started.
func (r *Runner) execScript(ctx context.Context, scriptPath string) (int, string, error) {
	if _, err := os.Stat(scriptPath); err != nil {
		return -1, "", fmt.Errorf("script not found: %s", scriptPath)
	}

	return r.execCommand(ctx, "bash", []string{scriptPath})
}

// execCommand runs one subprocess with bounded output capture.
func (r *Runner) execCommand(ctx context.Context, name string, args []string) (int, string, error) {
	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, name, args...)

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	cmd.Stdout = &limitedWriter{w: stdoutBuf, limit: maxOutputSize}
	cmd.Stderr = &limitedWriter{w: stderrBuf, limit: maxOutputSize}

	err := cmd.Run()
	stderr := stderrBuf.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), stderr, nil
		}
		if execCtx.Err() == context.DeadlineExceeded {
			return -1, stderr, fmt.Errorf("execution timeout (%s)", r.timeout)
		}
		return -1, stderr, err
	}

	return 0, stderr, nil
}

// record writes the job to the ledger when one is configured.
func (r *Runner) record(ctx context.Context, job *ledger.Job, update bool) error {
	if r.led == nil {
		return nil
	}

	var err error
	if update {
		err = r.led.UpdateJob(ctx, job)
	} else {
		err = r.led.CreateJob(ctx, job)
	}
	if err != nil {
		return fmt.Errorf("failed to record job in ledger: %w", err)
	}

	return nil
}

// dockerRun is the production containerRunFunc.
func dockerRun(ctx context.Context, run containers.StageRun) (int, string, error) {
	cli, err := containers.NewClient(ctx)
	if err != nil {
		return -1, "", err
	}
	defer cli.Close()

	return containers.Run(ctx, cli, run)
}

// limitedWriter wraps a writer and enforces a size limit.
// Once the limit is reached, further writes are discarded.
type limitedWriter struct {
	w       io.Writer
	limit   int
	written int
}

func (lw *limitedWriter) Write(p []byte) (n int, err error) {
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return len(p), nil
	}

	toWrite := p
	if len(p) > remaining {
		toWrite = p[:remaining]
	}

	n, err = lw.w.Write(toWrite)
	lw.written += n
	return len(p), err // report full length to keep the subprocess writing
}

// tail returns the last max bytes of s.
func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}

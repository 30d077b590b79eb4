// Package queue manages the batch queue file: a plain text file holding one
// generated script path per line, appended as scripts are planned and drained
// when a batch run starts. The flat file keeps the queue inspectable and
// editable with ordinary shell tools.
package queue

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File is a handle to a queue file. The zero value is not usable; create one
// with New.
type File struct {
	path string
}

// New returns a handle to the queue file at path. The file itself is created
// lazily on first append.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the queue file's path.
func (f *File) Path() string {
	return f.path
}

// Append adds a script path to the queue. Paths already present are not
// added again, so re-planning a study is idempotent.
func (f *File) Append(scriptPath string) (added bool, err error) {
	existing, err := f.List()
	if err != nil {
		return false, err
	}

	for _, p := range existing {
		if p == scriptPath {
			return false, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create queue directory: %w", err)
	}

	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return false, fmt.Errorf("failed to open queue file: %w", err)
	}
	defer file.Close()

	if _, err := fmt.Fprintln(file, scriptPath); err != nil {
		return false, fmt.Errorf("failed to append to queue file: %w", err)
	}

	return true, nil
}

// List returns the queued script paths in queue order.
// A missing queue file is an empty queue, not an error.
func (f *File) List() ([]string, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open queue file: %w", err)
	}
	defer file.Close()

	var paths []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}

	return paths, nil
}

// Drain returns all queued script paths and truncates the queue.
// The truncate happens only after a successful read.
func (f *File) Drain() ([]string, error) {
	paths, err := f.List()
	if err != nil {
		return nil, err
	}

	if len(paths) == 0 {
		return nil, nil
	}

	if err := os.WriteFile(f.path, nil, 0644); err != nil {
		return nil, fmt.Errorf("failed to truncate queue file: %w", err)
	}

	return paths, nil
}

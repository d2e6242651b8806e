// Package runctx owns the per-process run directory and the global step
// counter that orders every artifact saved during a run.
//
// A run directory looks like:
//
//	<root>/<YYYYMMDD_HHMMSS>/
//	  config/    copied configuration files (first creation only)
//	  dataops/   mlops/   vizops/
package runctx

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimestampLayout formats the run timestamp (YYYYMMDD_HHMMSS).
const TimestampLayout = "20060102_150405"

// Component subdirectories created with every run.
const (
	DataOpsDir = "dataops"
	MLOpsDir   = "mlops"
	VizOpsDir  = "vizops"
	ConfigDir  = "config"
)

// ComponentDirs lists the producer subdirectories pre-created per run.
var ComponentDirs = []string{DataOpsDir, MLOpsDir, VizOpsDir}

const dirPerm = 0o750

// RunContext is the state of the current run. The timestamp and directory
// are fixed at creation; the step counter only moves forward.
type RunContext struct {
	RootDir   string
	Dir       string
	Timestamp string
	StartedAt time.Time

	mu   sync.Mutex
	step int
}

// Step returns the number of artifacts saved so far.
func (rc *RunContext) Step() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.step
}

// NextStep increments the global step counter and returns the new value.
// Every filename is derived from exactly one NextStep result, so two saves
// can never share a step.
func (rc *RunContext) NextStep() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.step++
	return rc.step
}

// Subdir returns <run dir>/<name>, creating it if missing.
// name must be a local path (no absolute paths, no "..").
func (rc *RunContext) Subdir(name string) (string, error) {
	if name == "" {
		return rc.Dir, nil
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("subdirectory %q escapes the run directory", name)
	}
	dir := filepath.Join(rc.Dir, name)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", err
	}
	return dir, nil
}

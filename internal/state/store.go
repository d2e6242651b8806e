// Package state keeps a SQLite index of runs and the artifacts saved into
// them. The index is advisory: the run directory on disk is the source of
// truth and nothing in the save path depends on the index being reachable.
package state

import "time"

// Run is an indexed run directory.
type Run struct {
	ID            string    `json:"id"`
	Dir           string    `json:"dir"`
	Timestamp     string    `json:"timestamp"`
	StartedAt     time.Time `json:"started_at"`
	ArtifactCount int       `json:"artifact_count"`
}

// Artifact is an indexed artifact file.
type Artifact struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Step      int       `json:"step"`
	Kind      string    `json:"kind"`
	Prefix    string    `json:"prefix"`
	Extension string    `json:"extension"`
	Hash      string    `json:"hash"`
	Subdir    string    `json:"subdir"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// ArtifactFilter narrows ListArtifacts. Zero-valued fields match everything.
type ArtifactFilter struct {
	RunID  string
	Kind   string
	Hash   string
	Prefix string
	Limit  int
}

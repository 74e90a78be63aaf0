// Package spec defines the execution specification and resource limits.
package spec

// ResourceLimit describes limits applied to one process.
type ResourceLimit struct {
	// WallTimeMs is enforced by killing the process group.
	WallTimeMs int64
	// MemoryMB is carried for reporting only.
	MemoryMB int64
}

// RunSpec is the unified execution specification for one process.
type RunSpec struct {
	SubmissionID string
	TestID       string
	WorkDir      string
	Cmd          []string
	Env          []string
	Stdin        string
	Limits       ResourceLimit
}

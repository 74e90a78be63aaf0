// Package model holds the judge domain records shared by the sandbox, storage and API layers.
package model

import "time"

// Problem is the judge-facing view of a problem statement.
type Problem struct {
	ID                int64  `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	InputDescription  string `json:"input_description,omitempty"`
	OutputDescription string `json:"output_description,omitempty"`
	SampleInput       string `json:"sample_input,omitempty"`
	SampleOutput      string `json:"sample_output,omitempty"`
	// TimeLimit is the wall-clock budget of the run phase, in whole seconds.
	TimeLimit int `json:"time_limit"`
	// MemoryLimit is stored in MB and not enforced.
	MemoryLimit int `json:"memory_limit"`
}

// RunTimeout returns the run phase budget.
func (p Problem) RunTimeout() time.Duration {
	return time.Duration(p.TimeLimit) * time.Second
}

// TestCase is one hidden input/expected-output pair.
type TestCase struct {
	ID         int64  `json:"id"`
	ProblemID  int64  `json:"problem_id"`
	Input      string `json:"input"`
	Output     string `json:"output"`
	CheckOrder int    `json:"check_order"`
}

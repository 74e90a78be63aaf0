package engine

import (
	"context"

	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
)

// Engine executes a RunSpec and reports how the process ended.
// A process that cannot be spawned is returned as a ProcessStartFailed error.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
}

// Package verdict maps a driver outcome to the verdict a contestant sees.
package verdict

import (
	"strings"
	"unicode"

	"codejudge/internal/judge/sandbox/result"
)

// Input is everything the classifier looks at.
type Input struct {
	CompileRequired bool
	CompileFailed   bool
	CompileTimedOut bool
	Ran             bool
	TimedOut        bool
	ExitCode        int
	Output          string
	// OutputTruncated marks Output as a prefix of a longer stdout.
	OutputTruncated bool
	Expected        string
}

// FromOutcome builds a classifier input from a driver outcome and the expected answer.
func FromOutcome(outcome result.Outcome, expected string) Input {
	return Input{
		CompileRequired: outcome.CompileRequired,
		CompileFailed:   outcome.CompileRequired && !outcome.Compile.OK,
		CompileTimedOut: outcome.Compile.TimedOut,
		Ran:             outcome.Ran,
		TimedOut:        outcome.Run.TimedOut,
		ExitCode:        outcome.Run.ExitCode,
		Output:          outcome.Run.Stdout,
		OutputTruncated: outcome.Run.StdoutTruncated,
		Expected:        expected,
	}
}

// Classify applies the verdict precedence TLE > CE > RE > AC > WA.
// A truncated output is never accepted.
func Classify(in Input) result.Verdict {
	switch {
	case in.CompileTimedOut || in.TimedOut:
		return result.VerdictTLE
	case in.CompileRequired && in.CompileFailed:
		return result.VerdictCE
	case !in.Ran || in.ExitCode != 0:
		return result.VerdictRE
	case !in.OutputTruncated && Trim(in.Output) == Trim(in.Expected):
		return result.VerdictAC
	default:
		return result.VerdictWA
	}
}

// Trim removes trailing whitespace. Leading and interior bytes are kept as is.
func Trim(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

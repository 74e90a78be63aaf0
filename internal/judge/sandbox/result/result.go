// Package result defines sandbox execution results and verdicts.
package result

import "time"

// Verdict represents the graded outcome of one test case.
type Verdict string

const (
	VerdictAC  Verdict = "Accepted"
	VerdictWA  Verdict = "Wrong Answer"
	VerdictRE  Verdict = "Runtime Error"
	VerdictTLE Verdict = "Time Limit Exceeded"
	VerdictCE  Verdict = "Compilation Error"
)

var shortNames = map[Verdict]string{
	VerdictAC:  "AC",
	VerdictWA:  "WA",
	VerdictRE:  "RE",
	VerdictTLE: "TLE",
	VerdictCE:  "CE",
}

// Short returns the two or three letter abbreviation used in metrics and logs.
func (v Verdict) Short() string {
	if s, ok := shortNames[v]; ok {
		return s
	}
	return "UNKNOWN"
}

// Valid reports whether v is one of the five known verdicts.
func (v Verdict) Valid() bool {
	_, ok := shortNames[v]
	return ok
}

// ParseVerdict accepts either the display name or the abbreviation.
func ParseVerdict(raw string) (Verdict, bool) {
	v := Verdict(raw)
	if v.Valid() {
		return v, true
	}
	for verdict, short := range shortNames {
		if short == raw {
			return verdict, true
		}
	}
	return "", false
}

// RunResult captures raw process execution data.
// StdoutTruncated means Stdout holds only a prefix of what the process wrote.
type RunResult struct {
	ExitCode        int
	TimedOut        bool
	TimeMs          int64
	Stdout          string
	Stderr          string
	StdoutTruncated bool
	StderrTruncated bool
}

// CompileResult contains compilation outcomes.
type CompileResult struct {
	OK       bool
	ExitCode int
	TimedOut bool
	TimeMs   int64
	Error    string
}

// Outcome is what a language driver reports for one test case.
// Run.Stdout has already had its trailing whitespace removed.
type Outcome struct {
	CompileRequired bool
	Compile         CompileResult
	Ran             bool
	Run             RunResult
}

// ExecutionSeconds returns the run phase duration, or 0 when the run never started.
func (o Outcome) ExecutionSeconds() float64 {
	if !o.Ran {
		return 0
	}
	return (time.Duration(o.Run.TimeMs) * time.Millisecond).Seconds()
}

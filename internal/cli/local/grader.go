// Package local grades a source file against a directory of test cases without any server.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/config"
	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/runner"
	"codejudge/internal/judge/sandbox/workdir"
	appErr "codejudge/pkg/errors"
)

// Test cases are read from pairs named <n>.in and <n>.out.
const (
	inputExt  = ".in"
	outputExt = ".out"
)

// LoadTestCases reads every <n>.in/<n>.out pair in dir, ordered by n.
func LoadTestCases(dir string, problemID int64) ([]model.TestCase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read test directory failed: %w", err)
	}
	var ids []int64
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, inputExt) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(name, inputExt), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, appErr.Newf(appErr.TestCaseNotFound, "no test cases in %s", dir)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tests := make([]model.TestCase, 0, len(ids))
	for i, id := range ids {
		base := filepath.Join(dir, strconv.FormatInt(id, 10))
		input, err := os.ReadFile(base + inputExt)
		if err != nil {
			return nil, fmt.Errorf("read input %d failed: %w", id, err)
		}
		output, err := os.ReadFile(base + outputExt)
		if err != nil {
			return nil, fmt.Errorf("read expected output %d failed: %w", id, err)
		}
		tests = append(tests, model.TestCase{
			ID:         id,
			ProblemID:  problemID,
			Input:      string(input),
			Output:     string(output),
			CheckOrder: i + 1,
		})
	}
	return tests, nil
}

type staticTestCases []model.TestCase

func (s staticTestCases) ListTestCases(ctx context.Context, problemID int64) ([]model.TestCase, error) {
	return s, nil
}

// Options configure one local grading run.
type Options struct {
	Language       string
	SourcePath     string
	TestDir        string
	TimeLimit      int
	WorkRoot       string
	CompileTimeout time.Duration
	Languages      []profile.LanguageSpec
}

// Grade compiles and runs the source against every test case in opts.TestDir.
func Grade(ctx context.Context, opts Options) ([]model.Result, error) {
	code, err := os.ReadFile(opts.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("read source failed: %w", err)
	}
	tests, err := LoadTestCases(opts.TestDir, 1)
	if err != nil {
		return nil, err
	}
	langs, err := config.NewLocalRepository(opts.Languages)
	if err != nil {
		return nil, err
	}

	root := opts.WorkRoot
	if root == "" {
		root, err = os.MkdirTemp("", "codejudge-")
		if err != nil {
			return nil, fmt.Errorf("create work root failed: %w", err)
		}
		defer func() { _ = os.RemoveAll(root) }()
	}
	sandboxes, err := workdir.NewManager(root)
	if err != nil {
		return nil, err
	}

	worker := sandbox.NewWorker(
		runner.NewRunner(engine.NewEngine(engine.Config{})),
		langs,
		sandboxes,
		staticTestCases(tests),
		sandbox.WithCompileTimeout(opts.CompileTimeout),
	)
	problem := model.Problem{ID: 1, Title: filepath.Base(opts.TestDir), TimeLimit: opts.TimeLimit}
	submission := model.Submission{ID: 1, ProblemID: 1, Language: opts.Language, Code: string(code), CreatedAt: time.Now()}
	return worker.RunAll(ctx, problem, submission)
}

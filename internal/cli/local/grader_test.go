package local

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox/result"
	appErr "codejudge/pkg/errors"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadTestCasesOrdersNumerically(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "10.in", "ten")
	writeFile(t, dir, "10.out", "TEN")
	writeFile(t, dir, "2.in", "two")
	writeFile(t, dir, "2.out", "TWO")
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "x.in", "ignored")

	tests, err := LoadTestCases(dir, 7)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tests) != 2 || tests[0].ID != 2 || tests[1].ID != 10 {
		t.Fatalf("unexpected order %+v", tests)
	}
	if tests[1].Output != "TEN" || tests[1].ProblemID != 7 || tests[1].CheckOrder != 2 {
		t.Fatalf("unexpected test %+v", tests[1])
	}
}

func TestLoadTestCasesErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadTestCases(dir, 1); !appErr.Is(err, appErr.TestCaseNotFound) {
		t.Fatalf("expected TestCaseNotFound, got %v", err)
	}
	writeFile(t, dir, "1.in", "only input")
	if _, err := LoadTestCases(dir, 1); err == nil {
		t.Fatal("expected error for missing .out")
	}
	if _, err := LoadTestCases(filepath.Join(dir, "missing"), 1); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestGradePython(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	dir := t.TempDir()
	writeFile(t, dir, "1.in", "3 4\n")
	writeFile(t, dir, "1.out", "7\n")
	writeFile(t, dir, "2.in", "1 1\n")
	writeFile(t, dir, "2.out", "3\n")
	src := filepath.Join(t.TempDir(), "sum.py")
	writeFile(t, filepath.Dir(src), "sum.py", "a, b = map(int, input().split())\nprint(a + b)   \n")

	results, err := Grade(context.Background(), Options{
		Language:   "python",
		SourcePath: src,
		TestDir:    dir,
		TimeLimit:  2,
		WorkRoot:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if len(results) != 2 || results[0].Verdict != result.VerdictAC || results[1].Verdict != result.VerdictWA {
		t.Fatalf("unexpected results %+v", results)
	}
	if v := model.Summarize(results); v != result.VerdictWA {
		t.Fatalf("unexpected summary %q", v)
	}
}

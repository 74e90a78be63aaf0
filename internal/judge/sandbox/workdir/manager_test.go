package workdir

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	appErr "codejudge/pkg/errors"
)

type countingTracker struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (c *countingTracker) SandboxAcquired() {
	c.mu.Lock()
	c.acquired++
	c.mu.Unlock()
}

func (c *countingTracker) SandboxReleased() {
	c.mu.Lock()
	c.released++
	c.mu.Unlock()
}

func TestAcquireCreatesEmptyUniqueDirs(t *testing.T) {
	mgr, err := NewManager(filepath.Join(t.TempDir(), "work"))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	const n = 32
	var wg sync.WaitGroup
	dirs := make([]*Dir, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dirs[i], errs[i] = mgr.Acquire(context.Background())
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("acquire %d: %v", i, errs[i])
		}
		if _, dup := seen[dirs[i].Path]; dup {
			t.Fatalf("duplicate sandbox path %s", dirs[i].Path)
		}
		seen[dirs[i].Path] = struct{}{}
		entries, err := os.ReadDir(dirs[i].Path)
		if err != nil {
			t.Fatalf("read sandbox: %v", err)
		}
		if len(entries) != 0 {
			t.Fatalf("expected empty sandbox, got %d entries", len(entries))
		}
		if filepath.Dir(dirs[i].Path) != mgr.Root() {
			t.Fatalf("sandbox %s is not under root %s", dirs[i].Path, mgr.Root())
		}
	}
	for _, dir := range dirs {
		if err := mgr.Release(dir); err != nil {
			t.Fatalf("release: %v", err)
		}
	}
}

func TestAcquireRetriesOnNameClash(t *testing.T) {
	ids := []string{"taken", "taken", "fresh"}
	next := 0
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "taken"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	mgr, err := NewManager(root, WithIDGenerator(func() string {
		id := ids[next]
		next++
		return id
	}))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	dir, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if dir.ID != "fresh" {
		t.Fatalf("expected fresh id, got %s", dir.ID)
	}
}

func TestAcquireFailsWhenRootUnwritable(t *testing.T) {
	root := t.TempDir()
	mgr, err := NewManager(root, WithIDGenerator(func() string { return "x" }))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if err := os.RemoveAll(root); err != nil {
		t.Fatalf("remove root: %v", err)
	}

	_, err = mgr.Acquire(context.Background())
	if !appErr.Is(err, appErr.SandboxUnavailable) {
		t.Fatalf("expected SandboxUnavailable, got %v", err)
	}
}

func TestReleaseEmptyDir(t *testing.T) {
	tracker := &countingTracker{}
	mgr, err := NewManager(t.TempDir(), WithTracker(tracker))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	dir, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := mgr.Release(dir); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(dir.Path); !os.IsNotExist(err) {
		t.Fatalf("expected sandbox removed, stat err=%v", err)
	}
	if err := mgr.Release(dir); err != nil {
		t.Fatalf("second release should be a no-op: %v", err)
	}
	if tracker.acquired != 1 || tracker.released != 1 {
		t.Fatalf("unexpected tracker counts acquired=%d released=%d", tracker.acquired, tracker.released)
	}
}

func TestReleaseReportsLeak(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	dir, err := mgr.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir.Path, "a.exe"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	err = mgr.Release(dir)
	if !appErr.Is(err, appErr.SandboxLeaked) {
		t.Fatalf("expected SandboxLeaked, got %v", err)
	}
	details := appErr.GetError(err).Details
	leftover, _ := details["leftover"].([]string)
	if len(leftover) != 1 || leftover[0] != "a.exe" {
		t.Fatalf("unexpected leftover detail %v", leftover)
	}
	if details["sandbox"] != dir.ID {
		t.Fatalf("unexpected sandbox detail %v", details["sandbox"])
	}
	if _, err := os.Stat(dir.Path); !os.IsNotExist(err) {
		t.Fatalf("leaked sandbox should still be removed, stat err=%v", err)
	}
}

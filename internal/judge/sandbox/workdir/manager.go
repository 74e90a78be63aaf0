// Package workdir hands out private scratch directories for one grading attempt each.
package workdir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	appErr "codejudge/pkg/errors"
)

const maxNameAttempts = 3

// Dir is an acquired sandbox directory.
type Dir struct {
	ID   string
	Path string
}

// Tracker is notified when sandboxes are acquired and released.
type Tracker interface {
	SandboxAcquired()
	SandboxReleased()
}

type noopTracker struct{}

func (noopTracker) SandboxAcquired() {}
func (noopTracker) SandboxReleased() {}

// Manager creates and removes sandbox directories under one root.
type Manager struct {
	root    string
	newID   func() string
	tracker Tracker
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTracker reports acquire/release events to t.
func WithTracker(t Tracker) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracker = t
		}
	}
}

// WithIDGenerator replaces the random name source.
func WithIDGenerator(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// NewManager creates the root directory if needed.
func NewManager(root string, opts ...Option) (*Manager, error) {
	if root == "" {
		return nil, appErr.ValidationError("work_root", "required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxUnavailable, "resolve work root failed")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxUnavailable, "create work root failed")
	}
	m := &Manager{
		root:    abs,
		newID:   uuid.NewString,
		tracker: noopTracker{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Root returns the absolute work root.
func (m *Manager) Root() string {
	return m.root
}

// Acquire creates a fresh empty directory with a random name.
func (m *Manager) Acquire(ctx context.Context) (*Dir, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErr.Wrapf(err, appErr.Timeout, "acquire sandbox cancelled")
	}
	var lastErr error
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		id := m.newID()
		path := filepath.Join(m.root, id)
		err := os.Mkdir(path, 0o755)
		if err == nil {
			m.tracker.SandboxAcquired()
			return &Dir{ID: id, Path: path}, nil
		}
		lastErr = err
		if !errors.Is(err, os.ErrExist) {
			break
		}
	}
	return nil, appErr.Wrapf(lastErr, appErr.SandboxUnavailable, "create sandbox failed")
}

// Release removes an empty sandbox directory.
// A directory that still holds files is removed anyway and reported as SandboxLeaked.
func (m *Manager) Release(dir *Dir) error {
	if dir == nil || dir.Path == "" {
		return nil
	}
	err := os.Remove(dir.Path)
	if err == nil {
		m.tracker.SandboxReleased()
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	entries, readErr := os.ReadDir(dir.Path)
	if readErr != nil || len(entries) == 0 {
		return appErr.Wrapf(err, appErr.SandboxUnavailable, "remove sandbox failed").
			WithDetail("sandbox", dir.ID)
	}

	leftover := make([]string, 0, len(entries))
	for _, entry := range entries {
		leftover = append(leftover, entry.Name())
	}
	sort.Strings(leftover)
	leakErr := appErr.Newf(appErr.SandboxLeaked, "sandbox %s was not empty on release", dir.ID).
		WithDetails(map[string]any{"sandbox": dir.ID, "leftover": leftover})
	if rmErr := os.RemoveAll(dir.Path); rmErr != nil {
		return leakErr.WithDetail("remove_error", rmErr.Error())
	}
	m.tracker.SandboxReleased()
	return leakErr
}

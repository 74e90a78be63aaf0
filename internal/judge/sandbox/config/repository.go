// Package config defines interfaces for loading sandbox configuration.
package config

import (
	"context"

	"codejudge/internal/judge/sandbox/profile"
)

// LanguageSpecRepository loads language specifications.
type LanguageSpecRepository interface {
	GetLanguageSpec(ctx context.Context, id string) (profile.LanguageSpec, error)
	ListLanguageSpecs(ctx context.Context) ([]profile.LanguageSpec, error)
}

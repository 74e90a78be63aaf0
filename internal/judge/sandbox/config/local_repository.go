package config

import (
	"context"
	"fmt"
	"strings"

	"codejudge/internal/judge/sandbox/profile"
	appErr "codejudge/pkg/errors"
)

// LocalRepository serves language specs from memory.
// Lookups match either the id or the display name, ignoring case.
type LocalRepository struct {
	ordered   []profile.LanguageSpec
	languages map[string]profile.LanguageSpec
}

// NewLocalRepository creates a repository from config lists.
// An empty list falls back to DefaultLanguages.
func NewLocalRepository(languages []profile.LanguageSpec) (*LocalRepository, error) {
	if len(languages) == 0 {
		languages = DefaultLanguages()
	}
	repo := &LocalRepository{
		ordered:   make([]profile.LanguageSpec, 0, len(languages)),
		languages: make(map[string]profile.LanguageSpec, len(languages)*2),
	}
	for _, lang := range languages {
		if err := lang.Validate(); err != nil {
			return nil, err
		}
		for _, key := range []string{lang.ID, lang.Name} {
			norm := normalizeKey(key)
			if norm == "" {
				continue
			}
			if existing, ok := repo.languages[norm]; ok && existing.ID != lang.ID {
				return nil, fmt.Errorf("language key %q is used by both %s and %s", key, existing.ID, lang.ID)
			}
			repo.languages[norm] = lang
		}
		repo.ordered = append(repo.ordered, lang)
	}
	return repo, nil
}

// GetLanguageSpec returns a language spec.
func (r *LocalRepository) GetLanguageSpec(ctx context.Context, id string) (profile.LanguageSpec, error) {
	if strings.TrimSpace(id) == "" {
		return profile.LanguageSpec{}, appErr.ValidationError("language", "required")
	}
	lang, ok := r.languages[normalizeKey(id)]
	if !ok {
		return profile.LanguageSpec{}, appErr.Newf(appErr.LanguageNotSupported, "language %q is not supported", id)
	}
	return lang, nil
}

// ListLanguageSpecs returns every configured language in declaration order.
func (r *LocalRepository) ListLanguageSpecs(ctx context.Context) ([]profile.LanguageSpec, error) {
	out := make([]profile.LanguageSpec, len(r.ordered))
	copy(out, r.ordered)
	return out, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

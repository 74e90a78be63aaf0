package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"
)

const problemKeyPrefix = "judge:problem:"

// CachedProblemRepository fronts a ProblemRepository with the shared cache.
// Missing problems are cached too, for emptyTTL.
type CachedProblemRepository struct {
	source   ProblemRepository
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

func NewCachedProblemRepository(source ProblemRepository, cacheClient cache.Cache, ttl, emptyTTL time.Duration) ProblemRepository {
	if cacheClient == nil || ttl <= 0 {
		return source
	}
	return &CachedProblemRepository{source: source, cache: cacheClient, ttl: ttl, emptyTTL: emptyTTL}
}

func (r *CachedProblemRepository) Get(ctx context.Context, id int64) (model.Problem, error) {
	problem, err := cache.GetWithCached(ctx, r.cache, problemKeyPrefix+strconv.FormatInt(id, 10), r.ttl, r.emptyTTL,
		func(p model.Problem) bool { return p.ID == 0 },
		func(p model.Problem) (string, error) {
			data, err := json.Marshal(p)
			return string(data), err
		},
		func(raw string) (model.Problem, error) {
			var p model.Problem
			err := json.Unmarshal([]byte(raw), &p)
			return p, err
		},
		func(ctx context.Context) (model.Problem, error) {
			p, err := r.source.Get(ctx, id)
			if appErr.Is(err, appErr.ProblemNotFound) {
				return model.Problem{}, nil
			}
			return p, err
		},
	)
	if err != nil {
		return model.Problem{}, err
	}
	if problem.ID == 0 {
		return model.Problem{}, appErr.Newf(appErr.ProblemNotFound, "problem %d not found", id)
	}
	return problem, nil
}

package services

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/stwalsh4118/houseprice/internal/logger"
	"github.com/stwalsh4118/houseprice/internal/models"
)

// cachedOutcome is either a result or ErrNoEstimate. Other errors are
// never cached.
type cachedOutcome struct {
	result *models.PredictionResult
	err    error
}

// cachedPredictionService memoizes Estimate for repeated inputs. The model
// is immutable for the life of the process, so entries never go stale.
type cachedPredictionService struct {
	PredictionService
	cache *lru.Cache[models.HouseFeatures, cachedOutcome]
	log   *logger.Logger
}

// NewCachedPredictionService wraps inner with an LRU cache holding up to
// size outcomes. A size of 0 returns inner unchanged.
func NewCachedPredictionService(inner PredictionService, size int, log *logger.Logger) (PredictionService, error) {
	if size == 0 {
		return inner, nil
	}

	cache, err := lru.New[models.HouseFeatures, cachedOutcome](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create prediction cache: %w", err)
	}

	return &cachedPredictionService{
		PredictionService: inner,
		cache:             cache,
		log:               log,
	}, nil
}

// Estimate returns the cached outcome for house when present.
func (s *cachedPredictionService) Estimate(ctx context.Context, house models.HouseFeatures) (*models.PredictionResult, error) {
	if out, ok := s.cache.Get(house); ok {
		s.log.Debug("Prediction cache hit", map[string]interface{}{
			"location": house.Location,
		})
		if out.err != nil {
			return nil, out.err
		}
		return cloneResult(out.result), nil
	}

	result, err := s.PredictionService.Estimate(ctx, house)
	switch {
	case err == nil:
		s.cache.Add(house, cachedOutcome{result: cloneResult(result)})
	case errors.Is(err, ErrNoEstimate):
		s.cache.Add(house, cachedOutcome{err: err})
	}
	return result, err
}

func cloneResult(r *models.PredictionResult) *models.PredictionResult {
	c := *r
	c.Vector = append(models.FeatureVector(nil), r.Vector...)
	return &c
}

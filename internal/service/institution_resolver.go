package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/infra/observability"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/port"

	"go.uber.org/zap"
)

const institutionCache = "institutions"

// InstitutionSource fetches institution metadata from the provider.
type InstitutionSource interface {
	GetInstitution(ctx context.Context, institutionID string) (*domain.Institution, error)
}

// InstitutionResolver looks up institution metadata through a cross-request
// cache. Failures are never cached.
type InstitutionResolver struct {
	source  InstitutionSource
	cache   port.Cache[*domain.Institution]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewInstitutionResolver creates a resolver backed by the given cache.
func NewInstitutionResolver(source InstitutionSource, cache port.Cache[*domain.Institution], metrics *observability.Metrics, logger *zap.Logger) *InstitutionResolver {
	return &InstitutionResolver{source: source, cache: cache, metrics: metrics, logger: logger}
}

// Resolve returns the institution for id. Every failure wraps
// domain.ErrInstitutionUnavailable so callers can degrade on it.
func (r *InstitutionResolver) Resolve(ctx context.Context, institutionID string) (*domain.Institution, error) {
	if institutionID == "" {
		return nil, fmt.Errorf("%w: empty institution id", domain.ErrInstitutionUnavailable)
	}

	if inst, ok := r.cache.Get(institutionID); ok {
		r.metrics.IncrCacheHit(institutionCache)
		return inst, nil
	}
	r.metrics.IncrCacheMiss(institutionCache)

	inst, err := r.source.GetInstitution(ctx, institutionID)
	if err != nil {
		r.logger.Warn("institution lookup failed",
			zap.String("institution_id", institutionID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrInstitutionUnavailable, err)
	}

	r.cache.Set(institutionID, inst)
	return inst, nil
}

// Package resolver resolves the reference data a gateway document needs,
// falling back to documented defaults when nothing matches.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rezonia/nfse-emitter/internal/metrics"
	"github.com/rezonia/nfse-emitter/internal/model"
)

// MappingFinder looks up active service type tax mappings
type MappingFinder interface {
	FindByServiceTypeKey(ctx context.Context, key string) (*model.ServiceTypeTaxMapping, error)
	FindByCnaeCode(ctx context.Context, cnae string) (*model.ServiceTypeTaxMapping, error)
}

// TaxCodeResolver resolves tax codes by service type key, then by CNAE, then
// returns model.DefaultTaxCodeBundle.
type TaxCodeResolver struct {
	mappings MappingFinder
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewTaxCodeResolver creates a new tax code resolver
func NewTaxCodeResolver(mappings MappingFinder, m *metrics.Metrics, logger *zap.Logger) *TaxCodeResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaxCodeResolver{
		mappings: mappings,
		metrics:  m,
		logger:   logger.Named("tax_code_resolver"),
	}
}

// Resolve returns the tax codes for serviceTypeKey or cnaeCode. A miss is not an
// error; only data access failures are returned.
func (r *TaxCodeResolver) Resolve(ctx context.Context, serviceTypeKey *string, cnaeCode string) (model.TaxCodeBundle, error) {
	key := ""
	if serviceTypeKey != nil {
		key = strings.TrimSpace(*serviceTypeKey)
	}
	cnae := strings.TrimSpace(cnaeCode)

	if key != "" {
		mapping, err := r.mappings.FindByServiceTypeKey(ctx, key)
		switch {
		case err == nil:
			return mapping.Bundle(), nil
		case !errors.Is(err, model.ErrNotFound):
			return model.TaxCodeBundle{}, fmt.Errorf("find mapping by service type key %q: %w", key, err)
		}
	}

	if cnae != "" {
		mapping, err := r.mappings.FindByCnaeCode(ctx, cnae)
		switch {
		case err == nil:
			return mapping.Bundle(), nil
		case !errors.Is(err, model.ErrNotFound):
			return model.TaxCodeBundle{}, fmt.Errorf("find mapping by cnae %q: %w", cnae, err)
		}
	}

	r.logger.Warn("no tax code mapping found, using default codes",
		zap.String("service_type_key", key),
		zap.String("cnae", cnae),
	)
	r.metrics.IncrementFallback(metrics.ResolverTaxCode)
	return model.DefaultTaxCodeBundle, nil
}

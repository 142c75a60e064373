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

// DefaultTomCode is the fallback municipality (Concórdia/SC)
const DefaultTomCode = "8083"

// MunicipalityFinder looks up municipalities by name and state
type MunicipalityFinder interface {
	FindByCityAndUf(ctx context.Context, city, uf string) (*model.Municipality, error)
}

// MunicipalityResolver resolves TOM codes by city name and state
type MunicipalityResolver struct {
	municipalities MunicipalityFinder
	fallback       string
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

// NewMunicipalityResolver creates a new municipality resolver. An empty
// fallback uses DefaultTomCode.
func NewMunicipalityResolver(municipalities MunicipalityFinder, fallback string, m *metrics.Metrics, logger *zap.Logger) *MunicipalityResolver {
	if fallback == "" {
		fallback = DefaultTomCode
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MunicipalityResolver{
		municipalities: municipalities,
		fallback:       fallback,
		metrics:        m,
		logger:         logger.Named("municipality_resolver"),
	}
}

// Resolve returns the TOM code for city/uf, or the fallback code when the
// municipality is unknown. Only data access failures are returned.
func (r *MunicipalityResolver) Resolve(ctx context.Context, city, uf string) (string, error) {
	city = strings.TrimSpace(city)
	uf = strings.TrimSpace(uf)

	if city != "" && uf != "" {
		m, err := r.municipalities.FindByCityAndUf(ctx, city, uf)
		switch {
		case err == nil:
			return m.TomCode, nil
		case !errors.Is(err, model.ErrNotFound):
			return "", fmt.Errorf("find municipality %s/%s: %w", city, uf, err)
		}
	}

	r.logger.Warn("municipality not found, using fallback TOM code",
		zap.String("city", city),
		zap.String("uf", uf),
		zap.String("fallback", r.fallback),
	)
	r.metrics.IncrementFallback(metrics.ResolverMunicipality)
	return r.fallback, nil
}

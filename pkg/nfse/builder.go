package nfse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	ipmxml "github.com/rezonia/nfse-emitter/internal/ipm/xml"
	"github.com/rezonia/nfse-emitter/internal/model"
	"github.com/rezonia/nfse-emitter/internal/resolver"
)

// DefaultTomCode is the TOM code used when a municipality is unknown (Concórdia/SC)
const DefaultTomCode = resolver.DefaultTomCode

// Options configures NewBuilder
type Options struct {
	Rates          Rates
	ItemRateSource ItemRateSource

	// Municipalities maps "city|UF" to TOM codes. Keys are matched case-insensitively.
	Municipalities StaticMunicipalities
	// FallbackTomCode is used for unknown cities. Empty means DefaultTomCode.
	FallbackTomCode string
	// TaxCodes maps service type keys or CNAE codes to classification codes
	TaxCodes StaticTaxCodes

	Clock    clockwork.Clock
	Location *time.Location
	Logger   *zap.Logger
}

// NewBuilder creates a document builder backed by in-memory reference data
func NewBuilder(opts Options) (*Builder, error) {
	municipalities, err := opts.Municipalities.index()
	if err != nil {
		return nil, err
	}
	return ipmxml.NewBuilder(ipmxml.BuilderConfig{
		TaxCodes:       resolver.NewTaxCodeResolver(opts.TaxCodes, nil, opts.Logger),
		Municipalities: resolver.NewMunicipalityResolver(municipalities, opts.FallbackTomCode, nil, opts.Logger),
		Rates:          opts.Rates,
		ItemRateSource: opts.ItemRateSource,
		Clock:          opts.Clock,
		Location:       opts.Location,
		Logger:         opts.Logger,
	})
}

// StaticMunicipalities is an in-memory municipality table keyed by "city|UF"
type StaticMunicipalities map[string]string

// index folds every key once. Keys that fold to the same city with different
// codes are rejected.
func (s StaticMunicipalities) index() (municipalityIndex, error) {
	idx := make(municipalityIndex, len(s))
	for key, tom := range s {
		name, uf, ok := strings.Cut(key, "|")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(uf) == "" {
			return nil, model.NewConfigError("municipalities", fmt.Sprintf("key %q must be city|UF", key), nil)
		}
		m := model.Municipality{Name: strings.TrimSpace(name), Uf: uf, TomCode: tom}
		m.Normalize()

		k := lookupKey(m.NameKey, m.Uf)
		if prev, dup := idx[k]; dup && prev.TomCode != tom {
			return nil, model.NewConfigError("municipalities", fmt.Sprintf("%s/%s has codes %s and %s", m.Name, m.Uf, prev.TomCode, tom), nil)
		}
		idx[k] = m
	}
	return idx, nil
}

type municipalityIndex map[string]model.Municipality

// FindByCityAndUf looks up city/uf ignoring case
func (idx municipalityIndex) FindByCityAndUf(_ context.Context, city, uf string) (*model.Municipality, error) {
	m, ok := idx[lookupKey(model.MunicipalityNameKey(city), strings.ToUpper(strings.TrimSpace(uf)))]
	if !ok {
		return nil, model.NewNotFoundError("municipality", city+"/"+uf)
	}
	return &m, nil
}

func lookupKey(nameKey, uf string) string {
	return nameKey + "|" + uf
}

// StaticTaxCodes maps service type keys to tax codes. A CNAE code may be used
// as a key too; it is consulted when the service type key has no entry.
type StaticTaxCodes map[string]TaxCodeBundle

// FindByServiceTypeKey returns the bundle stored under key
func (s StaticTaxCodes) FindByServiceTypeKey(_ context.Context, key string) (*model.ServiceTypeTaxMapping, error) {
	return s.find(key)
}

// FindByCnaeCode returns the bundle stored under the CNAE code
func (s StaticTaxCodes) FindByCnaeCode(_ context.Context, cnae string) (*model.ServiceTypeTaxMapping, error) {
	return s.find(cnae)
}

func (s StaticTaxCodes) find(key string) (*model.ServiceTypeTaxMapping, error) {
	b, ok := s[key]
	if !ok {
		return nil, model.NewNotFoundError("service type tax mapping", key)
	}
	return &model.ServiceTypeTaxMapping{
		ServiceTypeKey:        key,
		NbsCode:               b.NbsCode,
		ServiceListCode:       b.ServiceListCode,
		OperationIndicator:    b.OperationIndicator,
		TaxSituationCode:      b.TaxSituationCode,
		TaxClassificationCode: b.TaxClassificationCode,
		IsActive:              true,
	}, nil
}

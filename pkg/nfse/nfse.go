// Package nfse provides a public API for assembling NFS-e documents for the
// IPM gateway without running the emission service.
//
// Example usage:
//
//	rates, err := nfse.NewRates(nfse.RateValues{...})
//	builder, err := nfse.NewBuilder(nfse.Options{
//	    Rates:          rates,
//	    ItemRateSource: nfse.ItemRateStateIBS,
//	    Municipalities: nfse.StaticMunicipalities{"Concórdia|SC": "8083"},
//	})
//	doc, err := builder.Build(ctx, invoice, nfse.BuildOptions{TestMode: true})
package nfse

import (
	"time"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/nfse-emitter/internal/decimal"
	ipmxml "github.com/rezonia/nfse-emitter/internal/ipm/xml"
	"github.com/rezonia/nfse-emitter/internal/model"
	"github.com/rezonia/nfse-emitter/internal/taxrate"
)

// Re-export core types for public API
type (
	Invoice        = model.Invoice
	InvoiceStatus  = model.InvoiceStatus
	InvoiceRequest = model.InvoiceRequest
	Issuer         = model.Issuer
	Consumer       = model.Consumer
	Address        = model.Address
	TaxCodeBundle  = model.TaxCodeBundle
	Rates          = taxrate.Rates
	RateValues     = taxrate.Values
	Builder        = ipmxml.Builder
	BuildOptions   = ipmxml.BuildOptions
	ItemRateSource = ipmxml.ItemRateSource

	TaxCodeResolver      = ipmxml.TaxCodeResolver
	MunicipalityResolver = ipmxml.MunicipalityResolver
)

// Re-export invoice statuses
const (
	InvoiceStatusPending = model.InvoiceStatusPending
	InvoiceStatusEmitted = model.InvoiceStatusEmitted
	InvoiceStatusFailed  = model.InvoiceStatusFailed
)

// Re-export item rate sources
const (
	ItemRateIssuer   = ipmxml.ItemRateIssuer
	ItemRateStateIBS = ipmxml.ItemRateStateIBS
)

// Re-export error types
type (
	ValidationError         = model.ValidationError
	ValidationErrors        = model.ValidationErrors
	ConfigError             = model.ConfigError
	InvalidInvoiceDataError = model.InvalidInvoiceDataError
)

// Sentinel errors for errors.Is
var (
	ErrInvalidInvoiceData = model.ErrInvalidInvoiceData
	ErrNotFound           = model.ErrNotFound
)

// DefaultTaxCodeBundle is used when no mapping matches the service
var DefaultTaxCodeBundle = model.DefaultTaxCodeBundle

// NewRates validates v. Every rate is required and must lie in [0,1].
func NewRates(v RateValues) (Rates, error) {
	return taxrate.New(v)
}

// NewInvoice creates a pending invoice ready to be built
func NewInvoice(clientID string, issuer Issuer, consumer Consumer, description string, amount, issRate decimal.Decimal, issuedAt time.Time, serviceTypeKey *string) (*Invoice, error) {
	return model.NewInvoice(clientID, issuer, consumer, description, amount, issRate, issuedAt, serviceTypeKey)
}

// ParseItemRateSource parses "issuer" or "state_ibs"
func ParseItemRateSource(s string) (ItemRateSource, error) {
	return ipmxml.ParseItemRateSource(s)
}

// FormatMonetary renders an amount the way the gateway expects ("1500,00")
func FormatMonetary(amount decimal.Decimal) string {
	return money.FormatMonetary(amount)
}

// FormatRate renders a proportion as a percentage ("0.025" -> "2,50")
func FormatRate(rate decimal.Decimal) string {
	return money.FormatRate(rate)
}

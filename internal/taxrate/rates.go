// Package taxrate holds the process-wide IBS/CBS/PIS/COFINS rate set and the
// tax-reform arithmetic derived from it.
package taxrate

import (
	"fmt"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/nfse-emitter/internal/decimal"
	"github.com/rezonia/nfse-emitter/internal/model"
)

// globalReduction is the nationwide reduction percentage. Zero under current rules.
var globalReduction = decimal.Zero

// Rates is the read-only set of configured rates, all expressed as proportions
// (0.025 = 2.5%). Build it with New so every field is validated once.
type Rates struct {
	IBSState              decimal.Decimal
	IBSStateReduction     decimal.Decimal
	IBSMunicipal          decimal.Decimal
	IBSMunicipalReduction decimal.Decimal
	CBS                   decimal.Decimal
	CBSReduction          decimal.Decimal
	PIS                   decimal.Decimal
	COFINS                decimal.Decimal
}

// Values is the raw, possibly incomplete input for New. A nil field is a missing key.
type Values struct {
	IBSState              *decimal.Decimal
	IBSStateReduction     *decimal.Decimal
	IBSMunicipal          *decimal.Decimal
	IBSMunicipalReduction *decimal.Decimal
	CBS                   *decimal.Decimal
	CBSReduction          *decimal.Decimal
	PIS                   *decimal.Decimal
	COFINS                *decimal.Decimal
}

// New validates v and returns the rate set. Every field is required and must lie in [0,1].
func New(v Values) (Rates, error) {
	fields := []struct {
		key   string
		value *decimal.Decimal
	}{
		{"tax.ibs_state", v.IBSState},
		{"tax.ibs_state_reduction", v.IBSStateReduction},
		{"tax.ibs_municipal", v.IBSMunicipal},
		{"tax.ibs_municipal_reduction", v.IBSMunicipalReduction},
		{"tax.cbs", v.CBS},
		{"tax.cbs_reduction", v.CBSReduction},
		{"tax.pis", v.PIS},
		{"tax.cofins", v.COFINS},
	}

	for _, f := range fields {
		if f.value == nil {
			return Rates{}, model.NewConfigError(f.key, "is required", nil)
		}
		if !money.IsProportion(*f.value) {
			return Rates{}, model.NewConfigError(f.key, fmt.Sprintf("must be between 0 and 1, got %s", f.value.String()), nil)
		}
	}

	return Rates{
		IBSState:              *v.IBSState,
		IBSStateReduction:     *v.IBSStateReduction,
		IBSMunicipal:          *v.IBSMunicipal,
		IBSMunicipalReduction: *v.IBSMunicipalReduction,
		CBS:                   *v.CBS,
		CBSReduction:          *v.CBSReduction,
		PIS:                   *v.PIS,
		COFINS:                *v.COFINS,
	}, nil
}

// Jurisdiction is the computed liability for one level (state, municipal or federal)
type Jurisdiction struct {
	Rate          decimal.Decimal
	Reduction     decimal.Decimal
	EffectiveRate decimal.Decimal
	Value         decimal.Decimal
}

// Breakdown is every derived tax amount for a given invoice amount
type Breakdown struct {
	Amount    decimal.Decimal
	State     Jurisdiction
	Municipal Jurisdiction
	Federal   Jurisdiction
	PIS       decimal.Decimal
	COFINS    decimal.Decimal
}

// IBSTotal is the state plus municipal IBS value
func (b Breakdown) IBSTotal() decimal.Decimal {
	return money.Sum([]decimal.Decimal{b.State.Value, b.Municipal.Value})
}

// Breakdown computes the derived amounts for amount. Nothing is rounded here;
// rounding happens only when values are formatted.
func (r Rates) Breakdown(amount decimal.Decimal) Breakdown {
	return Breakdown{
		Amount:    amount,
		State:     jurisdiction(amount, r.IBSState, r.IBSStateReduction),
		Municipal: jurisdiction(amount, r.IBSMunicipal, r.IBSMunicipalReduction),
		Federal:   jurisdiction(amount, r.CBS, r.CBSReduction),
		PIS:       money.ApplyRate(amount, r.PIS),
		COFINS:    money.ApplyRate(amount, r.COFINS),
	}
}

// EffectiveRate is p * (1 - reduction) * (1 - global reduction)
func EffectiveRate(p, reduction decimal.Decimal) decimal.Decimal {
	return p.Mul(money.Complement(reduction)).Mul(money.Complement(globalReduction))
}

func jurisdiction(amount, rate, reduction decimal.Decimal) Jurisdiction {
	effective := EffectiveRate(rate, reduction)
	return Jurisdiction{
		Rate:          rate,
		Reduction:     reduction,
		EffectiveRate: effective,
		Value:         money.ApplyRate(amount, effective),
	}
}

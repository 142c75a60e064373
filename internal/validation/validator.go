// Package validation registers the Brazilian document rules on go-playground/validator
// and translates its errors into model.ValidationErrors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	money "github.com/rezonia/nfse-emitter/internal/decimal"
	"github.com/rezonia/nfse-emitter/internal/model"
)

// TagName is the struct tag shared with gin binding
const TagName = "binding"

var (
	cnaePattern = regexp.MustCompile(`^\d{4}-\d/\d{2}$`)
	cepPattern  = regexp.MustCompile(`^\d{5}-?\d{3}$`)
	phoneChars  = regexp.MustCompile(`^[\d\s()+-]+$`)

	maxAmount = money.FromInt(1_000_000)
)

var validUfs = map[string]struct{}{
	"AC": {}, "AL": {}, "AP": {}, "AM": {}, "BA": {}, "CE": {}, "DF": {}, "ES": {}, "GO": {},
	"MA": {}, "MT": {}, "MS": {}, "MG": {}, "PA": {}, "PB": {}, "PR": {}, "PE": {}, "PI": {},
	"RJ": {}, "RN": {}, "RS": {}, "RO": {}, "RR": {}, "SC": {}, "SP": {}, "SE": {}, "TO": {},
}

// New creates a validator with every custom rule registered
func New(clock clockwork.Clock) (*validator.Validate, error) {
	v := validator.New()
	v.SetTagName(TagName)
	if err := Register(v, clock); err != nil {
		return nil, err
	}
	return v, nil
}

var setupOnce sync.Once

// SetupGin registers the custom rules on gin's default validator
func SetupGin(clock clockwork.Clock) error {
	var err error
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		err = Register(v, clock)
	})
	return err
}

// Register adds the custom tags, JSON field names and request-level rules to v
func Register(v *validator.Validate, clock clockwork.Clock) error {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	rules := map[string]validator.Func{
		"cnpj":    stringRule(IsValidCnpj),
		"cpf":     stringRule(IsValidCpf),
		"cpfcnpj": stringRule(IsValidCpfOrCnpj),
		"cnae":    stringRule(cnaePattern.MatchString),
		"cep":     stringRule(cepPattern.MatchString),
		"uf":      stringRule(IsValidUf),
		"phone":   stringRule(IsValidPhone),
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}

	v.RegisterStructValidation(invoiceRequestRules(clock), model.InvoiceRequest{})
	return nil
}

func stringRule(fn func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	}
}

func invoiceRequestRules(clock clockwork.Clock) validator.StructLevelFunc {
	return func(sl validator.StructLevel) {
		req := sl.Current().Interface().(model.InvoiceRequest)

		if !money.IsPositive(req.Amount) {
			sl.ReportError(req.Amount, "amount", "Amount", "gt_zero", "")
		} else if !req.Amount.LessThan(maxAmount) {
			sl.ReportError(req.Amount, "amount", "Amount", "lt_max", maxAmount.String())
		}
		if !money.IsProportion(req.IssRate) {
			sl.ReportError(req.IssRate, "issRate", "IssRate", "proportion", "")
		}
		if !req.IssuedAt.IsZero() && req.IssuedAt.After(clock.Now()) {
			sl.ReportError(req.IssuedAt, "issuedAt", "IssuedAt", "not_future", "")
		}
	}
}

// IsValidUf reports whether uf is one of the 27 Brazilian federative units
func IsValidUf(uf string) bool {
	_, ok := validUfs[strings.ToUpper(uf)]
	return ok
}

// IsValidPhone accepts 10 or 11 digits (area code + number), optionally formatted
func IsValidPhone(phone string) bool {
	if !phoneChars.MatchString(phone) {
		return false
	}
	n := len(onlyDigits(phone))
	return n == 10 || n == 11
}

// IsValidCnpj checks length and both check digits
func IsValidCnpj(cnpj string) bool {
	d := onlyDigits(cnpj)
	if len(d) != 14 {
		return false
	}
	first := checkDigit(d[:12], []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	second := checkDigit(d[:13], []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	return int(d[12]-'0') == first && int(d[13]-'0') == second
}

// IsValidCpf checks length, repeated digits and both check digits
func IsValidCpf(cpf string) bool {
	d := onlyDigits(cpf)
	if len(d) != 11 || strings.Count(d, d[:1]) == 11 {
		return false
	}
	first := checkDigit(d[:9], []int{10, 9, 8, 7, 6, 5, 4, 3, 2})
	second := checkDigit(d[:10], []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2})
	return int(d[9]-'0') == first && int(d[10]-'0') == second
}

// IsValidCpfOrCnpj validates as CPF when there are 11 digits, else as CNPJ
func IsValidCpfOrCnpj(doc string) bool {
	if len(onlyDigits(doc)) == 11 {
		return IsValidCpf(doc)
	}
	return IsValidCnpj(doc)
}

func checkDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	if mod := sum % 11; mod >= 2 {
		return 11 - mod
	}
	return 0
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

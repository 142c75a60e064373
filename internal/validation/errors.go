package validation

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/rezonia/nfse-emitter/internal/model"
)

var messages = map[string]string{
	"required":   "is required",
	"email":      "must be a valid email address",
	"cnpj":       "must be a valid CNPJ",
	"cpf":        "must be a valid CPF",
	"cpfcnpj":    "must be a valid CPF or CNPJ",
	"cnae":       "must match NNNN-N/NN",
	"cep":        "must match NNNNN-NNN or NNNNNNNN",
	"uf":         "must be a Brazilian state",
	"phone":      "must have 10 or 11 digits (area code + number)",
	"gt_zero":    "must be greater than zero",
	"lt_max":     "must be less than 1000000",
	"proportion": "must be between 0 and 1",
	"not_future": "cannot be in the future",
}

// Translate converts validator errors into model.ValidationErrors.
// Errors of any other kind are returned unchanged.
func Translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(model.ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, model.NewValidationError(fieldPath(fe), fe.Value(), fe.Tag(), message(fe)))
	}
	return out
}

func message(fe validator.FieldError) string {
	if fe.Tag() == "max" {
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	if msg, ok := messages[fe.Tag()]; ok {
		return msg
	}
	return "is invalid"
}

// fieldPath drops the root struct name: InvoiceRequest.issuer.cnpj -> issuer.cnpj
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	for i := 0; i < len(ns); i++ {
		if ns[i] == '.' {
			return ns[i+1:]
		}
	}
	return ns
}

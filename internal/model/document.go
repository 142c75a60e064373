package model

import (
	"strings"
)

// Cnpj is a normalized (digits only) 14-digit legal entity tax id
type Cnpj string

// NewCnpj normalizes value and checks it has exactly 14 digits
func NewCnpj(value string) (Cnpj, error) {
	digits := digitsOf(value)
	if len(digits) != 14 {
		return "", NewValidationError("cnpj", value, "len=14", "CNPJ must have 14 digits")
	}
	return Cnpj(digits), nil
}

func (c Cnpj) String() string {
	return string(c)
}

// Cpf is a normalized (digits only) 11-digit individual tax id
type Cpf string

// NewCpf normalizes value and checks it has exactly 11 digits
func NewCpf(value string) (Cpf, error) {
	digits := digitsOf(value)
	if len(digits) != 11 {
		return "", NewValidationError("cpf", value, "len=11", "CPF must have 11 digits")
	}
	return Cpf(digits), nil
}

func (c Cpf) String() string {
	return string(c)
}

func digitsOf(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

package xml

import (
	"strings"
)

var contentEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
	"/", "",
)

// OnlyDigits keeps ASCII digits only
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// EscapeContent entity-encodes markup characters and removes every '/'.
// The gateway rejects slashes in text content.
func EscapeContent(s string) string {
	if s == "" {
		return ""
	}
	return contentEscaper.Replace(s)
}

// StripDots removes '.' and '-' from a formatted code, e.g. "149.01.00" -> "1490100"
func StripDots(code string) string {
	return strings.NewReplacer(".", "", "-", "").Replace(code)
}

// TomadorType classifies a recipient document: F (CPF), J (CNPJ or other), E (no document)
func TomadorType(document string) string {
	switch n := len(OnlyDigits(document)); {
	case n == 11:
		return "F"
	case n > 0:
		return "J"
	default:
		return "E"
	}
}

// ParsePhone splits a phone number into area code and local number
func ParsePhone(phone string) (areaCode, number string) {
	digits := OnlyDigits(phone)
	if len(digits) < 2 {
		return "", ""
	}
	return digits[:2], digits[2:]
}

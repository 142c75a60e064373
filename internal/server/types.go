package server

import (
	"time"

	"github.com/rezonia/nfse-emitter/internal/model"
)

// EmitResponse is the response of the emit endpoint
type EmitResponse struct {
	Invoice  *model.Invoice `json:"invoice"`
	Protocol string         `json:"protocol,omitempty"`
	Messages []string       `json:"messages,omitempty"`
}

// ListInvoicesResponse is the response of the invoice listing endpoint
type ListInvoicesResponse struct {
	Invoices []model.Invoice `json:"invoices"`
	Count    int             `json:"count"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details string       `json:"details,omitempty"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// FieldError describes one failed validation rule
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// VerifyResponse is the response for signature verification endpoint
type VerifyResponse struct {
	Valid          bool              `json:"valid"`
	SignatureFound bool              `json:"signature_found"`
	SignatureValid bool              `json:"signature_valid"`
	Trusted        bool              `json:"trusted"`
	Signer         *SignerInfoOutput `json:"signer,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
	Errors         []string          `json:"errors,omitempty"`
}

// SignerInfoOutput holds signer info for API response
type SignerInfoOutput struct {
	Name         string     `json:"name,omitempty"`
	Organization string     `json:"organization,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Issuer       string     `json:"issuer,omitempty"`
	ValidFrom    *time.Time `json:"valid_from,omitempty"`
	ValidTo      *time.Time `json:"valid_to,omitempty"`
}

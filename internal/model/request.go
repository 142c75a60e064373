package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceRequest is the payload accepted to emit an invoice.
// Amount, IssRate and IssuedAt bounds are checked at struct level by the validation package.
type InvoiceRequest struct {
	ClientID           string          `json:"clientId" binding:"required,max=100"`
	Issuer             Issuer          `json:"issuer" binding:"required"`
	Consumer           Consumer        `json:"consumer" binding:"required"`
	ServiceDescription string          `json:"serviceDescription" binding:"required,max=2000"`
	Amount             decimal.Decimal `json:"amount"`
	IssRate            decimal.Decimal `json:"issRate"`
	IssuedAt           time.Time       `json:"issuedAt" binding:"required"`
	ServiceTypeKey     *string         `json:"serviceTypeKey,omitempty" binding:"omitempty,max=100"`
	TestMode           bool            `json:"testMode"`
}

// ToInvoice creates the pending invoice described by the request
func (r *InvoiceRequest) ToInvoice() (*Invoice, error) {
	return NewInvoice(r.ClientID, r.Issuer, r.Consumer, r.ServiceDescription, r.Amount, r.IssRate, r.IssuedAt, r.ServiceTypeKey)
}

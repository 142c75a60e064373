package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusEmitted InvoiceStatus = "emitted"
	InvoiceStatusFailed  InvoiceStatus = "failed"
)

// Invoice is a service invoice as persisted before and after emission.
// IssuerData and ConsumerData hold the JSON encoding of Issuer and Consumer.
type Invoice struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID           string          `gorm:"type:varchar(100);not null;index" json:"client_id"`
	IssuerCNPJ         Cnpj            `gorm:"column:issuer_cnpj;type:varchar(14);not null;index" json:"issuer_cnpj"`
	IssuerData         string          `gorm:"type:jsonb;not null" json:"-"`
	ConsumerData       string          `gorm:"type:jsonb;not null" json:"-"`
	ServiceDescription string          `gorm:"type:text;not null" json:"service_description"`
	Amount             decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	ServiceTypeKey     *string         `gorm:"type:varchar(100)" json:"service_type_key,omitempty"`
	IssRate            decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"iss_rate"`

	Status            InvoiceStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ExternalInvoiceID *string       `gorm:"type:varchar(100)" json:"external_invoice_id,omitempty"`
	VerificationCode  *string       `gorm:"type:varchar(100)" json:"verification_code,omitempty"`
	PdfURL            *string       `gorm:"type:text" json:"pdf_url,omitempty"`
	XMLPayload        *string       `gorm:"column:xml_payload;type:text" json:"-"`
	XMLResponse       *string       `gorm:"column:xml_response;type:text" json:"-"`
	ErrorDetails      *string       `gorm:"type:text" json:"error_details,omitempty"`
	RetryCount        int           `gorm:"not null;default:0" json:"retry_count"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
}

// TableName overrides the gorm table name
func (Invoice) TableName() string {
	return "invoices"
}

// Address is a Brazilian postal address
type Address struct {
	Street       string  `json:"street" binding:"required,max=200"`
	Number       string  `json:"number" binding:"required,max=20"`
	Complement   *string `json:"complement,omitempty" binding:"omitempty,max=100"`
	Neighborhood string  `json:"neighborhood" binding:"required,max=100"`
	City         string  `json:"city" binding:"required,max=100"`
	Uf           string  `json:"uf" binding:"required,uf"`
	ZipCode      string  `json:"zipCode" binding:"required,cep"`
}

// Issuer is the service provider (prestador)
type Issuer struct {
	Cnpj                 string  `json:"cnpj" binding:"required,cnpj"`
	MunicipalInscription string  `json:"municipalInscription" binding:"required,max=20"`
	Name                 string  `json:"name" binding:"required,max=200"`
	Cnae                 string  `json:"cnae" binding:"required,cnae"`
	Address              Address `json:"address" binding:"required"`
}

// Consumer is the service recipient (tomador)
type Consumer struct {
	Name    string  `json:"name" binding:"required,max=200"`
	CpfCnpj string  `json:"cpfCnpj" binding:"required,cpfcnpj"`
	Email   *string `json:"email,omitempty" binding:"omitempty,email"`
	Phone   *string `json:"phone,omitempty" binding:"omitempty,phone"`
	Address Address `json:"address" binding:"required"`
}

// NewInvoice creates a pending invoice with a fresh id
func NewInvoice(clientID string, issuer Issuer, consumer Consumer, description string, amount, issRate decimal.Decimal, issuedAt time.Time, serviceTypeKey *string) (*Invoice, error) {
	cnpj, err := NewCnpj(issuer.Cnpj)
	if err != nil {
		return nil, err
	}

	issuerData, err := json.Marshal(issuer)
	if err != nil {
		return nil, err
	}
	consumerData, err := json.Marshal(consumer)
	if err != nil {
		return nil, err
	}

	return &Invoice{
		ID:                 uuid.New(),
		ClientID:           clientID,
		IssuerCNPJ:         cnpj,
		IssuerData:         string(issuerData),
		ConsumerData:       string(consumerData),
		ServiceDescription: description,
		Amount:             amount,
		ServiceTypeKey:     serviceTypeKey,
		IssRate:            issRate,
		Status:             InvoiceStatusPending,
		CreatedAt:          time.Now().UTC(),
		IssuedAt:           &issuedAt,
	}, nil
}

// DecodeIssuer parses IssuerData
func (inv *Invoice) DecodeIssuer() (*Issuer, error) {
	var issuer Issuer
	if err := decodeParty(inv.IssuerData, &issuer); err != nil {
		return nil, NewInvalidInvoiceDataError(inv.ID.String(), "issuer_data", "cannot decode issuer", err)
	}
	return &issuer, nil
}

// DecodeConsumer parses ConsumerData
func (inv *Invoice) DecodeConsumer() (*Consumer, error) {
	var consumer Consumer
	if err := decodeParty(inv.ConsumerData, &consumer); err != nil {
		return nil, NewInvalidInvoiceDataError(inv.ID.String(), "consumer_data", "cannot decode consumer", err)
	}
	return &consumer, nil
}

var jsonNull = []byte("null")

func decodeParty(data string, v interface{}) error {
	raw := bytes.TrimSpace([]byte(data))
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return errEmptyPayload
	}
	return json.Unmarshal(raw, v)
}

var errEmptyPayload = errors.New("empty payload")

// MarkAsEmitted records a successful gateway submission
func (inv *Invoice) MarkAsEmitted(invoiceNumber, verificationCode, pdfURL, response string, at time.Time) {
	inv.Status = InvoiceStatusEmitted
	inv.ExternalInvoiceID = optional(invoiceNumber)
	inv.VerificationCode = optional(verificationCode)
	inv.PdfURL = optional(pdfURL)
	inv.XMLResponse = optional(response)
	inv.ErrorDetails = nil
	inv.UpdatedAt = &at
}

// MarkAsFailed records a failed attempt and bumps the retry counter
func (inv *Invoice) MarkAsFailed(details string, at time.Time) {
	inv.Status = InvoiceStatusFailed
	inv.ErrorDetails = optional(details)
	inv.RetryCount++
	inv.UpdatedAt = &at
}

// SetPayload stores the XML that was sent to the gateway
func (inv *Invoice) SetPayload(xml string) {
	inv.XMLPayload = optional(xml)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package model

import (
	"errors"
	"fmt"
)

// ErrInvalidInvoiceData matches any *InvalidInvoiceDataError via errors.Is
var ErrInvalidInvoiceData = errors.New("invalid invoice data")

// ErrNotFound matches any *NotFoundError via errors.Is
var ErrNotFound = errors.New("not found")

// InvalidInvoiceDataError is returned when the stored issuer/consumer payload of an
// invoice cannot be decoded. It is fatal for that invoice and must not be retried as-is.
type InvalidInvoiceDataError struct {
	InvoiceID string
	Field     string
	Message   string
	Cause     error
}

func (e *InvalidInvoiceDataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invoice %s: %s: %s (%v)", e.InvoiceID, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("invoice %s: %s: %s", e.InvoiceID, e.Field, e.Message)
}

func (e *InvalidInvoiceDataError) Unwrap() error {
	return e.Cause
}

func (e *InvalidInvoiceDataError) Is(target error) bool {
	return target == ErrInvalidInvoiceData
}

// NewInvalidInvoiceDataError creates a new invalid invoice data error
func NewInvalidInvoiceDataError(invoiceID, field, message string, cause error) *InvalidInvoiceDataError {
	return &InvalidInvoiceDataError{
		InvoiceID: invoiceID,
		Field:     field,
		Message:   message,
		Cause:     cause,
	}
}

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}

// ValidationErrors collects every failed rule of a request
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "validation failed"
	case 1:
		return e[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", e[0].Error(), len(e)-1)
}

// ConfigError represents a missing or malformed configuration value.
// It is raised once at startup, never per request.
type ConfigError struct {
	Key     string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config %s: %s (%v)", e.Key, e.Message, e.Cause)
	}
	return fmt.Sprintf("config %s: %s", e.Key, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error
func NewConfigError(key, message string, cause error) *ConfigError {
	return &ConfigError{
		Key:     key,
		Message: message,
		Cause:   cause,
	}
}

// NotFoundError is returned by repositories when a record does not exist
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(entity, key string) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}
